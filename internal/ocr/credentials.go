package ocr

import (
	"os"

	"google.golang.org/api/option"
)

// credentialOptions returns the client options for the Google credentials in
// the environment. GOOGLE_CREDENTIALS (inline JSON) wins over
// GOOGLE_APPLICATION_CREDENTIALS (file path). ok is false when neither is
// set and the client has to rely on application default credentials.
func credentialOptions() (opts []option.ClientOption, ok bool) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}, true
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return []option.ClientOption{option.WithCredentialsFile(credFile)}, true
	}
	return nil, false
}
