package refiner

import "errors"

var (
	// ErrExtractionFailed is returned when every provider failed for a text.
	ErrExtractionFailed = errors.New("LLM extraction failed")

	// ErrMalformedJSON is returned when a reply is not parseable JSON.
	ErrMalformedJSON = errors.New("malformed JSON in LLM response")

	// ErrSchemaMismatch is returned when a reply parses but has the wrong shape.
	ErrSchemaMismatch = errors.New("LLM response does not match the coil schema")

	// ErrEmptyResponse is returned when a provider replied with no content.
	ErrEmptyResponse = errors.New("empty LLM response")

	// ErrNoProviders is returned when the refiner has nothing to call.
	ErrNoProviders = errors.New("no LLM providers configured")
)
