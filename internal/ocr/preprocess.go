package ocr

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	ruleLine        = regexp.MustCompile(`^[-_*]+$`)
)

// Preprocess cleans OCR noise out of page text before it is sent to the LLM.
// Lines are trimmed and internal runs of spaces collapsed; empty lines,
// single characters and rule lines made of -, _ or * are dropped. Blocks stay
// separated by exactly one blank line. Preprocess(Preprocess(s)) == Preprocess(s).
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	gap := false
	for _, line := range strings.Split(text, "\n") {
		line = horizontalSpace.ReplaceAllString(strings.TrimSpace(line), " ")
		if isNoise(line) {
			if line == "" {
				gap = true
			}
			continue
		}
		if gap && len(out) > 0 {
			out = append(out, "")
		}
		gap = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isNoise(line string) bool {
	return line == "" || utf8.RuneCountInString(line) == 1 || ruleLine.MatchString(line)
}
