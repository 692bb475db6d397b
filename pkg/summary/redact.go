package summary

import (
	"regexp"
	"strings"
)

// errorDetailLimit caps the provider error detail attached to a warning
const errorDetailLimit = 1000

var (
	reKeyParam  = regexp.MustCompile(`(?i)(key=)[^&\s]+`)
	reBearer    = regexp.MustCompile(`(?i)(Bearer\s+)[A-Za-z0-9\-._]+`)
	reSecretKey = regexp.MustCompile(`sk-[A-Za-z0-9\-._]+`)
)

// redact masks credentials that providers tend to echo back in error bodies
func redact(text string) string {
	if text == "" {
		return ""
	}
	text = reKeyParam.ReplaceAllString(text, "${1}***")
	text = reBearer.ReplaceAllString(text, "${1}***")
	text = reSecretKey.ReplaceAllString(text, "sk-***")
	return text
}

// trimDetail redacts, flattens and caps error detail before it becomes a
// user-visible warning
func trimDetail(text string) string {
	text = redact(strings.TrimSpace(strings.ReplaceAll(text, "\n", " ")))
	runes := []rune(text)
	if len(runes) <= errorDetailLimit {
		return text
	}
	return string(runes[:errorDetailLimit-3]) + "..."
}
