// internal/messaging/sanitize.go

package messaging

import (
	"regexp"
	"strings"
)

var (
	markupPattern  = regexp.MustCompile(`<[^>]*>`)
	controlPattern = regexp.MustCompile("[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]")
)

// Sanitize strips markup and control characters from user-supplied
// message content before it is encrypted and stored
func Sanitize(content string) string {
	content = markupPattern.ReplaceAllString(content, "")
	content = controlPattern.ReplaceAllString(content, "")
	return strings.TrimSpace(content)
}
