package telegram

import (
	"regexp"
	"strings"
)

var (
	brTag   = regexp.MustCompile(`(?i)<br\s*/?>`)
	anyTag  = regexp.MustCompile(`<[^>]+>`)
	nbspRef = strings.NewReplacer("&nbsp;", " ", "&amp;", "&", "&lt;", "<", "&gt;", ">")
)

// FormatPlain converts the trainer's HTML reply into plain text suitable
// for Telegram: <br> becomes a newline, remaining tags are dropped and
// blank lines are collapsed.
func FormatPlain(response string) string {
	text := brTag.ReplaceAllString(response, "\n")
	text = anyTag.ReplaceAllString(text, "")
	text = nbspRef.Replace(text)

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		cleaned = append(cleaned, trimmed)
	}
	return strings.Join(cleaned, "\n")
}
