package extraction

import (
	"strings"

	"github.com/inbucket/html2text"
)

// BodyText picks the readable text for extraction: the plain-text body when
// present, otherwise the HTML body stripped to text. Falls back to the raw
// HTML if stripping fails rather than losing the message.
func BodyText(textBody, htmlBody string) string {
	if strings.TrimSpace(textBody) != "" {
		return textBody
	}
	if strings.TrimSpace(htmlBody) == "" {
		return ""
	}

	stripped, err := html2text.FromString(htmlBody, html2text.Options{TextOnly: true})
	if err != nil || strings.TrimSpace(stripped) == "" {
		return htmlBody
	}
	return stripped
}
