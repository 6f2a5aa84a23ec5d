package publish

import (
	"regexp"
	"strings"
)

// Contact is the caller information recovered from a transcript.
type Contact struct {
	Email string
	Phone string
}

// Empty reports whether nothing was found.
func (c Contact) Empty() bool {
	return c.Email == "" && c.Phone == ""
}

// Phone formats are tried in order; the first match wins.
var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`),
	regexp.MustCompile(`\b\+?1?[-.\s]?\(?(\d{3})\)?[-.\s]?(\d{3})[-.\s]?(\d{4})\b`),
	regexp.MustCompile(`\b\d{10}\b`),
}

var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

// ExtractContact finds the first email address and phone number in text.
func ExtractContact(text string) Contact {
	var c Contact
	if m := emailPattern.FindString(text); m != "" {
		c.Email = strings.ToLower(m)
	}
	for _, pattern := range phonePatterns {
		if m := pattern.FindString(text); m != "" {
			c.Phone = strings.TrimSpace(m)
			break
		}
	}
	return c
}
