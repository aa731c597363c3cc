// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "RU"

var (
	phoneCandidate = regexp.MustCompile(`\+?[\d\s\-()]{7,20}\d`)
	emailCandidate = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// NormalizeE164 formats a phone number to E.164. If parsing fails, it returns the trimmed input.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// Valid reports whether input parses to a valid number.
func Valid(input string) bool {
	number, err := phonenumbers.Parse(strings.TrimSpace(input), defaultRegion)
	return err == nil && phonenumbers.IsValidNumber(number)
}

// Contact holds the contact details found in free text.
type Contact struct {
	Phone string
	Email string
}

// Empty reports whether nothing was found.
func (c Contact) Empty() bool {
	return c.Phone == "" && c.Email == ""
}

// Extract scans text for the first valid phone number and e-mail address.
func Extract(text string) Contact {
	var out Contact
	for _, candidate := range phoneCandidate.FindAllString(text, -1) {
		if Valid(candidate) {
			out.Phone = NormalizeE164(candidate)
			break
		}
	}
	for _, candidate := range emailCandidate.FindAllString(text, -1) {
		if addr, err := mail.ParseAddress(candidate); err == nil {
			out.Email = strings.ToLower(addr.Address)
			break
		}
	}
	return out
}
