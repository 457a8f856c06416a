// Package phone canonicalizes and compares phone numbers. Legacy
// records store numbers inconsistently with and without a country code,
// so comparison tolerates a missing prefix via suffix matching.
package phone

import "strings"

type Normalizer struct {
	// CountryCode is the default domestic country code, digits only.
	CountryCode string
}

func NewNormalizer(countryCode string) Normalizer {
	if countryCode == "" {
		countryCode = "1"
	}
	return Normalizer{CountryCode: countryCode}
}

// Canonicalize strips all non-digits and drops a leading country-code
// digit when the result is 11 digits long. Idempotent.
func (n Normalizer) Canonicalize(raw string) string {
	digits := digitsOnly(raw)
	if len(digits) == 10+len(n.CountryCode) && strings.HasPrefix(digits, n.CountryCode) {
		return digits[len(n.CountryCode):]
	}
	return digits
}

// ToE164 renders a raw number in E.164 form. A number already carrying
// a "+" keeps it; a bare 10-digit number gets the default country code;
// an 11-digit number with the code present just gains the "+".
func (n Normalizer) ToE164(raw string) string {
	if strings.HasPrefix(strings.TrimSpace(raw), "+") {
		return "+" + digitsOnly(raw)
	}
	digits := digitsOnly(raw)
	switch {
	case len(digits) == 10:
		return "+" + n.CountryCode + digits
	case len(digits) == 10+len(n.CountryCode) && strings.HasPrefix(digits, n.CountryCode):
		return "+" + digits
	default:
		return "+" + digits
	}
}

// Matches reports whether two numbers refer to the same line: canonical
// forms are equal, or when the lengths differ the shorter is a suffix
// of the longer. No minimum length is enforced, so very short inputs
// can match unrelated numbers.
func (n Normalizer) Matches(a, b string) bool {
	ca, cb := n.Canonicalize(a), n.Canonicalize(b)
	if ca == "" || cb == "" {
		return ca == cb
	}
	if ca == cb {
		return true
	}
	if len(ca) < len(cb) {
		return strings.HasSuffix(cb, ca)
	}
	if len(cb) < len(ca) {
		return strings.HasSuffix(ca, cb)
	}
	return false
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		if ch >= '0' && ch <= '9' {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
