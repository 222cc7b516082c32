package service

import (
	"regexp"
	"strings"

	appErrors "github.com/unclebandit/koya-caller/internal/errors"
)

var e164 = regexp.MustCompile(`^\+[0-9]{10,15}$`)

// NormalizePhone converts common US formats to E.164. Ten digits get +1,
// eleven digits starting with 1 get +; anything else must already be E.164.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if !strings.HasPrefix(digits, "+") {
		switch {
		case len(digits) == 10:
			digits = "+1" + digits
		case len(digits) == 11 && digits[0] == '1':
			digits = "+" + digits
		default:
			digits = "+" + digits
		}
	}

	if !e164.MatchString(digits) {
		return "", appErrors.ErrInvalidPhone
	}
	return digits, nil
}
