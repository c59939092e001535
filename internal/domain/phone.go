package domain

import (
	"strings"
	"unicode"
)

// NormalizePhone converte um WhatsApp digitado livremente para E.164 brasileiro
// (+55 + DDD + número). Números sem DDI recebem 55.
func NormalizePhone(raw string) (string, error) {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	digits = strings.TrimLeft(digits, "0")

	switch len(digits) {
	case 10, 11:
		digits = "55" + digits
	case 12, 13:
		if !strings.HasPrefix(digits, "55") {
			return "", ErrInvalidPhone
		}
	default:
		return "", ErrInvalidPhone
	}
	return "+" + digits, nil
}
