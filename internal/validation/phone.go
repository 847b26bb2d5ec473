package validation

import (
	"regexp"
	"strings"
)

// Reglas de teléfono de visitante:
//   - Se descartan todos los caracteres que no son dígitos.
//   - 10 dígitos = número local, se antepone el código de país.
//   - 11 o más dígitos = ya trae código de país, solo se antepone "+".
//   - El resultado debe matchear un patrón internacional permisivo (E.164: 10..15 dígitos).
//
// Ejemplos: "98765 43210" -> "+919876543210", "+1 (415) 555-0100" -> "+14155550100".
var phoneRe = regexp.MustCompile(`^\+[1-9][0-9]{9,14}$`)

// NormalizePhone lleva el número a forma canónica. countryCode sin "+" (ej: "91").
// No valida: combinar con ValidPhone.
func NormalizePhone(raw, countryCode string) string {
	var b strings.Builder
	b.Grow(len(raw) + 3)
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) == 10 {
		return "+" + strings.TrimPrefix(countryCode, "+") + digits
	}
	return "+" + digits
}

// ValidPhone returns true if the normalized phone matches the international pattern.
func ValidPhone(normalized string) bool {
	return phoneRe.MatchString(normalized)
}

// Phone normaliza y valida en un paso.
func Phone(raw, countryCode string) (string, bool) {
	n := NormalizePhone(raw, countryCode)
	return n, ValidPhone(n)
}
