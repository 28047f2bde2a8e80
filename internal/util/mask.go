// Package util reúne helpers chicos sin dependencias de dominio.
package util

import "strings"

// MaskEmail oculta un email para logs: "juan@campo.com" -> "j…@c….com".
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" {
		return MaskIdentifier(s)
	}
	if len(local) > 1 {
		local = local[:1] + "…"
	}
	labels := strings.Split(domain, ".")
	if len(labels[0]) > 1 {
		labels[0] = labels[0][:1] + "…"
	}
	return local + "@" + strings.Join(labels, ".")
}

// MaskIdentifier deja visibles sólo los extremos de un documento o usuario.
func MaskIdentifier(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case len(s) <= 3:
		return "***"
	}
	return s[:1] + "…" + s[len(s)-1:]
}

// Mask elige MaskEmail o MaskIdentifier según el valor.
func Mask(s string) string {
	if strings.Contains(s, "@") {
		return MaskEmail(s)
	}
	return MaskIdentifier(s)
}
