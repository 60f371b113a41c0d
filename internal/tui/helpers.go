package tui

import (
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// RenderQR draws code as a terminal QR made of half-block characters.
func RenderQR(code string) (string, error) {
	q, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(q.ToSmallString(false), "\n"), nil
}

// truncate shortens a string to max length with ellipsis
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// mask hides all but the last four characters
func mask(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("•", len(s))
	}
	return strings.Repeat("•", 8) + s[len(s)-4:]
}
