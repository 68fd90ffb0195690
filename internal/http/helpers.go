package http

import (
	"strings"

	"ledger/internal/core"
)

// sanitizeInput drops control characters other than tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

func periodStrings(periods []core.Period) []string {
	out := make([]string, 0, len(periods))
	for _, p := range periods {
		out = append(out, p.String())
	}
	return out
}
