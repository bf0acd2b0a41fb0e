package tui

import "strings"

// humanError extracts the innermost message from a wrapped error chain's
// text. "registration: dial: connection refused" -> "Connection refused"
func humanError(msg string) string {
	if msg == "" {
		return ""
	}
	if idx := strings.LastIndex(msg, ": "); idx != -1 && idx+2 < len(msg) {
		inner := msg[idx+2:]
		if len(inner) > 0 {
			inner = strings.ToUpper(inner[:1]) + inner[1:]
		}
		return inner
	}
	return msg
}
