package http

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"allowance/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// statusFor maps a domain error to the status of the re-rendered page.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrAuth):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// errorMessage is the banner text shown for err. Domain errors lose their
// kind prefix; anything else is reported generically.
func errorMessage(err error) string {
	msg := err.Error()
	for _, kind := range []error{core.ErrValidation, core.ErrAuth} {
		if errors.Is(err, kind) {
			prefix := kind.Error() + ": "
			if i := strings.Index(msg, prefix); i >= 0 {
				msg = msg[i+len(prefix):]
			}
			if msg == "" {
				return msg
			}
			return strings.ToUpper(msg[:1]) + msg[1:]
		}
	}
	return "Something went wrong, please try again."
}
