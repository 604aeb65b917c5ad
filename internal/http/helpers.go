package http

import (
	"dailysales/internal/core"
)

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	return core.NormalizeProduct(s)
}
