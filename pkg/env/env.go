package env

import (
	"os"
	"strings"
)

// Get reads an environment variable, falling back when it is unset or blank.
// Whitespace-only values count as unset so a stray space in a .env file does
// not override the default.
func Get(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	val = strings.TrimSpace(val)
	if val == "" {
		return fallback
	}
	return val
}
