package pokedex

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// NormalizeKey returns the canonical entity key for raw: a decimal id without
// leading zeros, or a lowercase name. "025", "25" and " 25 " all normalize to "25".
func NormalizeKey(raw string) (string, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidInput)
	}

	if isDigits(key) {
		trimmed := strings.TrimLeft(key, "0")
		if trimmed == "" {
			return "", fmt.Errorf("%w: id must be positive", ErrInvalidInput)
		}
		if _, err := strconv.Atoi(trimmed); err != nil {
			return "", fmt.Errorf("%w: id out of range", ErrInvalidInput)
		}
		return trimmed, nil
	}

	if len(key) > 64 || !namePattern.MatchString(key) {
		return "", fmt.Errorf("%w: malformed key %q", ErrInvalidInput, raw)
	}
	return key, nil
}

// IsNumericKey reports whether a normalized key is an id.
func IsNumericKey(key string) bool {
	return isDigits(key)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
