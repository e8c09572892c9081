package registry

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const maxNameLen = 64

// normalizeName validates an app name. Purely numeric names are rejected
// because clients treat a numeric selector as an id.
func normalizeName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("app name is empty")
	}
	if len(name) > maxNameLen {
		return "", fmt.Errorf("app name %q is too long (max %d characters)", name, maxNameLen)
	}
	if _, err := strconv.Atoi(name); err == nil {
		return "", fmt.Errorf("app name %q must not be a number", name)
	}
	for _, r := range name {
		if isAllowedNameRune(r) {
			continue
		}
		return "", fmt.Errorf("app name %q contains invalid character %q (allowed: letters, digits, '.', '-', '_', '@', ':')", name, r)
	}
	return name, nil
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case '-', '_', '.', '@', ':':
		return true
	default:
		return false
	}
}
