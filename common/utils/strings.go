package utils

import (
	"strings"
	"unicode"
)

//Remove control symbols and surrounding spaces
func Trim(str string) string {
	return strings.TrimFunc(str, func(c rune) bool {
		return unicode.IsControl(c) || unicode.IsSpace(c)
	})
}

// KeyValue splits "key=value". The key must not be empty; the value may be.
func KeyValue(str string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(str, "=")
	if !ok || len(key) == 0 {
		return "", "", false
	}
	return key, value, true
}
