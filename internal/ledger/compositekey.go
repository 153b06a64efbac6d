package ledger

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	compositeKeyNamespace = "\x00"
	minUnicodeRuneValue   = 0
	maxUnicodeRuneValue   = utf8.MaxRune
)

// ErrInvalidCompositeKey marks malformed composite key input.
var ErrInvalidCompositeKey = errors.New("invalid composite key")

// CreateCompositeKey joins objectType and attributes into a single key.
//
// Example: CreateCompositeKey("country~id", []string{"MX", "p1"})
// returns "\x00country~id\x00MX\x00p1\x00".
func CreateCompositeKey(objectType string, attributes []string) (string, error) {
	if err := validateCompositeKeyAttribute(objectType); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(compositeKeyNamespace)
	b.WriteString(objectType)
	b.WriteRune(minUnicodeRuneValue)
	for _, attr := range attributes {
		if err := validateCompositeKeyAttribute(attr); err != nil {
			return "", err
		}
		b.WriteString(attr)
		b.WriteRune(minUnicodeRuneValue)
	}
	return b.String(), nil
}

// SplitCompositeKey returns the object type and attributes of a key built
// by CreateCompositeKey.
func SplitCompositeKey(key string) (string, []string, error) {
	if !strings.HasPrefix(key, compositeKeyNamespace) || !strings.HasSuffix(key, "\x00") || len(key) < 2 {
		return "", nil, fmt.Errorf("%w: %q is not a composite key", ErrInvalidCompositeKey, key)
	}
	var components []string
	start := 1
	for i := 1; i < len(key); i++ {
		if key[i] == minUnicodeRuneValue {
			components = append(components, key[start:i])
			start = i + 1
		}
	}
	return components[0], components[1:], nil
}

// IsCompositeKey reports whether key lives in the composite key namespace.
func IsCompositeKey(key string) bool {
	return strings.HasPrefix(key, compositeKeyNamespace)
}

// partialCompositeKeyRange returns the [start, end) range covering every
// composite key that begins with objectType and attributes.
func partialCompositeKeyRange(objectType string, attributes []string) (string, string, error) {
	start, err := CreateCompositeKey(objectType, attributes)
	if err != nil {
		return "", "", err
	}
	return start, start + string(rune(maxUnicodeRuneValue)), nil
}

func validateCompositeKeyAttribute(s string) error {
	if !utf8.ValidString(s) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidCompositeKey, s)
	}
	for i, r := range s {
		if r == minUnicodeRuneValue || r == maxUnicodeRuneValue {
			return fmt.Errorf("%w: %q contains U+%04X at byte %d", ErrInvalidCompositeKey, s, r, i)
		}
	}
	return nil
}
