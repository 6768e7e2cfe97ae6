package schema

import (
	"sort"
	"strings"
	"unicode"

	"github.com/mesh-intelligence/relift/pkg/types"
)

// Resolve maps a requested identifier onto one of the live names. It tries,
// in order: exact match, ASCII case-insensitive match, canonical match
// (strip non-alphanumerics, lowercase), and a camel-to-snake rewrite
// retried case-insensitively. Failure yields an IdentifierNotFoundError
// enumerating the known names.
func Resolve(requested string, known []string) (string, error) {
	for _, k := range known {
		if k == requested {
			return k, nil
		}
	}

	lower := strings.ToLower(requested)
	for _, k := range known {
		if strings.ToLower(k) == lower {
			return k, nil
		}
	}

	canon := canonical(requested)
	for _, k := range known {
		if canonical(k) == canon {
			return k, nil
		}
	}

	snake := strings.ToLower(camelToSnake(requested))
	for _, k := range known {
		if strings.ToLower(k) == snake {
			return k, nil
		}
	}

	names := append([]string(nil), known...)
	sort.Strings(names)
	return "", &types.IdentifierNotFoundError{Requested: requested, Known: names}
}

// canonical strips every non-alphanumeric character and lowercases.
func canonical(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// camelToSnake inserts an underscore before any uppercase letter preceded
// by a lowercase letter or digit.
func camelToSnake(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) &&
			(unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
			b.WriteRune('_')
		}
		b.WriteRune(r)
	}
	return b.String()
}
