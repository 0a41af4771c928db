package identifier

import (
	"errors"
	"fmt"
	"strings"
)

// Every escape is '_' followed by one letter that no other escape uses, so the
// output of EscapeForCacheKey can be split back unambiguously.
var (
	escaper = strings.NewReplacer(
		"_", "__",
		"/", "_S",
		":", "_C",
		"(", "_O",
		")", "_P",
		"@", "_A",
		`\`, "_B",
		"{", "_L",
		"}", "_R",
		"-", "_D",
		" ", "_W",
		"#", "_H",
	)
	unescapes = map[byte]byte{
		'_': '_',
		'S': '/',
		'C': ':',
		'O': '(',
		'P': ')',
		'A': '@',
		'B': '\\',
		'L': '{',
		'R': '}',
		'D': '-',
		'W': ' ',
		'H': '#',
	}
)

var ErrBadEscape = errors.New("identifier: bad escape sequence")

// EscapeForCacheKey replaces characters that are reserved by cache stores or
// by the key layout itself. '#' is reserved for the hash suffix of shortened
// storage keys, so an escaped id can never mimic one. The mapping is injective: distinct inputs never
// produce the same output.
func EscapeForCacheKey(s string) string {
	return escaper.Replace(s)
}

// UnescapeCacheKey reverses EscapeForCacheKey.
func UnescapeCacheKey(s string) (string, error) {
	if strings.IndexByte(s, '_') < 0 {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '_' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 == len(s) {
			return "", fmt.Errorf("%w: dangling '_' at %d", ErrBadEscape, i)
		}
		r, ok := unescapes[s[i+1]]
		if !ok {
			return "", fmt.Errorf("%w: %q at %d", ErrBadEscape, s[i:i+2], i)
		}
		b.WriteByte(r)
		i++
	}
	return b.String(), nil
}
