// Package identifier derives cache keys and invalidation tags from entity
// kinds and ids.
//
// A key is the prefix, the short code of the kind, an optional generation
// marker and the escaped id parts:
//
//	ibx-s@1-42        GenerateKey("section", []any{42}, true)
//	ibx-sbi@1-media   GenerateKey("section_with_by_id", []any{"media"}, true)
//	ibx-c-42          GenerateTag("content", []any{42})
//
// Keys are storage addresses; tags only group keys for invalidation.
package identifier

import (
	"fmt"
	"strconv"
	"strings"
)

// Entity kinds with registered short codes.
const (
	KindSection               = "section"
	KindSectionWithByID       = "section_with_by_id"
	KindContent               = "content"
	KindContentInfo           = "content_info"
	KindContentInfoByRemoteID = "content_info_by_remote_id"
	KindContentType           = "content_type"
	KindLocation              = "location"
	KindLocationPath          = "location_path"
	KindContentLocations      = "content_locations"
	KindLocationByRemoteID    = "location_by_remote_id"
)

const (
	DefaultPrefix     = "ibx-"
	DefaultGeneration = 1

	partSep    = "-"
	uniqueMark = "@"
)

var defaultCodes = map[string]string{
	KindSection:               "s",
	KindSectionWithByID:       "sbi",
	KindContent:               "c",
	KindContentInfo:           "ci",
	KindContentInfoByRemoteID: "cibri",
	KindContentType:           "ct",
	KindLocation:              "l",
	KindLocationPath:          "lp",
	KindContentLocations:      "cl",
	KindLocationByRemoteID:    "lbri",
}

type Options struct {
	Prefix     string            // "" => "ibx-"
	Generation uint64            // 0 => 1; bump to orphan every unique key
	Codes      map[string]string // merged over the default kind codes
}

// Generator is immutable and safe for concurrent use.
type Generator struct {
	prefix string
	unique string
	codes  map[string]string
}

func New(opts Options) (*Generator, error) {
	g := &Generator{
		prefix: opts.Prefix,
		codes:  make(map[string]string, len(defaultCodes)+len(opts.Codes)),
	}
	if g.prefix == "" {
		g.prefix = DefaultPrefix
	}
	if strings.ContainsRune(g.prefix, '#') {
		return nil, fmt.Errorf("identifier: prefix %q must not contain '#'", g.prefix)
	}
	gen := opts.Generation
	if gen == 0 {
		gen = DefaultGeneration
	}
	g.unique = uniqueMark + strconv.FormatUint(gen, 10)

	for k, c := range defaultCodes {
		g.codes[k] = c
	}
	for k, c := range opts.Codes {
		if c == "" || EscapeForCacheKey(c) != c {
			return nil, fmt.Errorf("identifier: code %q for kind %q must be non-empty and need no escaping", c, k)
		}
		g.codes[k] = c
	}

	seen := make(map[string]string, len(g.codes))
	for k, c := range g.codes {
		if other, dup := seen[c]; dup {
			return nil, fmt.Errorf("identifier: kinds %q and %q share code %q", other, k, c)
		}
		seen[c] = k
	}
	return g, nil
}

// Default returns a generator with the default prefix, generation and codes.
func Default() *Generator {
	g, err := New(Options{})
	if err != nil {
		panic(err)
	}
	return g
}

// Prefix returns the configured key prefix.
func (g *Generator) Prefix() string { return g.prefix }

// unregisteredMark starts the code of a kind without a registered code.
// Registered codes never contain '_', so the two sets cannot overlap.
const unregisteredMark = "_K"

func (g *Generator) code(kind string) string {
	if c, ok := g.codes[kind]; ok {
		return c
	}
	return unregisteredMark + EscapeForCacheKey(kind)
}

// KeyPrefix returns the part of a key in front of the id, ready to be
// followed by EscapeForCacheKey(id).
func (g *Generator) KeyPrefix(kind string, appendUnique bool) string {
	var b strings.Builder
	b.WriteString(g.prefix)
	b.WriteString(g.code(kind))
	if appendUnique {
		b.WriteString(g.unique)
	}
	b.WriteString(partSep)
	return b.String()
}

// GenerateKey builds a storage key. With appendUnique the key carries the
// generation marker, so rotating the generation orphans it.
func (g *Generator) GenerateKey(kind string, parts []any, appendUnique bool) string {
	var b strings.Builder
	b.WriteString(g.prefix)
	b.WriteString(g.code(kind))
	if appendUnique {
		b.WriteString(g.unique)
	}
	for _, p := range parts {
		b.WriteString(partSep)
		b.WriteString(FormatPart(p))
	}
	return b.String()
}

// GenerateTag builds an invalidation tag. Tags never carry the generation.
func (g *Generator) GenerateTag(kind string, parts []any) string {
	return g.GenerateKey(kind, parts, false)
}

// FormatPart renders one id part as it appears in keys and tags.
func FormatPart(p any) string {
	switch v := p.(type) {
	case string:
		return EscapeForCacheKey(v)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case bool:
		if v {
			return "1"
		}
		return "0"
	case fmt.Stringer:
		return EscapeForCacheKey(v.String())
	default:
		return EscapeForCacheKey(fmt.Sprint(v))
	}
}
