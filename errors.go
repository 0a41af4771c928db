package tagcache

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNoProvider  = errors.New("tagcache: provider is required")
	ErrNoNamespace = errors.New("tagcache: namespace is required")
)

// InvalidateError reports the tags whose version bump failed.
// Tags not listed were invalidated.
type InvalidateError struct {
	Failed map[string]error
}

func (e *InvalidateError) Error() string {
	tags := e.tags()
	switch len(tags) {
	case 0:
		return "invalidate: unknown error"
	case 1:
		return fmt.Sprintf("invalidate tag %q: %v", tags[0], e.Failed[tags[0]])
	default:
		parts := make([]string, 0, len(tags))
		for _, t := range tags {
			parts = append(parts, fmt.Sprintf("%q: %v", t, e.Failed[t]))
		}
		return fmt.Sprintf("invalidate %d tags failed: %s", len(tags), strings.Join(parts, "; "))
	}
}

func (e *InvalidateError) Unwrap() []error {
	tags := e.tags()
	errs := make([]error, 0, len(tags))
	for _, t := range tags {
		errs = append(errs, e.Failed[t])
	}
	return errs
}

func (e *InvalidateError) tags() []string {
	tags := make([]string, 0, len(e.Failed))
	for t := range e.Failed {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
