// Package cache decorates a persistence.Handler with a tag-aware read-through
// cache. Loads are served from the cache when possible; every mutation goes
// to the backend first and invalidates the tags of what it changed.
//
// Tags follow the entity relations: content entries carry their content and
// content type tags, locations carry the tags of their content and of every
// ancestor's subtree (location_path), so one invalidation reaches all
// derived entries.
package cache

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/identifier"
	"github.com/unkn0wn-root/tagcache/persistence"
)

type Options struct {
	Keys        *identifier.Generator // nil => identifier.Default()
	Codec       string                // see codec.ByName; "" => msgpack
	Logger      tagcache.Logger       // nil => NopLogger
	CallLogging bool                  // keep recent calls in the PersistenceLogger
}

// Handler implements persistence.Handler over a backend and a cache pool.
type Handler struct {
	backend persistence.Handler
	pool    *tagcache.Pool
	keys    *identifier.Generator
	log     tagcache.Logger
	plog    *PersistenceLogger

	sections  *SectionHandler
	contents  *ContentHandler
	locations *LocationHandler
}

var _ persistence.Handler = (*Handler)(nil)

func NewHandler(backend persistence.Handler, pool *tagcache.Pool, opts Options) (*Handler, error) {
	if backend == nil || pool == nil {
		return nil, fmt.Errorf("cache: backend and pool are required")
	}
	h := &Handler{
		backend: backend,
		pool:    pool,
		keys:    opts.Keys,
		log:     opts.Logger,
	}
	if h.keys == nil {
		h.keys = identifier.Default()
	}
	if h.log == nil {
		h.log = tagcache.NopLogger{}
	}
	h.plog = NewPersistenceLogger(h.log, opts.CallLogging)

	var err error
	if h.sections, err = newSectionHandler(h, opts.Codec); err != nil {
		return nil, err
	}
	if h.contents, err = newContentHandler(h, opts.Codec); err != nil {
		return nil, err
	}
	if h.locations, err = newLocationHandler(h, opts.Codec); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Handler) SectionHandler() persistence.SectionHandler   { return h.sections }
func (h *Handler) ContentHandler() persistence.ContentHandler   { return h.contents }
func (h *Handler) LocationHandler() persistence.LocationHandler { return h.locations }

// Logger returns the call and hit/miss recorder.
func (h *Handler) Logger() *PersistenceLogger { return h.plog }

// Pool returns the cache pool shared by all entity stores.
func (h *Handler) Pool() *tagcache.Pool { return h.pool }

func (h *Handler) tag(kind string, id any) string {
	return h.keys.GenerateTag(kind, []any{id})
}

// invalidate never fails the mutation that triggered it; a failed tag keeps
// its entries until they expire or the next successful invalidation.
func (h *Handler) invalidate(ctx context.Context, method string, tags ...string) {
	if err := h.pool.InvalidateTags(ctx, tags...); err != nil {
		h.log.Error("tag invalidation failed", tagcache.Fields{"method": method, "tags": tags, "err": err})
	}
}

func newStore[V any](h *Handler, codecName string) (tagcache.Store[V], error) {
	c, err := codec.ByName[V](codecName)
	if err != nil {
		return nil, err
	}
	return tagcache.NewStore[V](h.pool, c), nil
}
