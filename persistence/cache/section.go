package cache

import (
	"context"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/identifier"
	"github.com/unkn0wn-root/tagcache/persistence"
)

type SectionHandler struct {
	h       *Handler
	backend persistence.SectionHandler

	byID         *entityCache[int64, *persistence.Section]
	byIdentifier *entityCache[string, *persistence.Section]
}

var _ persistence.SectionHandler = (*SectionHandler)(nil)

func newSectionHandler(h *Handler, codecName string) (*SectionHandler, error) {
	store, err := newStore[*persistence.Section](h, codecName)
	if err != nil {
		return nil, err
	}
	tagger := func(s *persistence.Section) []string {
		return []string{h.tag(identifier.KindSection, s.ID)}
	}
	return &SectionHandler{
		h:            h,
		backend:      h.backend.SectionHandler(),
		byID:         newEntityCache[int64](h, identifier.KindSection, store, tagger),
		byIdentifier: newEntityCache[string](h, identifier.KindSectionWithByID, store, tagger),
	}, nil
}

func (s *SectionHandler) Create(ctx context.Context, name, ident string) (*persistence.Section, error) {
	s.h.plog.LogCall("section.create", tagcache.Fields{"name": name, "identifier": ident})
	return s.backend.Create(ctx, name, ident)
}

func (s *SectionHandler) Update(ctx context.Context, id int64, name, ident string) (*persistence.Section, error) {
	s.h.plog.LogCall("section.update", tagcache.Fields{"id": id, "name": name, "identifier": ident})
	section, err := s.backend.Update(ctx, id, name, ident)
	if err != nil {
		return nil, err
	}
	s.h.invalidate(ctx, "section.update", s.h.tag(identifier.KindSection, id))
	return section, nil
}

func (s *SectionHandler) Load(ctx context.Context, id int64) (*persistence.Section, error) {
	return s.byID.load(ctx, "section.load", tagcache.Fields{"id": id}, id, "", nil,
		func(ctx context.Context) (*persistence.Section, error) {
			return s.backend.Load(ctx, id)
		})
}

func (s *SectionHandler) LoadAll(ctx context.Context) ([]*persistence.Section, error) {
	s.h.plog.LogCall("section.load_all", nil)
	return s.backend.LoadAll(ctx)
}

func (s *SectionHandler) LoadByIdentifier(ctx context.Context, ident string) (*persistence.Section, error) {
	return s.byIdentifier.load(ctx, "section.load_by_identifier", tagcache.Fields{"identifier": ident}, ident, "", nil,
		func(ctx context.Context) (*persistence.Section, error) {
			return s.backend.LoadByIdentifier(ctx, ident)
		})
}

func (s *SectionHandler) Delete(ctx context.Context, id int64) error {
	s.h.plog.LogCall("section.delete", tagcache.Fields{"id": id})
	if err := s.backend.Delete(ctx, id); err != nil {
		return err
	}
	s.h.invalidate(ctx, "section.delete", s.h.tag(identifier.KindSection, id))
	return nil
}

// Assign changes the section of a content item, so the content entries are
// the ones that go stale.
func (s *SectionHandler) Assign(ctx context.Context, sectionID, contentID int64) error {
	s.h.plog.LogCall("section.assign", tagcache.Fields{"section": sectionID, "content": contentID})
	if err := s.backend.Assign(ctx, sectionID, contentID); err != nil {
		return err
	}
	s.h.invalidate(ctx, "section.assign", s.h.tag(identifier.KindContent, contentID))
	return nil
}

func (s *SectionHandler) AssignmentsCount(ctx context.Context, sectionID int64) (int, error) {
	s.h.plog.LogCall("section.assignments_count", tagcache.Fields{"section": sectionID})
	return s.backend.AssignmentsCount(ctx, sectionID)
}
