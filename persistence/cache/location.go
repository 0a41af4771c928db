package cache

import (
	"context"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/identifier"
	"github.com/unkn0wn-root/tagcache/persistence"
)

type LocationHandler struct {
	h       *Handler
	backend persistence.LocationHandler

	location  *entityCache[int64, *persistence.Location]
	byRemote  *entityCache[string, *persistence.Location]
	byContent *entityCache[int64, []*persistence.Location]
}

var _ persistence.LocationHandler = (*LocationHandler)(nil)

func newLocationHandler(h *Handler, codecName string) (*LocationHandler, error) {
	locations, err := newStore[*persistence.Location](h, codecName)
	if err != nil {
		return nil, err
	}
	lists, err := newStore[[]*persistence.Location](h, codecName)
	if err != nil {
		return nil, err
	}
	l := &LocationHandler{h: h, backend: h.backend.LocationHandler()}
	l.location = newEntityCache[int64](h, identifier.KindLocation, locations, l.locationTags)
	l.byRemote = newEntityCache[string](h, identifier.KindLocationByRemoteID, locations, l.locationTags)
	l.byContent = newEntityCache[int64](h, identifier.KindContentLocations, lists, l.listTags)
	return l, nil
}

// locationTags covers the location, its content and every subtree it sits in.
func (l *LocationHandler) locationTags(loc *persistence.Location) []string {
	path := loc.Path()
	tags := make([]string, 0, 2+len(path))
	tags = append(tags,
		l.h.tag(identifier.KindLocation, loc.ID),
		l.h.tag(identifier.KindContent, loc.ContentID))
	for _, id := range path {
		tags = append(tags, l.h.tag(identifier.KindLocationPath, id))
	}
	return tags
}

func (l *LocationHandler) listTags(locs []*persistence.Location) []string {
	var tags []string
	for _, loc := range locs {
		tags = append(tags, l.locationTags(loc)...)
	}
	return tags
}

// Create can change the main location of the content and always changes the
// content's location list.
func (l *LocationHandler) Create(ctx context.Context, cs persistence.LocationCreateStruct) (*persistence.Location, error) {
	l.h.plog.LogCall("location.create", tagcache.Fields{"struct": cs})
	loc, err := l.backend.Create(ctx, cs)
	if err != nil {
		return nil, err
	}
	l.h.invalidate(ctx, "location.create", l.h.tag(identifier.KindContent, cs.ContentID))
	return loc, nil
}

func (l *LocationHandler) Load(ctx context.Context, id int64) (*persistence.Location, error) {
	return l.location.load(ctx, "location.load", tagcache.Fields{"id": id}, id, "", nil,
		func(ctx context.Context) (*persistence.Location, error) {
			return l.backend.Load(ctx, id)
		})
}

func (l *LocationHandler) LoadList(ctx context.Context, ids []int64) (map[int64]*persistence.Location, error) {
	return l.location.loadMany(ctx, "location.load_list", nil, ids, nil, l.backend.LoadList)
}

func (l *LocationHandler) LoadByRemoteID(ctx context.Context, remoteID string) (*persistence.Location, error) {
	return l.byRemote.load(ctx, "location.load_by_remote_id", tagcache.Fields{"remote_id": remoteID}, remoteID, "", nil,
		func(ctx context.Context) (*persistence.Location, error) {
			return l.backend.LoadByRemoteID(ctx, remoteID)
		})
}

// LoadLocationsByContent is tagged with the content as well, so an empty
// list is still invalidated when a location is added.
func (l *LocationHandler) LoadLocationsByContent(ctx context.Context, contentID int64) ([]*persistence.Location, error) {
	extra := []string{l.h.tag(identifier.KindContent, contentID)}
	return l.byContent.load(ctx, "location.load_locations_by_content", tagcache.Fields{"content": contentID}, contentID, "", extra,
		func(ctx context.Context) ([]*persistence.Location, error) {
			return l.backend.LoadLocationsByContent(ctx, contentID)
		})
}

func (l *LocationHandler) Update(ctx context.Context, id int64, us persistence.LocationUpdateStruct) (*persistence.Location, error) {
	l.h.plog.LogCall("location.update", tagcache.Fields{"id": id, "struct": us})
	loc, err := l.backend.Update(ctx, id, us)
	if err != nil {
		return nil, err
	}
	l.h.invalidate(ctx, "location.update", l.h.tag(identifier.KindLocationPath, id))
	return loc, nil
}

func (l *LocationHandler) RemoveSubtree(ctx context.Context, id int64) error {
	l.h.plog.LogCall("location.remove_subtree", tagcache.Fields{"id": id})
	if err := l.backend.RemoveSubtree(ctx, id); err != nil {
		return err
	}
	l.h.invalidate(ctx, "location.remove_subtree", l.h.tag(identifier.KindLocationPath, id))
	return nil
}

func (l *LocationHandler) ChildCount(ctx context.Context, parentID int64) (int, error) {
	l.h.plog.LogCall("location.child_count", tagcache.Fields{"parent": parentID})
	return l.backend.ChildCount(ctx, parentID)
}
