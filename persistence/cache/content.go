package cache

import (
	"context"
	"strconv"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/identifier"
	"github.com/unkn0wn-root/tagcache/persistence"
)

type ContentHandler struct {
	h       *Handler
	backend persistence.ContentHandler

	content      *entityCache[int64, *persistence.Content]
	info         *entityCache[int64, *persistence.ContentInfo]
	infoByRemote *entityCache[string, *persistence.ContentInfo]
}

var _ persistence.ContentHandler = (*ContentHandler)(nil)

func newContentHandler(h *Handler, codecName string) (*ContentHandler, error) {
	contents, err := newStore[*persistence.Content](h, codecName)
	if err != nil {
		return nil, err
	}
	infos, err := newStore[*persistence.ContentInfo](h, codecName)
	if err != nil {
		return nil, err
	}
	c := &ContentHandler{h: h, backend: h.backend.ContentHandler()}
	c.content = newEntityCache[int64](h, identifier.KindContent, contents, c.contentTags)
	c.info = newEntityCache[int64](h, identifier.KindContentInfo, infos, c.infoTags)
	c.infoByRemote = newEntityCache[string](h, identifier.KindContentInfoByRemoteID, infos, c.infoTags)
	return c, nil
}

func (c *ContentHandler) infoTags(info *persistence.ContentInfo) []string {
	tags := []string{c.h.tag(identifier.KindContent, info.ID)}
	if info.MainLocationID != 0 {
		tags = append(tags, c.h.tag(identifier.KindLocation, info.MainLocationID))
	}
	return tags
}

func (c *ContentHandler) contentTags(content *persistence.Content) []string {
	return append(c.infoTags(&content.Info), c.h.tag(identifier.KindContentType, content.Info.ContentTypeID))
}

// versionSuffix separates entries per version and language selection.
// Version 0 is the current version.
func versionSuffix(versionNo int, translations []string) string {
	s := "-v" + strconv.Itoa(versionNo)
	for _, l := range translations {
		s += "-" + identifier.EscapeForCacheKey(l)
	}
	return s
}

func (c *ContentHandler) Create(ctx context.Context, cs persistence.ContentCreateStruct) (*persistence.Content, error) {
	c.h.plog.LogCall("content.create", tagcache.Fields{"struct": cs})
	return c.backend.Create(ctx, cs)
}

func (c *ContentHandler) Load(ctx context.Context, id int64, versionNo int, translations []string) (*persistence.Content, error) {
	args := tagcache.Fields{"id": id, "version": versionNo, "translations": translations}
	return c.content.load(ctx, "content.load", args, id, versionSuffix(versionNo, translations), nil,
		func(ctx context.Context) (*persistence.Content, error) {
			return c.backend.Load(ctx, id, versionNo, translations)
		})
}

// LoadContentList shares entries with Load of the current version.
func (c *ContentHandler) LoadContentList(ctx context.Context, ids []int64, translations []string) (map[int64]*persistence.Content, error) {
	suffix := versionSuffix(0, translations)
	suffixes := make(map[int64]string, len(ids))
	for _, id := range ids {
		suffixes[id] = suffix
	}
	return c.content.loadMany(ctx, "content.load_content_list", tagcache.Fields{"translations": translations}, ids, suffixes,
		func(ctx context.Context, missing []int64) (map[int64]*persistence.Content, error) {
			return c.backend.LoadContentList(ctx, missing, translations)
		})
}

func (c *ContentHandler) LoadContentInfo(ctx context.Context, id int64) (*persistence.ContentInfo, error) {
	return c.info.load(ctx, "content.load_content_info", tagcache.Fields{"id": id}, id, "", nil,
		func(ctx context.Context) (*persistence.ContentInfo, error) {
			return c.backend.LoadContentInfo(ctx, id)
		})
}

func (c *ContentHandler) LoadContentInfoList(ctx context.Context, ids []int64) (map[int64]*persistence.ContentInfo, error) {
	return c.info.loadMany(ctx, "content.load_content_info_list", nil, ids, nil, c.backend.LoadContentInfoList)
}

func (c *ContentHandler) LoadContentInfoByRemoteID(ctx context.Context, remoteID string) (*persistence.ContentInfo, error) {
	return c.infoByRemote.load(ctx, "content.load_content_info_by_remote_id", tagcache.Fields{"remote_id": remoteID}, remoteID, "", nil,
		func(ctx context.Context) (*persistence.ContentInfo, error) {
			return c.backend.LoadContentInfoByRemoteID(ctx, remoteID)
		})
}

func (c *ContentHandler) UpdateMetadata(ctx context.Context, id int64, us persistence.MetadataUpdateStruct) (*persistence.ContentInfo, error) {
	c.h.plog.LogCall("content.update_metadata", tagcache.Fields{"id": id, "struct": us})
	info, err := c.backend.UpdateMetadata(ctx, id, us)
	if err != nil {
		return nil, err
	}
	c.h.invalidate(ctx, "content.update_metadata", c.h.tag(identifier.KindContent, id))
	return info, nil
}

func (c *ContentHandler) UpdateFields(ctx context.Context, id int64, versionNo int, fields []persistence.Field) (*persistence.Content, error) {
	c.h.plog.LogCall("content.update_fields", tagcache.Fields{"id": id, "version": versionNo, "fields": len(fields)})
	content, err := c.backend.UpdateFields(ctx, id, versionNo, fields)
	if err != nil {
		return nil, err
	}
	c.h.invalidate(ctx, "content.update_fields", c.h.tag(identifier.KindContent, id))
	return content, nil
}

// DeleteContent also drops the subtrees of the content's locations, so their
// location_path tags are collected before the backend forgets them.
func (c *ContentHandler) DeleteContent(ctx context.Context, id int64) error {
	c.h.plog.LogCall("content.delete", tagcache.Fields{"id": id})
	tags := []string{c.h.tag(identifier.KindContent, id)}

	c.h.plog.LogCall("location.load_locations_by_content", tagcache.Fields{"content": id})
	locs, err := c.h.backend.LocationHandler().LoadLocationsByContent(ctx, id)
	if err != nil {
		c.h.log.Warn("could not resolve locations of deleted content", tagcache.Fields{"content": id, "err": err})
	}
	for _, l := range locs {
		tags = append(tags, c.h.tag(identifier.KindLocationPath, l.ID))
	}

	if err := c.backend.DeleteContent(ctx, id); err != nil {
		return err
	}
	c.h.invalidate(ctx, "content.delete", tags...)
	return nil
}

func (c *ContentHandler) CountBySection(ctx context.Context, sectionID int64) (int, error) {
	c.h.plog.LogCall("content.count_by_section", tagcache.Fields{"section": sectionID})
	return c.backend.CountBySection(ctx, sectionID)
}
