package sqlstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/unkn0wn-root/tagcache/persistence"
)

const kindContent = "content"

type contentHandler struct{ h *Handler }

func (c *contentHandler) Create(ctx context.Context, cs persistence.ContentCreateStruct) (*persistence.Content, error) {
	if err := cs.Validate(); err != nil {
		return nil, persistence.InvalidArgument("content", err)
	}
	now := c.h.now()
	row := &contentRow{
		ContentTypeID:    cs.ContentTypeID,
		SectionID:        cs.SectionID,
		Name:             cs.Name,
		RemoteID:         cs.RemoteID,
		MainLanguageCode: cs.MainLanguageCode,
		CurrentVersionNo: 1,
		Published:        now,
		Modified:         now,
	}
	if row.RemoteID == "" {
		row.RemoteID = uuid.NewString()
	}

	err := c.h.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
		v := &versionRow{ContentID: row.ID, VersionNo: 1, Modified: now}
		if _, err := tx.NewInsert().Model(v).Exec(ctx); err != nil {
			return err
		}
		if len(cs.Fields) == 0 {
			return nil
		}
		fields := toFieldRows(row.ID, 1, cs.Fields)
		_, err := tx.NewInsert().Model(&fields).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.Load(ctx, row.ID, 1, nil)
}

func (c *contentHandler) Load(ctx context.Context, id int64, versionNo int, translations []string) (*persistence.Content, error) {
	row := new(contentRow)
	if err := c.h.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, kindContent, id)
	}
	if versionNo == 0 {
		versionNo = row.CurrentVersionNo
	} else {
		exists, err := c.h.db.NewSelect().Model((*versionRow)(nil)).
			Where("content_id = ? AND version_no = ?", id, versionNo).
			Exists(ctx)
		if err != nil {
			return nil, err
		}
		if !exists {
			return nil, persistence.NewNotFound("content version", fmt.Sprintf("%d/%d", id, versionNo))
		}
	}

	var fields []fieldRow
	q := c.h.db.NewSelect().Model(&fields).
		Where("content_id = ? AND version_no = ?", id, versionNo)
	if len(translations) > 0 {
		q = q.Where("language_code IN (?)", bun.In(translations))
	}
	if err := q.Order("definition_id ASC", "language_code ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return buildContent(row, versionNo, fields), nil
}

func (c *contentHandler) LoadContentList(ctx context.Context, ids []int64, translations []string) (map[int64]*persistence.Content, error) {
	out := make(map[int64]*persistence.Content, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []contentRow
	if err := c.h.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for i := range rows {
		content, err := c.Load(ctx, rows[i].ID, rows[i].CurrentVersionNo, translations)
		if err != nil {
			if persistence.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		out[rows[i].ID] = content
	}
	return out, nil
}

func (c *contentHandler) LoadContentInfo(ctx context.Context, id int64) (*persistence.ContentInfo, error) {
	row := new(contentRow)
	if err := c.h.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, kindContent, id)
	}
	return row.toInfo(), nil
}

func (c *contentHandler) LoadContentInfoList(ctx context.Context, ids []int64) (map[int64]*persistence.ContentInfo, error) {
	out := make(map[int64]*persistence.ContentInfo, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []contentRow
	if err := c.h.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = rows[i].toInfo()
	}
	return out, nil
}

func (c *contentHandler) LoadContentInfoByRemoteID(ctx context.Context, remoteID string) (*persistence.ContentInfo, error) {
	row := new(contentRow)
	if err := c.h.db.NewSelect().Model(row).Where("remote_id = ?", remoteID).Scan(ctx); err != nil {
		return nil, notFound(err, kindContent, remoteID)
	}
	return row.toInfo(), nil
}

func (c *contentHandler) UpdateMetadata(ctx context.Context, id int64, us persistence.MetadataUpdateStruct) (*persistence.ContentInfo, error) {
	if err := us.Validate(); err != nil {
		return nil, persistence.InvalidArgument("content metadata", err)
	}
	row := new(contentRow)
	if err := c.h.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, kindContent, id)
	}
	if us.Name != "" {
		row.Name = us.Name
	}
	if us.RemoteID != "" {
		row.RemoteID = us.RemoteID
	}
	if us.MainLanguageCode != "" {
		row.MainLanguageCode = us.MainLanguageCode
	}
	if us.MainLocationID != 0 {
		row.MainLocationID = us.MainLocationID
	}
	if !us.Published.IsZero() {
		row.Published = us.Published.UTC()
	}
	row.Modified = c.h.now()

	if _, err := c.h.db.NewUpdate().Model(row).WherePK().Exec(ctx); err != nil {
		return nil, err
	}
	return row.toInfo(), nil
}

func (c *contentHandler) UpdateFields(ctx context.Context, id int64, versionNo int, fields []persistence.Field) (*persistence.Content, error) {
	if err := persistence.ValidateFields(fields); err != nil {
		return nil, persistence.InvalidArgument("content fields", err)
	}
	// resolves versionNo 0 and checks existence
	current, err := c.Load(ctx, id, versionNo, nil)
	if err != nil {
		return nil, err
	}
	versionNo = current.VersionNo
	now := c.h.now()

	err = c.h.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		rows := toFieldRows(id, versionNo, fields)
		_, err := tx.NewInsert().Model(&rows).
			On("CONFLICT (content_id, version_no, definition_id, language_code) DO UPDATE").
			Set("identifier = EXCLUDED.identifier").
			Set("value = EXCLUDED.value").
			Exec(ctx)
		if err != nil {
			return err
		}
		if _, err := tx.NewUpdate().Model((*versionRow)(nil)).
			Set("modified = ?", now).
			Where("content_id = ? AND version_no = ?", id, versionNo).
			Exec(ctx); err != nil {
			return err
		}
		_, err = tx.NewUpdate().Model((*contentRow)(nil)).
			Set("modified = ?", now).
			Where("id = ?", id).
			Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c.Load(ctx, id, versionNo, nil)
}

// DeleteContent removes the content with its versions, fields and the
// subtrees of all its locations.
func (c *contentHandler) DeleteContent(ctx context.Context, id int64) error {
	return c.h.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*contentRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return err
		}
		if err := mustAffect(res, kindContent, id); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*versionRow)(nil)).Where("content_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*fieldRow)(nil)).Where("content_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		var locs []locationRow
		if err := tx.NewSelect().Model(&locs).Where("content_id = ?", id).Scan(ctx); err != nil {
			return err
		}
		for i := range locs {
			if err := removeSubtree(ctx, tx, locs[i].PathString); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c *contentHandler) CountBySection(ctx context.Context, sectionID int64) (int, error) {
	return c.h.db.NewSelect().Model((*contentRow)(nil)).Where("section_id = ?", sectionID).Count(ctx)
}

func toFieldRows(contentID int64, versionNo int, fields []persistence.Field) []fieldRow {
	rows := make([]fieldRow, len(fields))
	for i, f := range fields {
		rows[i] = fieldRow{
			ContentID:    contentID,
			VersionNo:    versionNo,
			DefinitionID: f.DefinitionID,
			LanguageCode: f.LanguageCode,
			Identifier:   f.Identifier,
			Value:        f.Value,
		}
	}
	return rows
}

func buildContent(row *contentRow, versionNo int, fields []fieldRow) *persistence.Content {
	content := &persistence.Content{
		Info:      *row.toInfo(),
		VersionNo: versionNo,
		Fields:    make([]persistence.Field, len(fields)),
	}
	langs := make(map[string]struct{})
	for i := range fields {
		content.Fields[i] = fields[i].toField()
		langs[fields[i].LanguageCode] = struct{}{}
	}
	for l := range langs {
		content.Languages = append(content.Languages, l)
	}
	sort.Strings(content.Languages)
	return content
}
