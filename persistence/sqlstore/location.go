package sqlstore

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/unkn0wn-root/tagcache/persistence"
)

const kindLocation = "location"

type locationHandler struct{ h *Handler }

// Create inserts the location and, when the content has no main location
// yet, makes it the main one.
func (l *locationHandler) Create(ctx context.Context, cs persistence.LocationCreateStruct) (*persistence.Location, error) {
	if err := cs.Validate(); err != nil {
		return nil, persistence.InvalidArgument("location", err)
	}
	row := &locationRow{
		ParentID:  cs.ParentID,
		ContentID: cs.ContentID,
		Priority:  cs.Priority,
		Hidden:    cs.Hidden,
		RemoteID:  cs.RemoteID,
	}
	if row.RemoteID == "" {
		row.RemoteID = uuid.NewString()
	}

	err := l.h.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		content := new(contentRow)
		if err := tx.NewSelect().Model(content).Where("id = ?", cs.ContentID).Scan(ctx); err != nil {
			return notFound(err, kindContent, cs.ContentID)
		}

		parentPath := "/"
		if cs.ParentID != 0 {
			parent := new(locationRow)
			if err := tx.NewSelect().Model(parent).Where("id = ?", cs.ParentID).Scan(ctx); err != nil {
				return notFound(err, kindLocation, cs.ParentID)
			}
			parentPath = parent.PathString
			row.Depth = parent.Depth + 1
		}

		// the path needs the generated id
		row.PathString = parentPath
		if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
			return err
		}
		row.PathString = persistence.BuildPathString(parentPath, row.ID)
		if _, err := tx.NewUpdate().Model(row).Column("path_string").WherePK().Exec(ctx); err != nil {
			return err
		}

		if content.MainLocationID == 0 {
			_, err := tx.NewUpdate().Model((*contentRow)(nil)).
				Set("main_location_id = ?", row.ID).
				Where("id = ?", content.ID).
				Exec(ctx)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row.toLocation(), nil
}

func (l *locationHandler) Load(ctx context.Context, id int64) (*persistence.Location, error) {
	row := new(locationRow)
	if err := l.h.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, kindLocation, id)
	}
	return row.toLocation(), nil
}

func (l *locationHandler) LoadList(ctx context.Context, ids []int64) (map[int64]*persistence.Location, error) {
	out := make(map[int64]*persistence.Location, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []locationRow
	if err := l.h.db.NewSelect().Model(&rows).Where("id IN (?)", bun.In(ids)).Scan(ctx); err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = rows[i].toLocation()
	}
	return out, nil
}

func (l *locationHandler) LoadByRemoteID(ctx context.Context, remoteID string) (*persistence.Location, error) {
	row := new(locationRow)
	if err := l.h.db.NewSelect().Model(row).Where("remote_id = ?", remoteID).Scan(ctx); err != nil {
		return nil, notFound(err, kindLocation, remoteID)
	}
	return row.toLocation(), nil
}

func (l *locationHandler) LoadLocationsByContent(ctx context.Context, contentID int64) ([]*persistence.Location, error) {
	var rows []locationRow
	if err := l.h.db.NewSelect().Model(&rows).Where("content_id = ?", contentID).Order("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	out := make([]*persistence.Location, len(rows))
	for i := range rows {
		out[i] = rows[i].toLocation()
	}
	return out, nil
}

func (l *locationHandler) Update(ctx context.Context, id int64, us persistence.LocationUpdateStruct) (*persistence.Location, error) {
	if err := us.Validate(); err != nil {
		return nil, persistence.InvalidArgument("location", err)
	}
	row := new(locationRow)
	if err := l.h.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		return nil, notFound(err, kindLocation, id)
	}
	row.Priority = us.Priority
	row.Hidden = us.Hidden
	if us.RemoteID != "" {
		row.RemoteID = us.RemoteID
	}
	if _, err := l.h.db.NewUpdate().Model(row).Column("priority", "hidden", "remote_id").WherePK().Exec(ctx); err != nil {
		return nil, err
	}
	return row.toLocation(), nil
}

func (l *locationHandler) RemoveSubtree(ctx context.Context, id int64) error {
	return l.h.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		row := new(locationRow)
		if err := tx.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
			return notFound(err, kindLocation, id)
		}
		return removeSubtree(ctx, tx, row.PathString)
	})
}

func (l *locationHandler) ChildCount(ctx context.Context, parentID int64) (int, error) {
	return l.h.db.NewSelect().Model((*locationRow)(nil)).Where("parent_id = ?", parentID).Count(ctx)
}

// removeSubtree deletes every location whose path starts with path.
func removeSubtree(ctx context.Context, tx bun.Tx, path string) error {
	if path == "" || path == "/" || !strings.HasSuffix(path, "/") {
		return persistence.InvalidArgument("location path", errBadPath(path))
	}
	_, err := tx.NewDelete().Model((*locationRow)(nil)).
		Where("path_string LIKE ?", path+"%").
		Exec(ctx)
	return err
}

type errBadPath string

func (e errBadPath) Error() string { return "malformed path " + string(e) }
