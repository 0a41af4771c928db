package sqlstore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/unkn0wn-root/tagcache/persistence"
)

type sectionRow struct {
	bun.BaseModel `bun:"table:sections,alias:s"`

	ID         int64  `bun:"id,pk,autoincrement"`
	Name       string `bun:"name,notnull"`
	Identifier string `bun:"identifier,notnull,unique"`
}

func (r *sectionRow) toSection() *persistence.Section {
	return &persistence.Section{ID: r.ID, Name: r.Name, Identifier: r.Identifier}
}

type contentRow struct {
	bun.BaseModel `bun:"table:contents,alias:c"`

	ID               int64     `bun:"id,pk,autoincrement"`
	ContentTypeID    int64     `bun:"content_type_id,notnull"`
	SectionID        int64     `bun:"section_id,notnull"`
	Name             string    `bun:"name,notnull"`
	RemoteID         string    `bun:"remote_id,notnull,unique"`
	MainLanguageCode string    `bun:"main_language_code,notnull"`
	MainLocationID   int64     `bun:"main_location_id,notnull,default:0"`
	CurrentVersionNo int       `bun:"current_version_no,notnull"`
	Published        time.Time `bun:"published,notnull"`
	Modified         time.Time `bun:"modified,notnull"`
}

func (r *contentRow) toInfo() *persistence.ContentInfo {
	return &persistence.ContentInfo{
		ID:               r.ID,
		ContentTypeID:    r.ContentTypeID,
		SectionID:        r.SectionID,
		Name:             r.Name,
		RemoteID:         r.RemoteID,
		MainLanguageCode: r.MainLanguageCode,
		MainLocationID:   r.MainLocationID,
		CurrentVersionNo: r.CurrentVersionNo,
		Published:        r.Published.UTC(),
		Modified:         r.Modified.UTC(),
	}
}

type versionRow struct {
	bun.BaseModel `bun:"table:content_versions,alias:v"`

	ContentID int64     `bun:"content_id,pk"`
	VersionNo int       `bun:"version_no,pk"`
	Modified  time.Time `bun:"modified,notnull"`
}

type fieldRow struct {
	bun.BaseModel `bun:"table:content_fields,alias:f"`

	ContentID    int64  `bun:"content_id,pk"`
	VersionNo    int    `bun:"version_no,pk"`
	DefinitionID int64  `bun:"definition_id,pk"`
	LanguageCode string `bun:"language_code,pk"`
	Identifier   string `bun:"identifier,notnull"`
	Value        string `bun:"value,notnull"`
}

func (r *fieldRow) toField() persistence.Field {
	return persistence.Field{
		DefinitionID: r.DefinitionID,
		Identifier:   r.Identifier,
		LanguageCode: r.LanguageCode,
		Value:        r.Value,
	}
}

type locationRow struct {
	bun.BaseModel `bun:"table:locations,alias:l"`

	ID         int64  `bun:"id,pk,autoincrement"`
	ParentID   int64  `bun:"parent_id,notnull"`
	ContentID  int64  `bun:"content_id,notnull"`
	Depth      int    `bun:"depth,notnull"`
	PathString string `bun:"path_string,notnull"`
	Priority   int    `bun:"priority,notnull"`
	Hidden     bool   `bun:"hidden,notnull"`
	RemoteID   string `bun:"remote_id,notnull,unique"`
}

func (r *locationRow) toLocation() *persistence.Location {
	return &persistence.Location{
		ID:         r.ID,
		ParentID:   r.ParentID,
		ContentID:  r.ContentID,
		Depth:      r.Depth,
		PathString: r.PathString,
		Priority:   r.Priority,
		Hidden:     r.Hidden,
		RemoteID:   r.RemoteID,
	}
}
