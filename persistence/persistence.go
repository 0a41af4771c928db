// Package persistence is the storage-facing interface of the repository
// layer: entity value types and one handler per entity kind behind a single
// Handler facade. Backends (persistence/sqlstore) and decorators
// (persistence/cache) implement the same interfaces, so callers cannot tell
// them apart.
package persistence

import "context"

// Handler gives access to the per-entity handlers.
type Handler interface {
	SectionHandler() SectionHandler
	ContentHandler() ContentHandler
	LocationHandler() LocationHandler
}

type SectionHandler interface {
	Create(ctx context.Context, name, identifier string) (*Section, error)
	Update(ctx context.Context, id int64, name, identifier string) (*Section, error)
	Load(ctx context.Context, id int64) (*Section, error)
	LoadAll(ctx context.Context) ([]*Section, error)
	LoadByIdentifier(ctx context.Context, identifier string) (*Section, error)
	Delete(ctx context.Context, id int64) error
	// Assign moves a content item into a section.
	Assign(ctx context.Context, sectionID, contentID int64) error
	AssignmentsCount(ctx context.Context, sectionID int64) (int, error)
}

type ContentHandler interface {
	Create(ctx context.Context, cs ContentCreateStruct) (*Content, error)
	// Load returns one version of a content item. versionNo 0 selects the
	// current version; translations filters fields by language, empty means
	// all languages.
	Load(ctx context.Context, id int64, versionNo int, translations []string) (*Content, error)
	// LoadContentList loads the current versions of ids. Missing ids are
	// absent from the result.
	LoadContentList(ctx context.Context, ids []int64, translations []string) (map[int64]*Content, error)
	LoadContentInfo(ctx context.Context, id int64) (*ContentInfo, error)
	LoadContentInfoList(ctx context.Context, ids []int64) (map[int64]*ContentInfo, error)
	LoadContentInfoByRemoteID(ctx context.Context, remoteID string) (*ContentInfo, error)
	UpdateMetadata(ctx context.Context, id int64, us MetadataUpdateStruct) (*ContentInfo, error)
	// UpdateFields replaces the given fields of a version, matched by
	// definition id and language.
	UpdateFields(ctx context.Context, id int64, versionNo int, fields []Field) (*Content, error)
	DeleteContent(ctx context.Context, id int64) error
	CountBySection(ctx context.Context, sectionID int64) (int, error)
}

type LocationHandler interface {
	// Create places content under ParentID; ParentID 0 creates a tree root.
	Create(ctx context.Context, cs LocationCreateStruct) (*Location, error)
	Load(ctx context.Context, id int64) (*Location, error)
	LoadList(ctx context.Context, ids []int64) (map[int64]*Location, error)
	LoadByRemoteID(ctx context.Context, remoteID string) (*Location, error)
	LoadLocationsByContent(ctx context.Context, contentID int64) ([]*Location, error)
	Update(ctx context.Context, id int64, us LocationUpdateStruct) (*Location, error)
	// RemoveSubtree deletes the location and all its descendants.
	RemoveSubtree(ctx context.Context, id int64) error
	ChildCount(ctx context.Context, parentID int64) (int, error)
}
