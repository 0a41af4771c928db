package cache

import (
	"context"
	"sort"
	"sync"

	"github.com/unkn0wn-root/tagcache/persistence"
)

// fakeBackend is an in-memory persistence.Handler that counts calls per
// method.
type fakeBackend struct {
	mu        sync.Mutex
	calls     map[string]int
	sections  map[int64]*persistence.Section
	contents  map[int64]*persistence.Content
	locations map[int64]*persistence.Location
	nextID    int64

	// loadHook, when set, runs inside section Load before the lookup.
	loadHook func()
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		calls:     map[string]int{},
		sections:  map[int64]*persistence.Section{},
		contents:  map[int64]*persistence.Content{},
		locations: map[int64]*persistence.Location{},
		nextID:    100,
	}
}

func (f *fakeBackend) SectionHandler() persistence.SectionHandler   { return fakeSections{f} }
func (f *fakeBackend) ContentHandler() persistence.ContentHandler   { return fakeContents{f} }
func (f *fakeBackend) LocationHandler() persistence.LocationHandler { return fakeLocations{f} }

func (f *fakeBackend) track(method string) {
	f.mu.Lock()
	f.calls[method]++
	f.mu.Unlock()
}

func (f *fakeBackend) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func (f *fakeBackend) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeBackend) addSection(id int64, name, ident string) {
	f.sections[id] = &persistence.Section{ID: id, Name: name, Identifier: ident}
}

func (f *fakeBackend) addContent(id, typeID, sectionID int64, remoteID string, fields ...persistence.Field) {
	c := &persistence.Content{
		Info: persistence.ContentInfo{
			ID: id, ContentTypeID: typeID, SectionID: sectionID, Name: remoteID,
			RemoteID: remoteID, MainLanguageCode: "eng-GB", CurrentVersionNo: 1,
		},
		VersionNo: 1,
		Fields:    fields,
	}
	f.contents[id] = c
}

func (f *fakeBackend) addLocation(id, parentID, contentID int64) *persistence.Location {
	parentPath := "/"
	depth := 0
	if p, ok := f.locations[parentID]; ok {
		parentPath = p.PathString
		depth = p.Depth + 1
	}
	l := &persistence.Location{
		ID: id, ParentID: parentID, ContentID: contentID, Depth: depth,
		PathString: persistence.BuildPathString(parentPath, id),
	}
	f.locations[id] = l
	if c, ok := f.contents[contentID]; ok && c.Info.MainLocationID == 0 {
		c.Info.MainLocationID = id
	}
	return l
}

type fakeSections struct{ f *fakeBackend }

func (s fakeSections) Create(_ context.Context, name, ident string) (*persistence.Section, error) {
	s.f.track("section.Create")
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	sec := &persistence.Section{ID: s.f.id(), Name: name, Identifier: ident}
	s.f.sections[sec.ID] = sec
	return copySection(sec), nil
}

func (s fakeSections) Update(_ context.Context, id int64, name, ident string) (*persistence.Section, error) {
	s.f.track("section.Update")
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	sec, ok := s.f.sections[id]
	if !ok {
		return nil, persistence.NewNotFound("section", id)
	}
	sec.Name, sec.Identifier = name, ident
	return copySection(sec), nil
}

func (s fakeSections) Load(ctx context.Context, id int64) (*persistence.Section, error) {
	s.f.track("section.Load")
	if s.f.loadHook != nil {
		s.f.loadHook()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	sec, ok := s.f.sections[id]
	if !ok {
		return nil, persistence.NewNotFound("section", id)
	}
	return copySection(sec), nil
}

func (s fakeSections) LoadAll(context.Context) ([]*persistence.Section, error) {
	s.f.track("section.LoadAll")
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	out := make([]*persistence.Section, 0, len(s.f.sections))
	for _, sec := range s.f.sections {
		out = append(out, copySection(sec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s fakeSections) LoadByIdentifier(_ context.Context, ident string) (*persistence.Section, error) {
	s.f.track("section.LoadByIdentifier")
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	for _, sec := range s.f.sections {
		if sec.Identifier == ident {
			return copySection(sec), nil
		}
	}
	return nil, persistence.NewNotFound("section", ident)
}

func (s fakeSections) Delete(_ context.Context, id int64) error {
	s.f.track("section.Delete")
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	if _, ok := s.f.sections[id]; !ok {
		return persistence.NewNotFound("section", id)
	}
	delete(s.f.sections, id)
	return nil
}

func (s fakeSections) Assign(_ context.Context, sectionID, contentID int64) error {
	s.f.track("section.Assign")
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	c, ok := s.f.contents[contentID]
	if !ok {
		return persistence.NewNotFound("content", contentID)
	}
	c.Info.SectionID = sectionID
	return nil
}

func (s fakeSections) AssignmentsCount(_ context.Context, sectionID int64) (int, error) {
	s.f.track("section.AssignmentsCount")
	s.f.mu.Lock()
	defer s.f.mu.Unlock()
	n := 0
	for _, c := range s.f.contents {
		if c.Info.SectionID == sectionID {
			n++
		}
	}
	return n, nil
}

type fakeContents struct{ f *fakeBackend }

func (c fakeContents) Create(_ context.Context, cs persistence.ContentCreateStruct) (*persistence.Content, error) {
	c.f.track("content.Create")
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	id := c.f.id()
	c.f.addContent(id, cs.ContentTypeID, cs.SectionID, cs.RemoteID, cs.Fields...)
	return copyContent(c.f.contents[id], nil), nil
}

func (c fakeContents) Load(_ context.Context, id int64, _ int, translations []string) (*persistence.Content, error) {
	c.f.track("content.Load")
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	content, ok := c.f.contents[id]
	if !ok {
		return nil, persistence.NewNotFound("content", id)
	}
	return copyContent(content, translations), nil
}

func (c fakeContents) LoadContentList(_ context.Context, ids []int64, translations []string) (map[int64]*persistence.Content, error) {
	c.f.track("content.LoadContentList")
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	out := map[int64]*persistence.Content{}
	for _, id := range ids {
		if content, ok := c.f.contents[id]; ok {
			out[id] = copyContent(content, translations)
		}
	}
	return out, nil
}

func (c fakeContents) LoadContentInfo(_ context.Context, id int64) (*persistence.ContentInfo, error) {
	c.f.track("content.LoadContentInfo")
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	content, ok := c.f.contents[id]
	if !ok {
		return nil, persistence.NewNotFound("content", id)
	}
	info := content.Info
	return &info, nil
}

func (c fakeContents) LoadContentInfoList(_ context.Context, ids []int64) (map[int64]*persistence.ContentInfo, error) {
	c.f.track("content.LoadContentInfoList")
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	out := map[int64]*persistence.ContentInfo{}
	for _, id := range ids {
		if content, ok := c.f.contents[id]; ok {
			info := content.Info
			out[id] = &info
		}
	}
	return out, nil
}

func (c fakeContents) LoadContentInfoByRemoteID(_ context.Context, remoteID string) (*persistence.ContentInfo, error) {
	c.f.track("content.LoadContentInfoByRemoteID")
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	for _, content := range c.f.contents {
		if content.Info.RemoteID == remoteID {
			info := content.Info
			return &info, nil
		}
	}
	return nil, persistence.NewNotFound("content", remoteID)
}

func (c fakeContents) UpdateMetadata(_ context.Context, id int64, us persistence.MetadataUpdateStruct) (*persistence.ContentInfo, error) {
	c.f.track("content.UpdateMetadata")
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	content, ok := c.f.contents[id]
	if !ok {
		return nil, persistence.NewNotFound("content", id)
	}
	if us.Name != "" {
		content.Info.Name = us.Name
	}
	if us.RemoteID != "" {
		content.Info.RemoteID = us.RemoteID
	}
	info := content.Info
	return &info, nil
}

func (c fakeContents) UpdateFields(_ context.Context, id int64, _ int, fields []persistence.Field) (*persistence.Content, error) {
	c.f.track("content.UpdateFields")
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	content, ok := c.f.contents[id]
	if !ok {
		return nil, persistence.NewNotFound("content", id)
	}
	for _, nf := range fields {
		replaced := false
		for i, of := range content.Fields {
			if of.DefinitionID == nf.DefinitionID && of.LanguageCode == nf.LanguageCode {
				content.Fields[i] = nf
				replaced = true
			}
		}
		if !replaced {
			content.Fields = append(content.Fields, nf)
		}
	}
	return copyContent(content, nil), nil
}

func (c fakeContents) DeleteContent(_ context.Context, id int64) error {
	c.f.track("content.DeleteContent")
	c.f.mu.Lock()
	defer c.f.mu.Unlock()
	if _, ok := c.f.contents[id]; !ok {
		return persistence.NewNotFound("content", id)
	}
	delete(c.f.contents, id)
	for lid, l := range c.f.locations {
		if l.ContentID == id {
			c.f.removeSubtreeLocked(lid)
		}
	}
	return nil
}

func (c fakeContents) CountBySection(ctx context.Context, sectionID int64) (int, error) {
	return fakeSections(c).AssignmentsCount(ctx, sectionID)
}

type fakeLocations struct{ f *fakeBackend }

func (l fakeLocations) Create(_ context.Context, cs persistence.LocationCreateStruct) (*persistence.Location, error) {
	l.f.track("location.Create")
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	if _, ok := l.f.contents[cs.ContentID]; !ok {
		return nil, persistence.NewNotFound("content", cs.ContentID)
	}
	loc := l.f.addLocation(l.f.id(), cs.ParentID, cs.ContentID)
	cp := *loc
	return &cp, nil
}

func (l fakeLocations) Load(_ context.Context, id int64) (*persistence.Location, error) {
	l.f.track("location.Load")
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	loc, ok := l.f.locations[id]
	if !ok {
		return nil, persistence.NewNotFound("location", id)
	}
	cp := *loc
	return &cp, nil
}

func (l fakeLocations) LoadList(_ context.Context, ids []int64) (map[int64]*persistence.Location, error) {
	l.f.track("location.LoadList")
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	out := map[int64]*persistence.Location{}
	for _, id := range ids {
		if loc, ok := l.f.locations[id]; ok {
			cp := *loc
			out[id] = &cp
		}
	}
	return out, nil
}

func (l fakeLocations) LoadByRemoteID(_ context.Context, remoteID string) (*persistence.Location, error) {
	l.f.track("location.LoadByRemoteID")
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	for _, loc := range l.f.locations {
		if loc.RemoteID == remoteID {
			cp := *loc
			return &cp, nil
		}
	}
	return nil, persistence.NewNotFound("location", remoteID)
}

func (l fakeLocations) LoadLocationsByContent(_ context.Context, contentID int64) ([]*persistence.Location, error) {
	l.f.track("location.LoadLocationsByContent")
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	var out []*persistence.Location
	for _, loc := range l.f.locations {
		if loc.ContentID == contentID {
			cp := *loc
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (l fakeLocations) Update(_ context.Context, id int64, us persistence.LocationUpdateStruct) (*persistence.Location, error) {
	l.f.track("location.Update")
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	loc, ok := l.f.locations[id]
	if !ok {
		return nil, persistence.NewNotFound("location", id)
	}
	loc.Priority, loc.Hidden = us.Priority, us.Hidden
	if us.RemoteID != "" {
		loc.RemoteID = us.RemoteID
	}
	cp := *loc
	return &cp, nil
}

func (l fakeLocations) RemoveSubtree(_ context.Context, id int64) error {
	l.f.track("location.RemoveSubtree")
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	if _, ok := l.f.locations[id]; !ok {
		return persistence.NewNotFound("location", id)
	}
	l.f.removeSubtreeLocked(id)
	return nil
}

func (l fakeLocations) ChildCount(_ context.Context, parentID int64) (int, error) {
	l.f.track("location.ChildCount")
	l.f.mu.Lock()
	defer l.f.mu.Unlock()
	n := 0
	for _, loc := range l.f.locations {
		if loc.ParentID == parentID {
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) removeSubtreeLocked(id int64) {
	for lid, loc := range f.locations {
		for _, p := range loc.Path() {
			if p == id {
				delete(f.locations, lid)
				break
			}
		}
	}
}

func copySection(s *persistence.Section) *persistence.Section {
	cp := *s
	return &cp
}

func copyContent(c *persistence.Content, translations []string) *persistence.Content {
	cp := *c
	cp.Fields = nil
	langs := map[string]bool{}
	for _, f := range c.Fields {
		if len(translations) > 0 && !contains(translations, f.LanguageCode) {
			continue
		}
		cp.Fields = append(cp.Fields, f)
		langs[f.LanguageCode] = true
	}
	cp.Languages = nil
	for l := range langs {
		cp.Languages = append(cp.Languages, l)
	}
	sort.Strings(cp.Languages)
	return &cp
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
