package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/identifier"
	"github.com/unkn0wn-root/tagcache/internal/testutil"
	"github.com/unkn0wn-root/tagcache/persistence"
)

func newTestHandler(t *testing.T, opts Options) (*Handler, *fakeBackend, *testutil.MemProvider) {
	t.Helper()
	mp := testutil.NewMemProvider()
	pool, err := tagcache.New(tagcache.Options{Namespace: "spi", Provider: mp})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })

	backend := newFakeBackend()
	h, err := NewHandler(backend, pool, opts)
	require.NoError(t, err)
	return h, backend, mp
}

func TestNewHandlerRejectsUnknownCodec(t *testing.T) {
	pool, err := tagcache.New(tagcache.Options{Namespace: "spi", Provider: testutil.NewMemProvider()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close(context.Background()) })
	_, err = NewHandler(newFakeBackend(), pool, Options{Codec: "gob"})
	assert.Error(t, err)
	_, err = NewHandler(nil, pool, Options{})
	assert.Error(t, err)
}

func TestSectionLoadIsCached(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addSection(1, "Standard", "standard")

	for i := 0; i < 3; i++ {
		s, err := h.SectionHandler().Load(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Standard", s.Name)
	}
	assert.Equal(t, 1, backend.count("section.Load"))

	stats := h.Logger().Stats()
	assert.Equal(t, 1, stats.Misses)
	assert.Equal(t, 2, stats.Hits)
}

func TestSectionUpdateInvalidatesAllLookups(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addSection(1, "Standard", "standard")
	sh := h.SectionHandler()

	_, err := sh.Load(ctx, 1)
	require.NoError(t, err)
	_, err = sh.LoadByIdentifier(ctx, "standard")
	require.NoError(t, err)

	_, err = sh.Update(ctx, 1, "Standard section", "standard")
	require.NoError(t, err)

	s, err := sh.Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Standard section", s.Name)
	s, err = sh.LoadByIdentifier(ctx, "standard")
	require.NoError(t, err)
	assert.Equal(t, "Standard section", s.Name)

	assert.Equal(t, 2, backend.count("section.Load"))
	assert.Equal(t, 2, backend.count("section.LoadByIdentifier"))
}

func TestSectionKeysDoNotCollideWithIdentifierKeys(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addSection(1, "One", "2")
	backend.addSection(2, "Two", "two")

	byID, err := h.SectionHandler().Load(ctx, 2)
	require.NoError(t, err)
	byIdent, err := h.SectionHandler().LoadByIdentifier(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "Two", byID.Name)
	assert.Equal(t, "One", byIdent.Name)
}

func TestSectionErrorsPropagateUnchanged(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})

	_, err := h.SectionHandler().Load(ctx, 404)
	var nf *persistence.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(404), nf.ID)

	// failures are not cached
	_, err = h.SectionHandler().Load(ctx, 404)
	assert.True(t, errors.Is(err, persistence.ErrNotFound))
	assert.Equal(t, 2, backend.count("section.Load"))

	assert.True(t, errors.Is(h.SectionHandler().Delete(ctx, 404), persistence.ErrNotFound))
}

func TestSectionDeleteEvictsEntry(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addSection(1, "Standard", "standard")

	_, err := h.SectionHandler().Load(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, h.SectionHandler().Delete(ctx, 1))

	_, err = h.SectionHandler().Load(ctx, 1)
	assert.True(t, errors.Is(err, persistence.ErrNotFound))
}

func TestSectionPassThroughs(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{CallLogging: true})
	sh := h.SectionHandler()

	s, err := sh.Create(ctx, "Media", "media")
	require.NoError(t, err)
	_, err = sh.LoadAll(ctx)
	require.NoError(t, err)
	_, err = sh.LoadAll(ctx)
	require.NoError(t, err)
	_, err = sh.AssignmentsCount(ctx, s.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, backend.count("section.LoadAll"))
	calls := h.Logger().Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, "section.create", calls[0].Method)
	assert.Equal(t, "media", calls[0].Args["identifier"])
	assert.Equal(t, 4, h.Logger().Count())
}

func TestAssignInvalidatesContent(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addSection(1, "Standard", "standard")
	backend.addSection(2, "Media", "media")
	backend.addContent(10, 1, 1, "home")

	info, err := h.ContentHandler().LoadContentInfo(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.SectionID)

	require.NoError(t, h.SectionHandler().Assign(ctx, 2, 10))

	info, err = h.ContentHandler().LoadContentInfo(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.SectionID)
}

func TestContentTranslationsAreSeparateEntries(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addContent(10, 3, 1, "home",
		persistence.Field{DefinitionID: 1, LanguageCode: "eng-GB", Value: "Home"},
		persistence.Field{DefinitionID: 1, LanguageCode: "ger-DE", Value: "Startseite"})
	ch := h.ContentHandler()

	de, err := ch.Load(ctx, 10, 0, []string{"ger-DE"})
	require.NoError(t, err)
	all, err := ch.Load(ctx, 10, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ger-DE"}, de.Languages)
	assert.Equal(t, []string{"eng-GB", "ger-DE"}, all.Languages)

	_, err = ch.Load(ctx, 10, 0, []string{"ger-DE"})
	require.NoError(t, err)
	assert.Equal(t, 2, backend.count("content.Load"))

	// the list shares entries with Load of the current version
	list, err := ch.LoadContentList(ctx, []int64{10}, []string{"ger-DE"})
	require.NoError(t, err)
	assert.Equal(t, "Startseite", list[10].Fields[0].Value)
	assert.Zero(t, backend.count("content.LoadContentList"))
}

func TestContentUpdateFieldsIsVisibleOnReload(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addContent(10, 3, 1, "home", persistence.Field{DefinitionID: 1, LanguageCode: "eng-GB", Value: "Home"})
	ch := h.ContentHandler()

	before, err := ch.Load(ctx, 10, 0, nil)
	require.NoError(t, err)
	_, err = ch.UpdateFields(ctx, 10, 1, []persistence.Field{{DefinitionID: 1, LanguageCode: "eng-GB", Value: "Welcome"}})
	require.NoError(t, err)
	after, err := ch.Load(ctx, 10, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, "Home", before.Fields[0].Value)
	assert.Equal(t, "Welcome", after.Fields[0].Value)
}

func TestContentInfoByRemoteIDUsesCanonicalTag(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addContent(10, 3, 1, "home")
	ch := h.ContentHandler()

	_, err := ch.LoadContentInfoByRemoteID(ctx, "home")
	require.NoError(t, err)
	_, err = ch.UpdateMetadata(ctx, 10, persistence.MetadataUpdateStruct{Name: "Start"})
	require.NoError(t, err)

	info, err := ch.LoadContentInfoByRemoteID(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, "Start", info.Name)
	assert.Equal(t, 2, backend.count("content.LoadContentInfoByRemoteID"))
}

func TestContentInfoListBulk(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addContent(1, 3, 1, "a")
	backend.addContent(3, 3, 1, "c")

	got, err := h.ContentHandler().LoadContentInfoList(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.NotContains(t, got, int64(2))

	_, err = h.ContentHandler().LoadContentInfo(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, backend.count("content.LoadContentInfo"), "single load must hit the bulk entry")

	stats := h.Logger().Stats()
	assert.Equal(t, 3, stats.Misses)
	assert.Equal(t, 1, stats.Hits)
}

func TestLocationSubtreeInvalidation(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addContent(10, 1, 1, "root")
	backend.addContent(11, 1, 1, "folder")
	backend.addContent(12, 1, 1, "article")
	backend.addLocation(2, 0, 10)
	backend.addLocation(5, 2, 11)
	backend.addLocation(9, 5, 12)
	lh := h.LocationHandler()

	leaf, err := lh.Load(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 9}, leaf.Path())

	_, err = lh.Update(ctx, 5, persistence.LocationUpdateStruct{Hidden: true})
	require.NoError(t, err)
	_, err = lh.Load(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.count("location.Load"), "ancestor update must evict descendants")

	require.NoError(t, lh.RemoveSubtree(ctx, 5))
	_, err = lh.Load(ctx, 9)
	assert.True(t, errors.Is(err, persistence.ErrNotFound))
}

func TestLocationsByContentFollowMembership(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addContent(10, 1, 1, "root")
	backend.addContent(11, 1, 1, "article")
	backend.addLocation(2, 0, 10)
	lh := h.LocationHandler()

	locs, err := lh.LoadLocationsByContent(ctx, 11)
	require.NoError(t, err)
	assert.Empty(t, locs)

	_, err = lh.Create(ctx, persistence.LocationCreateStruct{ParentID: 2, ContentID: 11})
	require.NoError(t, err)

	locs, err = lh.LoadLocationsByContent(ctx, 11)
	require.NoError(t, err)
	require.Len(t, locs, 1)

	info, err := h.ContentHandler().LoadContentInfo(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, locs[0].ID, info.MainLocationID)
}

func TestDeleteContentEvictsLocationsBelow(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addContent(10, 1, 1, "folder")
	backend.addContent(11, 1, 1, "article")
	backend.addLocation(2, 0, 10)
	backend.addLocation(3, 2, 11)

	_, err := h.LocationHandler().Load(ctx, 3)
	require.NoError(t, err)
	require.NoError(t, h.ContentHandler().DeleteContent(ctx, 10))

	_, err = h.LocationHandler().Load(ctx, 3)
	assert.True(t, errors.Is(err, persistence.ErrNotFound))
	_, err = h.ContentHandler().LoadContentInfo(ctx, 10)
	assert.True(t, errors.Is(err, persistence.ErrNotFound))
}

func TestCacheOutageFallsBackToBackend(t *testing.T) {
	ctx := context.Background()
	h, backend, mp := newTestHandler(t, Options{})
	backend.addSection(1, "Standard", "standard")
	mp.SetFail(errors.New("connection refused"))

	s, err := h.SectionHandler().Load(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Standard", s.Name)

	_, err = h.SectionHandler().Update(ctx, 1, "Renamed", "standard")
	require.NoError(t, err, "mutations succeed while the cache is down")
}

func TestConcurrentMissesShareBackendCall(t *testing.T) {
	ctx := context.Background()
	h, backend, _ := newTestHandler(t, Options{})
	backend.addSection(1, "Standard", "standard")
	release := make(chan struct{})
	backend.loadHook = func() { <-release }

	const n = 20
	var wg sync.WaitGroup
	results := make([]*persistence.Section, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := h.SectionHandler().Load(ctx, 1)
			if err == nil {
				results[i] = s
			}
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, s := range results {
		require.NotNil(t, s)
		assert.Equal(t, "Standard", s.Name)
	}
	assert.Less(t, backend.count("section.Load"), n)
}

func TestCancelledLeaderDoesNotFailJoinedCallers(t *testing.T) {
	h, backend, _ := newTestHandler(t, Options{})
	backend.addSection(1, "Standard", "standard")
	release := make(chan struct{})
	backend.loadHook = func() { <-release }

	leaderCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	leaderErr := make(chan error, 1)
	go func() {
		_, err := h.SectionHandler().Load(leaderCtx, 1)
		leaderErr <- err
	}()
	require.Eventually(t, func() bool { return backend.count("section.Load") == 1 },
		time.Second, time.Millisecond)

	type result struct {
		s   *persistence.Section
		err error
	}
	joined := make(chan result, 1)
	go func() {
		s, err := h.SectionHandler().Load(context.Background(), 1)
		joined <- result{s, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	r := <-joined
	require.NoError(t, r.err)
	assert.Equal(t, "Standard", r.s.Name)
	assert.Equal(t, 1, backend.count("section.Load"))

	// the shared load was saved even though its first caller left
	_, err := h.SectionHandler().Load(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.count("section.Load"))
}

func TestCustomKeyGenerator(t *testing.T) {
	ctx := context.Background()
	keys, err := identifier.New(identifier.Options{Prefix: "app-", Generation: 7})
	require.NoError(t, err)
	h, backend, mp := newTestHandler(t, Options{Keys: keys, Codec: "json"})
	backend.addSection(1, "Standard", "standard")

	_, err = h.SectionHandler().Load(ctx, 1)
	require.NoError(t, err)
	raw, ok := mp.Raw("spi:app-s@7-1")
	require.True(t, ok)
	assert.Contains(t, string(raw), `"identifier":"standard"`)
}
