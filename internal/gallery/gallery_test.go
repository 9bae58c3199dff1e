package gallery

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/query"
)

func newTestWorkspace(t *testing.T, remote *fakeRemote) *Workspace {
	t.Helper()
	w := NewWorkspace(remote, Options{
		PageSize:      2,
		AlbumPageSize: 2,
		Query:         query.Options{StaleTime: time.Hour, CacheTime: time.Hour},
	})
	t.Cleanup(w.Close)
	return w
}

func ids(items []api.MediaObject) []string {
	out := make([]string, len(items))
	for i, obj := range items {
		out[i] = obj.ID
	}
	return out
}

func TestEngine_LoadsPagesInCursorOrder(t *testing.T) {
	remote := &fakeRemote{feed: objects("a", "b", "c", "d", "e")}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	pages, err := w.Load(ctx, Feed())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(pages.Items()))
	assert.True(t, pages.HasNewPage())

	// повторное чтение берется из кэша
	_, err = w.Load(ctx, Feed())
	require.NoError(t, err)

	pages, added, err := w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, ids(added))

	pages, added, err = w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	assert.Equal(t, []string{"e"}, ids(added))
	assert.False(t, pages.HasNewPage())

	_, added, err = w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	assert.Empty(t, added)

	if diff := cmp.Diff([]string{"feed:", "feed:p2", "feed:p4"}, remote.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(pages.Items()))
}

func TestEngine_StopsWhenCursorIsLastItem(t *testing.T) {
	remote := &fakeRemote{fixed: map[string]api.Page{
		"": {LastID: "b", Properties: objects("a", "b")},
	}}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	pages, err := w.Load(ctx, Feed())
	require.NoError(t, err)
	assert.False(t, pages.HasNewPage())

	_, _, err = w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	assert.Equal(t, []string{"feed:"}, remote.Calls())
}

func TestEngine_RepeatedCursorTerminates(t *testing.T) {
	remote := &fakeRemote{fixed: map[string]api.Page{
		"":  {LastID: "x", Properties: objects("a", "b")},
		"x": {LastID: "x", Properties: objects("c")},
	}}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, _, err := w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	pages, _, err := w.LoadMore(ctx, Feed())
	require.NoError(t, err)

	assert.False(t, pages.HasNewPage())
	assert.Equal(t, []string{"feed:", "feed:x"}, remote.Calls())
}

func TestEngine_NoDuplicateIDs(t *testing.T) {
	remote := &fakeRemote{fixed: map[string]api.Page{
		"":   {LastID: "n1", Properties: objects("a", "b")},
		"n1": {LastID: "n2", Properties: objects("b", "c")},
		"n2": {Properties: objects()},
	}}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	pages, added, err := w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(added))
	assert.Equal(t, []string{"a", "b", "c"}, ids(pages.Items()))
	assert.Equal(t, 3, pages.Count())
}

func TestEngine_TerminationUsesServerPage(t *testing.T) {
	// "b" уже загружен, но последний объект ответа все равно равен курсору
	remote := &fakeRemote{fixed: map[string]api.Page{
		"":   {LastID: "n1", Properties: objects("a", "b")},
		"n1": {LastID: "b", Properties: objects("c", "b")},
	}}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	pages, added, err := w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(added))
	assert.False(t, pages.HasNewPage())

	_, _, err = w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"feed:", "feed:n1"}, remote.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_DuplicateOnlyPageKeepsPaging(t *testing.T) {
	remote := &fakeRemote{fixed: map[string]api.Page{
		"":   {LastID: "n1", Properties: objects("a", "b")},
		"n1": {LastID: "n2", Properties: objects("a", "b")},
		"n2": {Properties: objects("c")},
	}}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	pages, added, err := w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.True(t, pages.HasNewPage())

	pages, added, err = w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, ids(added))
	assert.False(t, pages.HasNewPage())

	_, _, err = w.LoadMore(ctx, Feed())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(pages.Items()))
	if diff := cmp.Diff([]string{"feed:", "feed:n1", "feed:n2"}, remote.Calls()); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_EmptyFeed(t *testing.T) {
	remote := &fakeRemote{fixed: map[string]api.Page{"": {LastID: ""}}}
	w := newTestWorkspace(t, remote)

	pages, err := w.Load(context.Background(), Feed())
	require.NoError(t, err)
	assert.True(t, pages.Empty())
	assert.False(t, pages.HasNewPage())

	_, _, err = w.LoadMore(context.Background(), Feed())
	require.NoError(t, err)
	assert.Len(t, remote.Calls(), 1)
}

func TestEngine_ScopesAreSeparate(t *testing.T) {
	remote := &fakeRemote{
		feed:   objects("a"),
		albums: map[string][]api.MediaObject{"1": objects("x"), "2": objects("y")},
	}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	one, err := w.Load(ctx, AlbumScope(api.Album{ID: "1"}))
	require.NoError(t, err)
	two, err := w.Load(ctx, AlbumScope(api.Album{ID: "2"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, ids(one.Items()))
	assert.Equal(t, []string{"y"}, ids(two.Items()))
	assert.Equal(t, query.Key("fetchIds:1"), AlbumScope(api.Album{ID: "1"}).Key())
	assert.Equal(t, query.Key("fetchIds:null"), Feed().Key())
}

func TestEngine_InvalidationDuringLoadMore(t *testing.T) {
	remote := &fakeRemote{feed: objects("a", "b", "c")}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, err := w.Load(ctx, Feed())
	require.NoError(t, err)

	remote.onList = func(kind Kind, cursor string) {
		if cursor != "" {
			w.Invalidate(Feed())
		}
	}
	_, _, err = w.LoadMore(ctx, Feed())
	assert.ErrorIs(t, err, ErrSuperseded)
}

func TestSelection_Toggle(t *testing.T) {
	s := NewSelection("a", "b")
	before := s.IDs()

	assert.True(t, s.Toggle("x"))
	assert.False(t, s.Toggle("x"))
	if diff := cmp.Diff(before, s.IDs()); diff != "" {
		t.Errorf("toggle twice changed selection (-want +got):\n%s", diff)
	}

	assert.False(t, s.Toggle("a"))
	assert.Equal(t, []string{"b"}, s.IDs())

	s.Clear()
	assert.True(t, s.Empty())
}

func TestWorkspace_SelectionPerScope(t *testing.T) {
	w := newTestWorkspace(t, &fakeRemote{})

	w.Toggle(Feed(), "a")
	w.Toggle(Trash(), "b")

	assert.Equal(t, []string{"a"}, w.SelectedIDs(Feed()))
	assert.Equal(t, []string{"b"}, w.SelectedIDs(Trash()))
	assert.Empty(t, w.SelectedIDs(Favorites()))
}

func TestBulk_TrashScenario(t *testing.T) {
	remote := &fakeRemote{feed: objects("a", "b", "c", "d")}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, _, err := w.LoadMore(ctx, Feed())
	require.NoError(t, err)

	for _, id := range []string{"a", "b", "c"} {
		w.Toggle(Feed(), id)
	}

	res, err := w.Bulk(ctx, Feed(), BulkRequest{Action: ActionTrash})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, "Перемещено в корзину: 3", res.Message())
	assert.Empty(t, w.SelectedIDs(Feed()))
	assert.Equal(t, []string{"trash:a,b,c"}, remote.Bulk())

	before := len(remote.Calls())
	pages, err := w.Load(ctx, Feed())
	require.NoError(t, err)
	assert.Equal(t, []string{"d"}, ids(pages.Items()))
	assert.Equal(t, "feed:", remote.Calls()[before])

	trash, err := w.Load(ctx, Trash())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(trash.Items()))
}

func TestBulk_FailureKeepsState(t *testing.T) {
	remote := &fakeRemote{feed: objects("a", "b")}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, err := w.Load(ctx, Feed())
	require.NoError(t, err)
	w.Toggle(Feed(), "a")

	remote.fail = true
	_, err = w.Bulk(ctx, Feed(), BulkRequest{Action: ActionFavorite})
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, []string{"a"}, w.SelectedIDs(Feed()))

	// страницы остались в кэше, повторного запроса нет
	remote.fail = false
	calls := len(remote.Calls())
	_, err = w.Load(ctx, Feed())
	require.NoError(t, err)
	assert.Len(t, remote.Calls(), calls)

	state, _ := w.Query().Mutation(string(ActionFavorite)).State()
	assert.Equal(t, query.Failed, state)
}

func TestBulk_EmptySelection(t *testing.T) {
	remote := &fakeRemote{}
	w := newTestWorkspace(t, remote)

	_, err := w.Bulk(context.Background(), Feed(), BulkRequest{Action: ActionTrash})
	assert.ErrorIs(t, err, ErrEmptySelection)
	assert.Empty(t, remote.Bulk())
}

func TestBulk_AlbumConstraints(t *testing.T) {
	remote := &fakeRemote{albums: map[string][]api.MediaObject{"1": objects("a")}}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	system := AlbumScope(api.Album{ID: "1", IsSystem: true})
	w.Toggle(system, "a")
	_, err := w.Bulk(ctx, system, BulkRequest{Action: ActionRemoveFromAlbum})
	assert.ErrorIs(t, err, ErrSystemAlbum)

	_, err = w.Bulk(ctx, Feed(), BulkRequest{Action: ActionRemoveFromAlbum})
	assert.ErrorIs(t, err, ErrNotAllowed)

	w.Toggle(Feed(), "a")
	_, err = w.Bulk(ctx, Feed(), BulkRequest{Action: ActionAddToAlbum})
	assert.ErrorIs(t, err, ErrNoAlbum)

	_, err = w.Bulk(ctx, Feed(), BulkRequest{Action: ActionAddToAlbum, TargetAlbum: "2"})
	require.NoError(t, err)

	album := AlbumScope(api.Album{ID: "1"})
	w.Toggle(album, "a")
	_, err = w.Bulk(ctx, album, BulkRequest{Action: ActionRemoveFromAlbum})
	require.NoError(t, err)

	assert.Equal(t, []string{"album+2:a", "album-1:a"}, remote.Bulk())
}

func TestBulk_DownloadKeepsSelection(t *testing.T) {
	remote := &fakeRemote{feed: objects("a")}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, err := w.Load(ctx, Feed())
	require.NoError(t, err)
	w.Toggle(Feed(), "a")

	res, err := w.Bulk(ctx, Feed(), BulkRequest{Action: ActionDownload})
	require.NoError(t, err)
	require.NotNil(t, res.Archive)
	defer res.Archive.Body.Close()

	data, _ := io.ReadAll(res.Archive.Body)
	assert.Equal(t, "PK", string(data))
	assert.Equal(t, "my photos.zip", res.Archive.Filename)
	assert.Equal(t, []string{"a"}, w.SelectedIDs(Feed()))

	_, ok := w.Query().Get(Feed().Key())
	assert.True(t, ok, "download must not invalidate pages")
}

func TestToggleFavorite_Invalidates(t *testing.T) {
	remote := &fakeRemote{feed: objects("a"), favorites: objects()}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, err := w.Load(ctx, Feed())
	require.NoError(t, err)
	_, err = w.Load(ctx, Favorites())
	require.NoError(t, err)
	w.Toggle(Feed(), "b")

	require.NoError(t, w.ToggleFavorite(ctx, Feed(), "a", true))
	assert.Equal(t, []string{"favorite:a"}, remote.Bulk())
	assert.Equal(t, []string{"b"}, w.SelectedIDs(Feed()))

	_, ok := w.Query().Get(Feed().Key())
	assert.False(t, ok)
	_, ok = w.Query().Get(Favorites().Key())
	assert.False(t, ok)
}

func TestEmptyTrash(t *testing.T) {
	remote := &fakeRemote{trash: objects("a", "b")}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, err := w.Load(ctx, Trash())
	require.NoError(t, err)
	require.NoError(t, w.EmptyTrash(ctx))

	pages, err := w.Load(ctx, Trash())
	require.NoError(t, err)
	assert.True(t, pages.Empty())
}

func TestPreview_Navigation(t *testing.T) {
	remote := &fakeRemote{feed: objects("a", "b", "c")}
	w := newTestWorkspace(t, remote)
	ctx := context.Background()

	_, err := w.Load(ctx, Feed())
	require.NoError(t, err)

	st, err := w.OpenPreview(ctx, Feed(), "a")
	require.NoError(t, err)
	assert.False(t, st.HasPrev)

	st, err = w.PreviewPrev(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Index)

	// index 0 из двух загруженных: догружается следующая страница
	st, err = w.PreviewNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", st.Item.ID)
	assert.Equal(t, 3, st.Loaded)

	st, err = w.PreviewNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", st.Item.ID)
	assert.False(t, st.HasNext)

	calls := len(remote.Calls())
	st, err = w.PreviewNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", st.Item.ID)
	assert.Len(t, remote.Calls(), calls)

	st, err = w.PreviewCurrent(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Index)

	w.ClosePreview()
	_, err = w.PreviewNext(ctx)
	assert.True(t, errors.Is(err, ErrNoPreview))
}

func TestArchiveFilename(t *testing.T) {
	cases := map[string]string{
		`attachment; filename="my photos.zip"`:                "my photos.zip",
		`attachment; filename=export.zip`:                     "export.zip",
		`attachment; filename*=UTF-8''%D1%84%D0%BE%D1%82.zip`: "фот.zip",
		`attachment; filename="../../etc/passwd"`:             "passwd",
		`attachment; filename=my photos.zip`:                  "my photos.zip",
		`attachment`:                                          DefaultArchiveName,
		``:                                                    DefaultArchiveName,
		`garbage;;`:                                           DefaultArchiveName,
	}
	for header, want := range cases {
		assert.Equal(t, want, ArchiveFilename(header), header)
	}
}

func TestRegistry_ReusesWorkspace(t *testing.T) {
	created := 0
	r := NewRegistry(Options{IdleTimeout: time.Minute}, func(string) Remote {
		created++
		return &fakeRemote{}
	})
	defer r.Close()

	a := r.Get("s1")
	b := r.Get("s1")
	assert.Same(t, a, b)
	assert.Equal(t, 1, created)

	r.Drop("s1")
	assert.NotSame(t, a, r.Get("s1"))
	assert.Equal(t, 2, created)
	assert.Equal(t, 1, r.Len())
}
