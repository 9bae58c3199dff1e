package gallery

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/photocore/photoadmin/internal/api"
)

var errRemote = errors.New("remote failed")

// fakeRemote отдает ленты срезами по pageSize, курсор "p<смещение>"
type fakeRemote struct {
	mu        sync.Mutex
	feed      []api.MediaObject
	favorites []api.MediaObject
	trash     []api.MediaObject
	albums    map[string][]api.MediaObject

	fixed map[string]api.Page // если задано, лента отдается отсюда по курсору

	calls  []string
	bulk   []string
	fail   bool
	onList func(kind Kind, cursor string)
}

func objects(ids ...string) []api.MediaObject {
	out := make([]api.MediaObject, len(ids))
	for i, id := range ids {
		out[i] = api.MediaObject{ID: id, DateCreated: "2024-01-01T00:00:00Z"}
	}
	return out
}

func (f *fakeRemote) list(kind Kind, items []api.MediaObject, cursor string, size int) (*api.Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, string(kind)+":"+cursor)
	hook := f.onList
	fail := f.fail
	f.mu.Unlock()

	if hook != nil {
		hook(kind, cursor)
	}
	if fail {
		return nil, errRemote
	}

	if kind == KindFeed && f.fixed != nil {
		page := f.fixed[cursor]
		return &page, nil
	}

	start := 0
	if cursor != "" {
		start, _ = strconv.Atoi(strings.TrimPrefix(cursor, "p"))
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	page := &api.Page{Properties: append([]api.MediaObject(nil), items[start:end]...)}
	if end < len(items) {
		page.LastID = "p" + strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeRemote) ListObjects(_ context.Context, cursor string, size int) (*api.Page, error) {
	return f.list(KindFeed, f.snapshot(&f.feed), cursor, size)
}

func (f *fakeRemote) ListFavorites(_ context.Context, cursor string, size int) (*api.Page, error) {
	return f.list(KindFavorites, f.snapshot(&f.favorites), cursor, size)
}

func (f *fakeRemote) ListTrashed(_ context.Context, cursor string, size int) (*api.Page, error) {
	return f.list(KindTrash, f.snapshot(&f.trash), cursor, size)
}

func (f *fakeRemote) ListAlbumObjects(_ context.Context, albumID, cursor string, size int) (*api.Page, error) {
	f.mu.Lock()
	items := append([]api.MediaObject(nil), f.albums[albumID]...)
	f.mu.Unlock()
	return f.list(KindAlbum, items, cursor, size)
}

func (f *fakeRemote) snapshot(items *[]api.MediaObject) []api.MediaObject {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.MediaObject(nil), (*items)...)
}

func (f *fakeRemote) record(op string, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk = append(f.bulk, op+":"+strings.Join(ids, ","))
	if f.fail {
		return errRemote
	}
	return nil
}

func (f *fakeRemote) TrashObjects(_ context.Context, ids []string) error {
	if err := f.record("trash", ids); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved []api.MediaObject
	f.feed, moved = partition(f.feed, ids)
	f.trash = append(f.trash, moved...)
	return nil
}

func (f *fakeRemote) RestoreObjects(_ context.Context, ids []string) error {
	if err := f.record("restore", ids); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved []api.MediaObject
	f.trash, moved = partition(f.trash, ids)
	f.feed = append(moved, f.feed...)
	return nil
}

func (f *fakeRemote) DeleteObjectsPermanent(_ context.Context, ids []string) error {
	if err := f.record("delete", ids); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trash, _ = partition(f.trash, ids)
	return nil
}

func (f *fakeRemote) EmptyTrash(context.Context) error {
	if err := f.record("emptytrash", nil); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trash = nil
	return nil
}

func (f *fakeRemote) AddFavorites(_ context.Context, ids []string) error {
	return f.record("favorite", ids)
}

func (f *fakeRemote) RemoveFavorites(_ context.Context, ids []string) error {
	return f.record("unfavorite", ids)
}

func (f *fakeRemote) AddObjectsToAlbum(_ context.Context, albumID string, ids []string) error {
	return f.record("album+"+albumID, ids)
}

func (f *fakeRemote) RemoveObjectsFromAlbum(_ context.Context, albumID string, ids []string) error {
	return f.record("album-"+albumID, ids)
}

func (f *fakeRemote) DownloadZip(_ context.Context, ids []string) (*api.Blob, error) {
	if err := f.record("download", ids); err != nil {
		return nil, err
	}
	return &api.Blob{
		Body:        io.NopCloser(strings.NewReader("PK")),
		ContentType: "application/zip",
		Disposition: `attachment; filename="my photos.zip"`,
	}, nil
}

func (f *fakeRemote) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeRemote) Bulk() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bulk...)
}

func partition(items []api.MediaObject, ids []string) (keep, moved []api.MediaObject) {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for _, obj := range items {
		if set[obj.ID] {
			moved = append(moved, obj)
		} else {
			keep = append(keep, obj)
		}
	}
	return keep, moved
}
