package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/query"
)

// ErrSuperseded страницы области инвалидировали, пока загружалась следующая
var ErrSuperseded = errors.New("gallery pages were invalidated")

// Source постраничное чтение лент
type Source interface {
	ListObjects(ctx context.Context, cursor string, pageSize int) (*api.Page, error)
	ListFavorites(ctx context.Context, cursor string, pageSize int) (*api.Page, error)
	ListTrashed(ctx context.Context, cursor string, pageSize int) (*api.Page, error)
	ListAlbumObjects(ctx context.Context, albumID, cursor string, pageSize int) (*api.Page, error)
}

// Engine загружает страницы областей через кэш запросов. Страницы одной
// области запрашиваются строго последовательно, каждый курсор один раз.
type Engine struct {
	qc            *query.Client
	src           Source
	pageSize      int
	albumPageSize int

	mu    sync.Mutex
	locks map[query.Key]*sync.Mutex
}

// NewEngine создает движок ленты
func NewEngine(qc *query.Client, src Source, pageSize, albumPageSize int) *Engine {
	if pageSize <= 0 {
		pageSize = 30
	}
	if albumPageSize <= 0 {
		albumPageSize = 100
	}
	return &Engine{
		qc:            qc,
		src:           src,
		pageSize:      pageSize,
		albumPageSize: albumPageSize,
		locks:         make(map[query.Key]*sync.Mutex),
	}
}

func (e *Engine) lock(key query.Key) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[key]
	if !ok {
		l = &sync.Mutex{}
		e.locks[key] = l
	}
	return l
}

// Load возвращает загруженные страницы области, при промахе кэша первую страницу
func (e *Engine) Load(ctx context.Context, scope Scope) (*Pages, error) {
	return query.Fetch(ctx, e.qc, scope.Key(), func(ctx context.Context) (*Pages, error) {
		return e.refetch(ctx, scope)
	})
}

// LoadMore догружает следующую страницу, если она есть. Возвращает все
// страницы и объекты новой страницы.
func (e *Engine) LoadMore(ctx context.Context, scope Scope) (*Pages, []api.MediaObject, error) {
	if _, err := e.Load(ctx, scope); err != nil {
		return nil, nil, err
	}

	key := scope.Key()
	l := e.lock(key)
	l.Lock()
	defer l.Unlock()

	// Пока ждали блокировку, страницы могли догрузить или инвалидировать
	pages, ok := e.cached(key)
	if !ok {
		return nil, nil, ErrSuperseded
	}
	if !pages.HasNewPage() {
		return pages, nil, nil
	}

	gen := e.qc.Generation(key)
	cursor := pages.NextCursor()
	page, err := e.fetchPage(ctx, scope, cursor)
	if err != nil {
		return nil, nil, err
	}

	next := pages.Append(cursor, *page)
	if !e.qc.SetIf(key, gen, next) {
		logger.L.Debug("dropping page of invalidated scope", zap.String("key", string(key)))
		return nil, nil, ErrSuperseded
	}
	return next, next.Page(next.Len() - 1).Properties, nil
}

// Invalidate сбрасывает страницы областей, следующее чтение начнется с первой страницы
func (e *Engine) Invalidate(scopes ...Scope) {
	keys := make([]query.Key, len(scopes))
	for i, s := range scopes {
		keys[i] = s.Key()
	}
	e.qc.Invalidate(keys...)
}

func (e *Engine) cached(key query.Key) (*Pages, bool) {
	v, ok := e.qc.Get(key)
	if !ok {
		return nil, false
	}
	pages, ok := v.(*Pages)
	return pages, ok
}

// refetch перечитывает столько страниц, сколько было загружено, начиная с пустого курсора.
// После инвалидации в кэше ничего нет, и читается только первая страница.
func (e *Engine) refetch(ctx context.Context, scope Scope) (*Pages, error) {
	key := scope.Key()
	l := e.lock(key)
	l.Lock()
	defer l.Unlock()

	want := 1
	if old, ok := e.cached(key); ok && old.Len() > want {
		want = old.Len()
	}

	first, err := e.fetchPage(ctx, scope, "")
	if err != nil {
		return nil, err
	}
	pages := newPages("", *first)
	for pages.Len() < want && pages.HasNewPage() {
		cursor := pages.NextCursor()
		page, err := e.fetchPage(ctx, scope, cursor)
		if err != nil {
			return nil, err
		}
		pages = pages.Append(cursor, *page)
	}
	return pages, nil
}

func (e *Engine) fetchPage(ctx context.Context, scope Scope, cursor string) (*api.Page, error) {
	var (
		page *api.Page
		err  error
	)
	switch scope.Kind {
	case KindFeed:
		page, err = e.src.ListObjects(ctx, cursor, e.pageSize)
	case KindFavorites:
		page, err = e.src.ListFavorites(ctx, cursor, e.pageSize)
	case KindTrash:
		page, err = e.src.ListTrashed(ctx, cursor, e.pageSize)
	case KindAlbum:
		if scope.AlbumID == "" {
			return nil, ErrNoAlbum
		}
		page, err = e.src.ListAlbumObjects(ctx, scope.AlbumID, cursor, e.albumPageSize)
	default:
		return nil, fmt.Errorf("unknown gallery %q", scope.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s page: %w", scope.Kind, err)
	}
	if page == nil {
		page = &api.Page{}
	}
	return page, nil
}
