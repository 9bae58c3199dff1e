package gallery

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/cache"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/query"
)

// Workspace состояние лент одной браузерной сессии: кэш запросов,
// выбор по областям и открытый просмотр
type Workspace struct {
	*Engine

	qc     *query.Client
	remote Remote

	mu         sync.Mutex
	selections map[query.Key]*Selection

	previewMu sync.Mutex
	preview   *previewCursor
}

// NewWorkspace создает состояние сессии
func NewWorkspace(remote Remote, opts Options) *Workspace {
	qc := query.NewClient(opts.Query)
	return &Workspace{
		Engine:     NewEngine(qc, remote, opts.PageSize, opts.AlbumPageSize),
		qc:         qc,
		remote:     remote,
		selections: make(map[query.Key]*Selection),
	}
}

// Query кэш запросов сессии для остальных страниц (альбомы, пользователи)
func (w *Workspace) Query() *query.Client {
	return w.qc
}

// Toggle переключает выбор объекта в области
func (w *Workspace) Toggle(scope Scope, id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection(scope).Toggle(id)
}

// SelectedIDs выбранные объекты области
func (w *Workspace) SelectedIDs(scope Scope) []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection(scope).IDs()
}

// IsSelected сообщает, выбран ли объект
func (w *Workspace) IsSelected(scope Scope, id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.selection(scope).Has(id)
}

// ClearSelection сбрасывает выбор области
func (w *Workspace) ClearSelection(scope Scope) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selection(scope).Clear()
}

func (w *Workspace) selection(scope Scope) *Selection {
	key := scope.Key()
	s, ok := w.selections[key]
	if !ok {
		s = NewSelection()
		w.selections[key] = s
	}
	return s
}

// Close освобождает кэш запросов
func (w *Workspace) Close() {
	w.qc.Close()
}

// Options параметры лент
type Options struct {
	PageSize      int
	AlbumPageSize int
	Query         query.Options
	IdleTimeout   time.Duration // неактивное состояние сессии выбрасывается
}

// Registry хранит состояние лент по браузерным сессиям
type Registry struct {
	workspaces *cache.Cache[*Workspace]
	newRemote  func(sessionID string) Remote
	opts       Options
	mu         sync.Mutex
}

// NewRegistry создает реестр. newRemote возвращает клиента API от имени сессии.
func NewRegistry(opts Options, newRemote func(sessionID string) Remote) *Registry {
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = time.Hour
	}
	return &Registry{
		workspaces: cache.New(cache.Config[*Workspace]{
			DefaultExpiration: opts.IdleTimeout,
			CleanupInterval:   opts.IdleTimeout / 4,
			MaxItems:          10000,
			OnEvicted: func(sessionID string, w *Workspace) {
				logger.L.Debug("dropping gallery workspace", zap.String("session", sessionID))
				w.Close()
			},
		}),
		newRemote: newRemote,
		opts:      opts,
	}
}

// Get возвращает состояние сессии, создавая его при первом обращении.
// Каждое обращение продлевает жизнь состояния.
func (r *Registry) Get(sessionID string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workspaces.Get(sessionID)
	if !ok {
		w = NewWorkspace(r.newRemote(sessionID), r.opts)
	}
	r.workspaces.Set(sessionID, w)
	return w
}

// Drop выбрасывает состояние сессии, например при выходе
func (r *Registry) Drop(sessionID string) {
	r.workspaces.Delete(sessionID)
}

// Len число активных сессий
func (r *Registry) Len() int {
	return r.workspaces.Count()
}

// Close выбрасывает все состояния
func (r *Registry) Close() {
	r.workspaces.Clear()
	r.workspaces.Stop()
}
