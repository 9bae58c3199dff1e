package gallery

import (
	"context"
	"errors"

	"github.com/photocore/photoadmin/internal/api"
)

// ErrNoPreview просмотр не открыт или объект не найден среди загруженных
var ErrNoPreview = errors.New("preview is not open")

// за сколько объектов до конца загруженного догружать следующую страницу
const previewPrefetch = 2

type previewCursor struct {
	scope Scope
	index int
}

// PreviewState то, что показывает окно просмотра
type PreviewState struct {
	Scope   Scope
	Item    api.MediaObject
	Index   int
	Loaded  int
	HasPrev bool
	HasNext bool
}

// OpenPreview открывает просмотр объекта id
func (w *Workspace) OpenPreview(ctx context.Context, scope Scope, id string) (*PreviewState, error) {
	pages, err := w.Load(ctx, scope)
	if err != nil {
		return nil, err
	}
	i := pages.Index(id)
	if i < 0 {
		return nil, ErrNoPreview
	}

	w.previewMu.Lock()
	defer w.previewMu.Unlock()
	w.preview = &previewCursor{scope: scope, index: i}
	return previewState(scope, pages, i), nil
}

// PreviewNext переходит к следующему объекту. Рядом с концом загруженного
// догружает страницу. На последнем объекте без новых страниц ничего не делает.
func (w *Workspace) PreviewNext(ctx context.Context) (*PreviewState, error) {
	w.previewMu.Lock()
	defer w.previewMu.Unlock()
	if w.preview == nil {
		return nil, ErrNoPreview
	}
	cur := w.preview

	pages, err := w.Load(ctx, cur.scope)
	if err != nil {
		return nil, err
	}
	if cur.index >= pages.Count()-previewPrefetch && pages.HasNewPage() {
		more, _, err := w.LoadMore(ctx, cur.scope)
		switch {
		case errors.Is(err, ErrSuperseded):
			if pages, err = w.Load(ctx, cur.scope); err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			pages = more
		}
	}

	if cur.index+1 < pages.Count() {
		cur.index++
	}
	if cur.index >= pages.Count() {
		// лента стала короче после перезагрузки
		cur.index = pages.Count() - 1
	}
	if cur.index < 0 {
		w.preview = nil
		return nil, ErrNoPreview
	}
	return previewState(cur.scope, pages, cur.index), nil
}

// PreviewPrev переходит к предыдущему объекту, на первом ничего не делает
func (w *Workspace) PreviewPrev(ctx context.Context) (*PreviewState, error) {
	w.previewMu.Lock()
	defer w.previewMu.Unlock()
	if w.preview == nil {
		return nil, ErrNoPreview
	}
	cur := w.preview

	pages, err := w.Load(ctx, cur.scope)
	if err != nil {
		return nil, err
	}
	if cur.index >= pages.Count() {
		cur.index = pages.Count() - 1
	}
	if cur.index > 0 {
		cur.index--
	}
	if cur.index < 0 {
		w.preview = nil
		return nil, ErrNoPreview
	}
	return previewState(cur.scope, pages, cur.index), nil
}

// PreviewCurrent перечитывает текущий объект просмотра, например после
// изменения избранного. Если объект пропал из ленты, просмотр закрывается.
func (w *Workspace) PreviewCurrent(ctx context.Context) (*PreviewState, error) {
	w.previewMu.Lock()
	defer w.previewMu.Unlock()
	if w.preview == nil {
		return nil, ErrNoPreview
	}
	cur := w.preview

	pages, err := w.Load(ctx, cur.scope)
	if err != nil {
		return nil, err
	}
	if cur.index >= pages.Count() {
		cur.index = pages.Count() - 1
	}
	if cur.index < 0 {
		w.preview = nil
		return nil, ErrNoPreview
	}
	return previewState(cur.scope, pages, cur.index), nil
}

// ClosePreview закрывает просмотр
func (w *Workspace) ClosePreview() {
	w.previewMu.Lock()
	defer w.previewMu.Unlock()
	w.preview = nil
}

func previewState(scope Scope, pages *Pages, i int) *PreviewState {
	items := pages.Items()
	return &PreviewState{
		Scope:   scope,
		Item:    items[i],
		Index:   i,
		Loaded:  len(items),
		HasPrev: i > 0,
		HasNext: i+1 < len(items) || pages.HasNewPage(),
	}
}
