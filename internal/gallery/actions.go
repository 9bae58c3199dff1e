package gallery

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/query"
)

var (
	ErrEmptySelection = errors.New("nothing is selected")
	ErrNoAlbum        = errors.New("album is required")
	ErrSystemAlbum    = errors.New("system album cannot be changed")
	ErrNotAllowed     = errors.New("action is not available here")
)

// Action массовое действие над выбором
type Action string

const (
	ActionTrash           Action = "trash"
	ActionRestore         Action = "restore"
	ActionDelete          Action = "delete"
	ActionFavorite        Action = "favorite"
	ActionUnfavorite      Action = "unfavorite"
	ActionAddToAlbum      Action = "add-to-album"
	ActionRemoveFromAlbum Action = "remove-from-album"
	ActionDownload        Action = "download"
)

// Label подпись кнопки действия
func (a Action) Label() string {
	switch a {
	case ActionTrash:
		return "В корзину"
	case ActionRestore:
		return "Восстановить"
	case ActionDelete:
		return "Удалить навсегда"
	case ActionFavorite:
		return "В избранное"
	case ActionUnfavorite:
		return "Убрать из избранного"
	case ActionAddToAlbum:
		return "Добавить в альбом"
	case ActionRemoveFromAlbum:
		return "Убрать из альбома"
	case ActionDownload:
		return "Скачать"
	default:
		return string(a)
	}
}

// Done сообщение об успешном выполнении
func (a Action) Done(n int) string {
	switch a {
	case ActionTrash:
		return fmt.Sprintf("Перемещено в корзину: %d", n)
	case ActionRestore:
		return fmt.Sprintf("Восстановлено: %d", n)
	case ActionDelete:
		return fmt.Sprintf("Удалено навсегда: %d", n)
	case ActionFavorite:
		return fmt.Sprintf("Добавлено в избранное: %d", n)
	case ActionUnfavorite:
		return fmt.Sprintf("Убрано из избранного: %d", n)
	case ActionAddToAlbum:
		return fmt.Sprintf("Добавлено в альбом: %d", n)
	case ActionRemoveFromAlbum:
		return fmt.Sprintf("Убрано из альбома: %d", n)
	default:
		return "Готово"
	}
}

// Destructive действие требует подтверждения
func (a Action) Destructive() bool {
	return a == ActionDelete || a == ActionTrash
}

// Remote операции API, которые использует лента
type Remote interface {
	Source
	TrashObjects(ctx context.Context, ids []string) error
	RestoreObjects(ctx context.Context, ids []string) error
	DeleteObjectsPermanent(ctx context.Context, ids []string) error
	EmptyTrash(ctx context.Context) error
	AddFavorites(ctx context.Context, ids []string) error
	RemoveFavorites(ctx context.Context, ids []string) error
	AddObjectsToAlbum(ctx context.Context, albumID string, ids []string) error
	RemoveObjectsFromAlbum(ctx context.Context, albumID string, ids []string) error
	DownloadZip(ctx context.Context, ids []string) (*api.Blob, error)
}

// BulkRequest массовое действие над выбором области
type BulkRequest struct {
	Action      Action
	TargetAlbum string // для add-to-album
}

// Archive архив выбранных объектов. Body нужно закрыть.
type Archive struct {
	Filename    string
	ContentType string
	Body        io.ReadCloser
}

// BulkResult итог массового действия
type BulkResult struct {
	Action  Action
	Count   int
	Archive *Archive // только для download
}

// Message текст уведомления об успехе
func (r *BulkResult) Message() string {
	return r.Action.Done(r.Count)
}

// Bulk выполняет действие над выбором области. При успехе выбор очищается, а
// затронутые области инвалидируются. При ошибке выбор и страницы не меняются.
// Скачивание ничего не меняет на сервере, поэтому выбор остается.
func (w *Workspace) Bulk(ctx context.Context, scope Scope, req BulkRequest) (*BulkResult, error) {
	if !scope.Allows(req.Action) {
		if req.Action == ActionRemoveFromAlbum && scope.Kind == KindAlbum && scope.System {
			return nil, ErrSystemAlbum
		}
		return nil, fmt.Errorf("%w: %s", ErrNotAllowed, req.Action)
	}

	ids := w.SelectedIDs(scope)
	if len(ids) == 0 {
		return nil, ErrEmptySelection
	}

	if req.Action == ActionDownload {
		return w.download(ctx, ids)
	}

	var fn func(ctx context.Context) error
	switch req.Action {
	case ActionTrash:
		fn = func(ctx context.Context) error { return w.remote.TrashObjects(ctx, ids) }
	case ActionRestore:
		fn = func(ctx context.Context) error { return w.remote.RestoreObjects(ctx, ids) }
	case ActionDelete:
		fn = func(ctx context.Context) error { return w.remote.DeleteObjectsPermanent(ctx, ids) }
	case ActionFavorite:
		fn = func(ctx context.Context) error { return w.remote.AddFavorites(ctx, ids) }
	case ActionUnfavorite:
		fn = func(ctx context.Context) error { return w.remote.RemoveFavorites(ctx, ids) }
	case ActionAddToAlbum:
		if req.TargetAlbum == "" {
			return nil, ErrNoAlbum
		}
		fn = func(ctx context.Context) error { return w.remote.AddObjectsToAlbum(ctx, req.TargetAlbum, ids) }
	case ActionRemoveFromAlbum:
		if scope.AlbumID == "" {
			return nil, ErrNoAlbum
		}
		fn = func(ctx context.Context) error { return w.remote.RemoveObjectsFromAlbum(ctx, scope.AlbumID, ids) }
	}

	if err := w.qc.Mutation(string(req.Action)).Run(ctx, fn); err != nil {
		logger.L.Info("bulk action failed",
			zap.String("action", string(req.Action)),
			zap.String("scope", string(scope.Key())),
			zap.Int("count", len(ids)),
			zap.Error(err))
		return nil, err
	}

	w.ClearSelection(scope)
	w.invalidate(scope, req.Action, req.TargetAlbum)

	logger.L.Debug("bulk action done",
		zap.String("action", string(req.Action)),
		zap.String("scope", string(scope.Key())),
		zap.Int("count", len(ids)))

	return &BulkResult{Action: req.Action, Count: len(ids)}, nil
}

func (w *Workspace) download(ctx context.Context, ids []string) (*BulkResult, error) {
	var blob *api.Blob
	err := w.qc.Mutation(string(ActionDownload)).Run(ctx, func(ctx context.Context) error {
		var err error
		blob, err = w.remote.DownloadZip(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}

	contentType := blob.ContentType
	if contentType == "" {
		contentType = "application/zip"
	}
	return &BulkResult{
		Action: ActionDownload,
		Count:  len(ids),
		Archive: &Archive{
			Filename:    ArchiveFilename(blob.Disposition),
			ContentType: contentType,
			Body:        blob.Body,
		},
	}, nil
}

// ToggleFavorite меняет отметку избранного у одного объекта, выбор не затрагивается
func (w *Workspace) ToggleFavorite(ctx context.Context, scope Scope, id string, favorite bool) error {
	action := ActionFavorite
	if !favorite {
		action = ActionUnfavorite
	}

	err := w.qc.Mutation("favorite:"+id).Run(ctx, func(ctx context.Context) error {
		if favorite {
			return w.remote.AddFavorites(ctx, []string{id})
		}
		return w.remote.RemoveFavorites(ctx, []string{id})
	})
	if err != nil {
		return err
	}

	w.invalidate(scope, action, "")
	return nil
}

// EmptyTrash очищает корзину целиком
func (w *Workspace) EmptyTrash(ctx context.Context) error {
	if err := w.qc.Mutation("emptytrash").Run(ctx, w.remote.EmptyTrash); err != nil {
		return err
	}
	w.ClearSelection(Trash())
	w.qc.Invalidate(trashKey)
	return nil
}

// invalidate сбрасывает активную область и области, содержимое которых
// изменилось вместе с ней
func (w *Workspace) invalidate(scope Scope, action Action, targetAlbum string) {
	keys := []query.Key{scope.Key()}
	var prefixes []string

	switch action {
	case ActionTrash:
		// объект пропадает из ленты, альбомов и избранного
		keys = append(keys, favoritesKey, trashKey)
		prefixes = append(prefixes, feedKeyPrefix)
	case ActionRestore:
		keys = append(keys, favoritesKey)
		prefixes = append(prefixes, feedKeyPrefix)
	case ActionFavorite, ActionUnfavorite:
		keys = append(keys, favoritesKey)
		prefixes = append(prefixes, feedKeyPrefix)
	case ActionAddToAlbum:
		keys = append(keys, AlbumScope(api.Album{ID: targetAlbum}).Key())
	}

	w.qc.Invalidate(keys...)
	for _, p := range prefixes {
		w.qc.InvalidatePrefix(p)
	}
}
