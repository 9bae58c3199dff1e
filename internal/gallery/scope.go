// Package gallery загружает ленты объектов постранично по курсору lastId,
// хранит выбор пользователя и выполняет массовые действия над выбором.
package gallery

import (
	"fmt"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/query"
)

// Kind вид ленты
type Kind string

const (
	KindFeed      Kind = "feed"
	KindAlbum     Kind = "album"
	KindFavorites Kind = "favorites"
	KindTrash     Kind = "trash"
)

// Ключи запросов лент. Лента и альбомы делят префикс, чтобы их можно было
// инвалидировать вместе.
const (
	feedKeyPrefix = "fetchIds"
	favoritesKey  = query.Key("fetchFavoritesIds")
	trashKey      = query.Key("fetchTrashedMediaIds")
)

// Scope область ленты. У каждой области своя последовательность страниц и свой выбор.
type Scope struct {
	Kind    Kind
	AlbumID string
	System  bool // системный альбом: из него нельзя убирать объекты
}

func Feed() Scope      { return Scope{Kind: KindFeed} }
func Favorites() Scope { return Scope{Kind: KindFavorites} }
func Trash() Scope     { return Scope{Kind: KindTrash} }

// AlbumScope лента альбома
func AlbumScope(album api.Album) Scope {
	return Scope{Kind: KindAlbum, AlbumID: album.ID, System: album.IsSystem}
}

// ParseScope разбирает вид ленты из адреса страницы
func ParseScope(kind string) (Scope, error) {
	switch Kind(kind) {
	case KindFeed:
		return Feed(), nil
	case KindFavorites:
		return Favorites(), nil
	case KindTrash:
		return Trash(), nil
	default:
		return Scope{}, fmt.Errorf("unknown gallery %q", kind)
	}
}

// Key ключ запроса страниц области
func (s Scope) Key() query.Key {
	switch s.Kind {
	case KindAlbum:
		return query.Join(feedKeyPrefix, s.AlbumID)
	case KindFavorites:
		return favoritesKey
	case KindTrash:
		return trashKey
	default:
		return query.Join(feedKeyPrefix, "null")
	}
}

// Path адрес страницы области
func (s Scope) Path() string {
	if s.Kind == KindAlbum {
		return "/albums/" + s.AlbumID
	}
	return "/gallery/" + string(s.Kind)
}

// Title заголовок страницы
func (s Scope) Title() string {
	switch s.Kind {
	case KindAlbum:
		return "Альбом"
	case KindFavorites:
		return "Избранное"
	case KindTrash:
		return "Корзина"
	default:
		return "Все фото"
	}
}

// EmptyText текст пустой ленты
func (s Scope) EmptyText() string {
	switch s.Kind {
	case KindAlbum:
		return "В альбоме пока ничего нет"
	case KindFavorites:
		return "В избранном пока ничего нет"
	case KindTrash:
		return "Корзина пуста"
	default:
		return "Здесь пока ничего нет"
	}
}

// Actions массовые действия, доступные в области
func (s Scope) Actions() []Action {
	switch s.Kind {
	case KindTrash:
		return []Action{ActionRestore, ActionDelete}
	case KindFavorites:
		return []Action{ActionUnfavorite, ActionAddToAlbum, ActionDownload, ActionTrash}
	case KindAlbum:
		actions := []Action{ActionFavorite, ActionUnfavorite, ActionAddToAlbum}
		if !s.System {
			actions = append(actions, ActionRemoveFromAlbum)
		}
		return append(actions, ActionDownload, ActionTrash)
	default:
		return []Action{ActionFavorite, ActionUnfavorite, ActionAddToAlbum, ActionDownload, ActionTrash}
	}
}

// Allows сообщает, доступно ли действие в области
func (s Scope) Allows(a Action) bool {
	for _, allowed := range s.Actions() {
		if allowed == a {
			return true
		}
	}
	return false
}
