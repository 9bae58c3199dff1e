package api

import (
	"context"
	"net/http"
)

// ListAlbums возвращает альбомы пользователя
func (c *Client) ListAlbums(ctx context.Context) ([]Album, error) {
	var resp albumsResponse
	if err := c.doJSON(ctx, http.MethodGet, "album", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Albums, nil
}

// GetAlbum возвращает альбом
func (c *Client) GetAlbum(ctx context.Context, id string) (*Album, error) {
	var album Album
	if err := c.doJSON(ctx, http.MethodGet, path("album/%s", id), nil, &album); err != nil {
		return nil, err
	}
	return &album, nil
}

// CreateAlbum создает альбом
func (c *Client) CreateAlbum(ctx context.Context, name string, isSystem bool) error {
	body := struct {
		Name     string `json:"name"`
		IsSystem bool   `json:"isSystem"`
	}{name, isSystem}
	return c.doJSON(ctx, http.MethodPost, "album", body, nil)
}

// UpdateAlbum переименовывает альбом
func (c *Client) UpdateAlbum(ctx context.Context, id, name string) error {
	body := struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}{id, name}
	return c.doJSON(ctx, http.MethodPut, "album", body, nil)
}

// DeleteAlbum удаляет альбом
func (c *Client) DeleteAlbum(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, path("album/%s", id), nil, nil)
}

// AddObjectsToAlbum добавляет объекты в альбом
func (c *Client) AddObjectsToAlbum(ctx context.Context, albumID string, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, path("album/%s/objects", albumID), objectIDs{ObjectIDs: ids}, nil)
}

// RemoveObjectsFromAlbum убирает объекты из альбома
func (c *Client) RemoveObjectsFromAlbum(ctx context.Context, albumID string, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, path("albums/%s/objects:bulk-delete", albumID), objectIDs{ObjectIDs: ids}, nil)
}
