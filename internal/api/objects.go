package api

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
)

// === Ленты ===

// ListObjects возвращает страницу общей ленты начиная после курсора
func (c *Client) ListObjects(ctx context.Context, cursor string, pageSize int) (*Page, error) {
	return c.listPage(ctx, "objects", cursor, pageSize)
}

// ListFavorites возвращает страницу избранного
func (c *Client) ListFavorites(ctx context.Context, cursor string, pageSize int) (*Page, error) {
	return c.listPage(ctx, "objects/favorites", cursor, pageSize)
}

// ListTrashed возвращает страницу корзины
func (c *Client) ListTrashed(ctx context.Context, cursor string, pageSize int) (*Page, error) {
	return c.listPage(ctx, "objects/trashed", cursor, pageSize)
}

// ListAlbumObjects возвращает страницу альбома. Размер страницы передается в пути.
func (c *Client) ListAlbumObjects(ctx context.Context, albumID, cursor string, pageSize int) (*Page, error) {
	req := &request{
		method: http.MethodGet,
		path:   path("album/%s/%s", albumID, strconv.Itoa(pageSize)),
	}
	if cursor != "" {
		req.query = url.Values{"lastId": {cursor}}
	}

	var page Page
	if err := c.do(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) listPage(ctx context.Context, p, cursor string, pageSize int) (*Page, error) {
	req := &request{
		method: http.MethodGet,
		path:   p,
		query: url.Values{
			"lastId":   {cursor},
			"PageSize": {strconv.Itoa(pageSize)},
		},
	}

	var page Page
	if err := c.do(ctx, req, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// === Массовые операции ===

// TrashObjects перемещает объекты в корзину
func (c *Client) TrashObjects(ctx context.Context, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, "object/trash", objectIDs{ObjectIDs: ids}, nil)
}

// RestoreObjects возвращает объекты из корзины
func (c *Client) RestoreObjects(ctx context.Context, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, "object/trash/removeObjects", objectIDs{ObjectIDs: ids}, nil)
}

// DeleteObjectsPermanent удаляет объекты из корзины навсегда
func (c *Client) DeleteObjectsPermanent(ctx context.Context, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, "object/trash/deletePermanent", objectIDs{ObjectIDs: ids}, nil)
}

// EmptyTrash очищает корзину
func (c *Client) EmptyTrash(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "emptytrash", nil, nil)
}

// AddFavorites добавляет объекты в избранное
func (c *Client) AddFavorites(ctx context.Context, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, "object/addFavorites", objectIDs{ObjectIDs: ids}, nil)
}

// RemoveFavorites убирает объекты из избранного
func (c *Client) RemoveFavorites(ctx context.Context, ids []string) error {
	return c.doJSON(ctx, http.MethodPost, "object/removeFavorites", objectIDs{ObjectIDs: ids}, nil)
}

// === Файлы ===

// Blob потоковый ответ API. Body нужно закрыть.
type Blob struct {
	Body          io.ReadCloser
	ContentType   string
	Disposition   string
	ContentLength int64
}

// DownloadZip запрашивает архив с объектами
func (c *Client) DownloadZip(ctx context.Context, ids []string) (*Blob, error) {
	req, err := jsonRequest(http.MethodPost, "object/downloadZip", objectIDs{ObjectIDs: ids})
	if err != nil {
		return nil, err
	}
	return c.blob(ctx, req)
}

// GetObject возвращает оригинал объекта
func (c *Client) GetObject(ctx context.Context, id string) (*Blob, error) {
	return c.blob(ctx, &request{method: http.MethodGet, path: path("object/%s", id)})
}

// GetThumbnail возвращает миниатюру объекта
func (c *Client) GetThumbnail(ctx context.Context, id string) (*Blob, error) {
	return c.blob(ctx, &request{method: http.MethodGet, path: path("object/%s/thumbnail", id)})
}

func (c *Client) blob(ctx context.Context, req *request) (*Blob, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return &Blob{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		Disposition:   resp.Header.Get("Content-Disposition"),
		ContentLength: resp.ContentLength,
	}, nil
}

// UploadObject загружает файл. Хеш объекта считается от содержимого.
func (c *Client) UploadObject(ctx context.Context, filename string, data []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}

	fields := map[string]string{
		"objectHash":     ObjectHash(data),
		"AppleCloudId":   "",
		"AndroidCloudId": "",
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to build upload body: %w", err)
	}

	return c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "object",
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, nil)
}

// ObjectHash SHA-1 содержимого в base64, так сервер находит дубликаты
func ObjectHash(data []byte) string {
	sum := sha1.Sum(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}
