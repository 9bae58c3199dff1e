// Package download выдает архивы по одноразовым ссылкам. Тело архива
// сохраняется во временный файл, который удаляется после отдачи или по
// истечении срока ссылки.
package download

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/cache"
	"github.com/photocore/photoadmin/internal/logger"
)

// ErrNotFound ссылки нет, она уже использована или истекла
var ErrNotFound = errors.New("download link not found")

// Link временная ссылка на файл
type Link struct {
	Token       string
	SessionID   string
	Filename    string
	ContentType string
	Size        int64
	path        string
}

// Links хранилище временных ссылок
type Links struct {
	dir   string
	links *cache.Cache[*Link]
}

// NewLinks создает хранилище. Оставшиеся от прошлого запуска файлы удаляются.
func NewLinks(dir string, ttl time.Duration) (*Links, error) {
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clean download dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Links{
		dir: dir,
		links: cache.New(cache.Config[*Link]{
			DefaultExpiration: ttl,
			CleanupInterval:   ttl / 2,
			MaxItems:          1000,
			OnEvicted: func(_ string, l *Link) {
				l.release()
			},
		}),
	}, nil
}

// Stash сохраняет тело во временный файл и возвращает ссылку на него.
// body закрывается в любом случае.
func (s *Links) Stash(sessionID, filename, contentType string, body io.ReadCloser) (*Link, error) {
	defer body.Close()

	f, err := os.CreateTemp(s.dir, "archive-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}

	size, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to store archive: %w", err)
	}

	l := &Link{
		Token:       uuid.NewString(),
		SessionID:   sessionID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		path:        f.Name(),
	}
	s.links.Set(l.Token, l)
	return l, nil
}

// Serve отдает файл по ссылке один раз и удаляет его. Ссылка работает
// только в той же браузерной сессии.
func (s *Links) Serve(w http.ResponseWriter, r *http.Request, token, sessionID string) error {
	l, ok := s.links.Take(token)
	if !ok {
		return ErrNotFound
	}
	if l.SessionID != sessionID {
		// чужая ссылка остается до истечения срока
		s.links.Set(token, l)
		return ErrNotFound
	}
	defer l.release()

	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer f.Close()

	contentType := l.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": l.Filename}))
	w.Header().Set("Content-Length", strconv.FormatInt(l.Size, 10))
	w.Header().Set("Cache-Control", "no-store")

	if _, err := io.Copy(w, f); err != nil {
		logger.L.Warn("archive transfer interrupted", zap.String("file", l.Filename), zap.Error(err))
	}
	return nil
}

// Pending число неиспользованных ссылок
func (s *Links) Pending() int {
	return s.links.Count()
}

// Close удаляет все временные файлы
func (s *Links) Close() {
	s.links.Clear()
	s.links.Stop()
}

func (l *Link) release() {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		logger.L.Warn("failed to remove archive", zap.String("path", l.path), zap.Error(err))
	}
}
