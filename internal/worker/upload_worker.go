package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/logger"
)

// Uploader отправляет файл в API от имени сессии
type Uploader func(ctx context.Context, sessionID, filename string, data []byte) error

// UploadDone вызывается после каждой загрузки
type UploadDone func(sessionID, filename string, err error)

// UploadService загружает файлы в фоне, чтобы запрос браузера не ждал API.
// Файлы в очереди лежат на диске, в память читаются только при отправке.
type UploadService struct {
	pool     *Pool
	spoolDir string
	upload   Uploader
	onDone   UploadDone

	// Загрузки в процессе по сессиям
	mu         sync.RWMutex
	processing map[string]int
}

// NewUploadService создает сервис загрузки. Остатки очереди прошлого запуска удаляются.
func NewUploadService(pool *Pool, spoolDir string, upload Uploader, onDone UploadDone) (*UploadService, error) {
	if err := os.RemoveAll(spoolDir); err != nil {
		return nil, fmt.Errorf("failed to clean upload spool: %w", err)
	}
	if err := os.MkdirAll(spoolDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload spool: %w", err)
	}

	svc := &UploadService{
		pool:       pool,
		spoolDir:   spoolDir,
		upload:     upload,
		onDone:     onDone,
		processing: make(map[string]int),
	}

	pool.RegisterHandler(TaskUpload, svc.handleUpload)

	return svc, nil
}

// Spool сохраняет содержимое файла на диск и возвращает путь для Queue
func (s *UploadService) Spool(r io.Reader) (string, error) {
	f, err := os.CreateTemp(s.spoolDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create spool file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to spool upload: %w", err)
	}
	return f.Name(), nil
}

// Queue ставит файл из Spool в очередь загрузки. Файл принадлежит сервису
// и удаляется после отправки или если очередь заполнена.
func (s *UploadService) Queue(sessionID, filename, path string) bool {
	s.mu.Lock()
	s.processing[sessionID]++
	s.mu.Unlock()

	task := &Task{
		ID:        uuid.NewString(),
		Type:      TaskUpload,
		SessionID: sessionID,
		Filename:  filename,
		Path:      path,
		CreatedAt: time.Now(),
	}

	if !s.pool.Submit(task) {
		os.Remove(path)
		s.done(sessionID)
		return false
	}
	return true
}

// Pending число незавершенных загрузок сессии
func (s *UploadService) Pending(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing[sessionID]
}

func (s *UploadService) handleUpload(ctx context.Context, task *Task) error {
	defer s.done(task.SessionID)
	defer os.Remove(task.Path)

	start := time.Now()
	data, err := os.ReadFile(task.Path)
	if err != nil {
		err = fmt.Errorf("failed to read spooled upload: %w", err)
	} else {
		err = s.upload(ctx, task.SessionID, task.Filename, data)
	}
	if err == nil {
		logger.L.Info("file uploaded",
			zap.String("file", task.Filename),
			zap.Int("bytes", len(data)),
			zap.Duration("took", time.Since(start)))
	}

	if s.onDone != nil {
		s.onDone(task.SessionID, task.Filename, err)
	}
	return err
}

func (s *UploadService) done(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing[sessionID] <= 1 {
		delete(s.processing, sessionID)
		return
	}
	s.processing[sessionID]--
}
