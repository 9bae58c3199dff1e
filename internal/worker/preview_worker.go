package worker

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/photocore/photoadmin/internal/media"
)

// OriginalFetcher читает оригинал объекта от имени сессии
type OriginalFetcher func(ctx context.Context, sessionID, objectID string) (body io.ReadCloser, contentType string, err error)

// PreviewService готовит превью для окна просмотра, в том числе заранее
// для соседних объектов
type PreviewService struct {
	pool  *Pool
	gen   *media.PreviewGenerator
	fetch OriginalFetcher

	// Отслеживание задач в процессе
	mu         sync.RWMutex
	processing map[string]bool // previewKey -> in progress
}

// previewKey превью принадлежит сессии: объект другого пользователя
// нельзя получить из общего кэша, зная только его id
func previewKey(sessionID, objectID string) string {
	return sessionID + "/" + objectID
}

// NewPreviewService создает сервис превью
func NewPreviewService(pool *Pool, gen *media.PreviewGenerator, fetch OriginalFetcher) *PreviewService {
	svc := &PreviewService{
		pool:       pool,
		gen:        gen,
		fetch:      fetch,
		processing: make(map[string]bool),
	}

	pool.RegisterHandler(TaskWarmPreview, svc.handlePreview)

	return svc
}

// QueuePreview ставит в очередь подготовку превью, если его еще нет
func (s *PreviewService) QueuePreview(sessionID, objectID string) bool {
	key := previewKey(sessionID, objectID)
	if s.gen.Exists(key) {
		return false
	}

	s.mu.Lock()
	if s.processing[key] {
		s.mu.Unlock()
		return false // Уже в очереди
	}
	s.processing[key] = true
	s.mu.Unlock()

	task := &Task{
		ID:        uuid.NewString(),
		Type:      TaskWarmPreview,
		SessionID: sessionID,
		ObjectID:  objectID,
		CreatedAt: time.Now(),
	}

	if !s.pool.Submit(task) {
		s.release(key)
		return false
	}
	return true
}

// Ensure возвращает превью, при необходимости готовя его сразу.
// ok == false, если объект нельзя уменьшить (видео), тогда нужен оригинал.
func (s *PreviewService) Ensure(ctx context.Context, sessionID, objectID string) (data []byte, ok bool, err error) {
	key := previewKey(sessionID, objectID)
	if s.gen.Exists(key) {
		data, err := s.gen.Load(key)
		return data, err == nil, err
	}

	generated, err := s.generate(ctx, sessionID, objectID)
	if err != nil || !generated {
		return nil, false, err
	}
	data, err = s.gen.Load(key)
	return data, err == nil, err
}

func (s *PreviewService) handlePreview(ctx context.Context, task *Task) error {
	defer s.release(previewKey(task.SessionID, task.ObjectID))

	// Проверяем контекст
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	_, err := s.generate(ctx, task.SessionID, task.ObjectID)
	return err
}

func (s *PreviewService) generate(ctx context.Context, sessionID, objectID string) (bool, error) {
	body, contentType, err := s.fetch(ctx, sessionID, objectID)
	if err != nil {
		return false, fmt.Errorf("failed to fetch original %s: %w", objectID, err)
	}
	defer body.Close()

	if !media.IsResizable(contentType) {
		return false, nil
	}
	if _, err := s.gen.Generate(previewKey(sessionID, objectID), body); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PreviewService) release(key string) {
	s.mu.Lock()
	delete(s.processing, key)
	s.mu.Unlock()
}

// IsProcessing проверяет, готовится ли превью
func (s *PreviewService) IsProcessing(sessionID, objectID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processing[previewKey(sessionID, objectID)]
}

// Forget удаляет превью объектов сессии, например после удаления объектов
func (s *PreviewService) Forget(sessionID string, objectIDs ...string) {
	for _, id := range objectIDs {
		s.gen.Delete(previewKey(sessionID, id))
	}
}
