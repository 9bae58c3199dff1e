package worker

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photocore/photoadmin/internal/config"
	"github.com/photocore/photoadmin/internal/media"
)

func TestPool_RunsRegisteredHandler(t *testing.T) {
	p := NewPool(2, 10)
	done := make(chan string, 1)
	p.RegisterHandler(TaskUpload, func(ctx context.Context, task *Task) error {
		done <- task.Filename
		return nil
	})
	p.Start()
	defer p.Stop()

	require.True(t, p.Submit(&Task{ID: "1", Type: TaskUpload, Filename: "a.jpg"}))

	select {
	case name := <-done:
		assert.Equal(t, "a.jpg", name)
	case <-time.After(2 * time.Second):
		t.Fatal("task was not processed")
	}

	require.Eventually(t, func() bool { return p.Stats().CompletedTasks == 1 }, time.Second, 10*time.Millisecond)
}

func TestPool_QueueFull(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Stop()

	// воркеры не запущены, очередь на одну задачу
	assert.True(t, p.Submit(&Task{ID: "1", Type: TaskUpload}))
	assert.False(t, p.Submit(&Task{ID: "2", Type: TaskUpload}))
	assert.Equal(t, 1, p.QueueLength())
}

func TestUploadService_NotifiesResult(t *testing.T) {
	p := NewPool(1, 10)
	p.Start()
	defer p.Stop()

	var mu sync.Mutex
	results := map[string]error{}
	sent := map[string]string{}
	done := make(chan struct{}, 2)

	spool := t.TempDir()
	svc, err := NewUploadService(p, spool,
		func(ctx context.Context, sessionID, filename string, data []byte) error {
			mu.Lock()
			sent[filename] = string(data)
			mu.Unlock()
			if filename == "bad.jpg" {
				return errors.New("quota exceeded")
			}
			return nil
		},
		func(sessionID, filename string, err error) {
			mu.Lock()
			results[filename] = err
			mu.Unlock()
			done <- struct{}{}
		})
	require.NoError(t, err)

	good, err := svc.Spool(strings.NewReader("x"))
	require.NoError(t, err)
	bad, err := svc.Spool(strings.NewReader("y"))
	require.NoError(t, err)

	require.True(t, svc.Queue("s1", "good.jpg", good))
	require.True(t, svc.Queue("s1", "bad.jpg", bad))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("upload was not processed")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.NoError(t, results["good.jpg"])
	assert.EqualError(t, results["bad.jpg"], "quota exceeded")
	assert.Equal(t, map[string]string{"good.jpg": "x", "bad.jpg": "y"}, sent)
	require.Eventually(t, func() bool { return svc.Pending("s1") == 0 }, time.Second, 10*time.Millisecond)

	// отправленные файлы удалены из очереди на диске
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(spool)
		return err == nil && len(entries) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestUploadService_QueueFullRemovesFile(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Stop()

	svc, err := NewUploadService(p, t.TempDir(),
		func(ctx context.Context, sessionID, filename string, data []byte) error { return nil }, nil)
	require.NoError(t, err)

	first, err := svc.Spool(strings.NewReader("a"))
	require.NoError(t, err)
	second, err := svc.Spool(strings.NewReader("b"))
	require.NoError(t, err)

	// воркеры не запущены, вторая задача не помещается
	require.True(t, svc.Queue("s1", "a.jpg", first))
	assert.False(t, svc.Queue("s1", "b.jpg", second))

	_, err = os.Stat(second)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, svc.Pending("s1"))
}

func TestPreviewService_Ensure(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 300, 150))))
	original := buf.Bytes()

	cfg := &config.Config{}
	cfg.Storage.CachePath = t.TempDir()
	cfg.Preview.MaxSize = 60
	cfg.Preview.Quality = 80

	fetches := 0
	svc := NewPreviewService(NewPool(1, 10), media.NewPreviewGenerator(cfg),
		func(ctx context.Context, sessionID, objectID string) (io.ReadCloser, string, error) {
			fetches++
			if objectID == "video" {
				return io.NopCloser(strings.NewReader("....")), "video/mp4", nil
			}
			return io.NopCloser(bytes.NewReader(original)), "image/png", nil
		})

	data, ok, err := svc.Ensure(context.Background(), "s1", "photo")
	require.NoError(t, err)
	require.True(t, ok)
	w, h, err := media.Dimensions(data)
	require.NoError(t, err)
	assert.Equal(t, 60, w)
	assert.Equal(t, 30, h)

	_, ok, err = svc.Ensure(context.Background(), "s1", "photo")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, fetches)

	_, ok, err = svc.Ensure(context.Background(), "s1", "video")
	require.NoError(t, err)
	assert.False(t, ok)

	// готовое превью в очередь не ставится
	assert.False(t, svc.QueuePreview("s1", "photo"))
}
