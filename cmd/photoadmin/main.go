package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/auth"
	"github.com/photocore/photoadmin/internal/cache"
	"github.com/photocore/photoadmin/internal/config"
	"github.com/photocore/photoadmin/internal/download"
	"github.com/photocore/photoadmin/internal/gallery"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/media"
	"github.com/photocore/photoadmin/internal/notify"
	"github.com/photocore/photoadmin/internal/query"
	"github.com/photocore/photoadmin/internal/storage"
	"github.com/photocore/photoadmin/internal/web"
	"github.com/photocore/photoadmin/internal/worker"
)

// как часто чистить журнал значений badger
const gcInterval = 10 * time.Minute

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Storage.LogsPath, cfg.Log.Env); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Cleanup()

	if err := run(cfg); err != nil {
		logger.L.Error("photoadmin stopped with error", zap.Error(err))
		logger.Cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// Сессии браузеров и токены
	store, err := storage.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	authService := auth.NewAuth(cfg, store)

	client, err := api.NewClient(cfg.API.BaseURL, &http.Client{Timeout: cfg.API.Timeout})
	if err != nil {
		return err
	}
	logger.L.Info("api configured", zap.String("base_url", cfg.API.BaseURL))

	sessionClient := func(sessionID string) *api.Client {
		return client.WithTokens(authService.Tokens(sessionID))
	}

	workspaces := gallery.NewRegistry(gallery.Options{
		PageSize:      cfg.Gallery.PageSize,
		AlbumPageSize: cfg.Gallery.AlbumPageSize,
		IdleTimeout:   cfg.Gallery.IdleTimeout,
		Query: query.Options{
			StaleTime:      cfg.Query.StaleTime,
			CacheTime:      cfg.Query.CacheTime,
			RefetchTimeout: cfg.API.Timeout,
		},
	}, func(sessionID string) gallery.Remote {
		return sessionClient(sessionID)
	})
	defer workspaces.Close()

	hub := notify.NewHub(cfg.Gallery.IdleTimeout)
	defer hub.Close()

	links, err := download.NewLinks(cfg.Storage.DownloadPath, cfg.Preview.LinkTTL)
	if err != nil {
		return fmt.Errorf("failed to prepare downloads: %w", err)
	}
	defer links.Close()

	mediaCache := cache.NewMediaCache()
	defer mediaCache.Stop()

	// Фоновые загрузки и превью
	pool := worker.NewPool(cfg.Upload.Workers, cfg.Upload.QueueSize)

	uploads, err := worker.NewUploadService(pool, cfg.Upload.SpoolPath,
		func(ctx context.Context, sessionID, filename string, data []byte) error {
			return sessionClient(sessionID).UploadObject(ctx, filename, data)
		},
		func(sessionID, filename string, err error) {
			if err != nil {
				hub.Push(sessionID, notify.Error("Не удалось загрузить "+filename, err.Error()))
				return
			}
			workspaces.Get(sessionID).Invalidate(gallery.Feed())
			t := notify.Success("Загружено: " + filename)
			t.Refresh = true
			hub.Push(sessionID, t)
		})
	if err != nil {
		return err
	}

	previewGen := media.NewPreviewGenerator(cfg)
	if err := previewGen.EnsureCacheDir(); err != nil {
		return fmt.Errorf("failed to create preview cache: %w", err)
	}
	previews := worker.NewPreviewService(pool, previewGen,
		func(ctx context.Context, sessionID, objectID string) (io.ReadCloser, string, error) {
			blob, err := sessionClient(sessionID).GetObject(ctx, objectID)
			if err != nil {
				return nil, "", err
			}
			return blob.Body, blob.ContentType, nil
		})

	pool.Start()
	defer pool.Stop()

	server, err := web.NewServer(cfg, authService, client, workspaces, hub, links, mediaCache, pool, uploads, previews)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go runGC(ctx, store)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runGC(ctx context.Context, store *storage.Store) {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.RunGC()
		}
	}
}
