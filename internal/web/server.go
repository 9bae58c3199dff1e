package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/photocore/photoadmin/internal/api"
	"github.com/photocore/photoadmin/internal/auth"
	"github.com/photocore/photoadmin/internal/cache"
	"github.com/photocore/photoadmin/internal/config"
	"github.com/photocore/photoadmin/internal/download"
	"github.com/photocore/photoadmin/internal/gallery"
	"github.com/photocore/photoadmin/internal/logger"
	"github.com/photocore/photoadmin/internal/notify"
	"github.com/photocore/photoadmin/internal/web/handlers"
	"github.com/photocore/photoadmin/internal/worker"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// Server представляет веб-сервер приложения
type Server struct {
	cfg        *config.Config
	auth       *auth.Auth
	api        *api.Client
	templates  *template.Template
	router     *chi.Mux
	http       *http.Server
	workspaces *gallery.Registry
	hub        *notify.Hub
	links      *download.Links
	cache      *cache.MediaCache
	workerPool *worker.Pool
	uploads    *worker.UploadService
	previews   *worker.PreviewService
}

// NewServer создает новый веб-сервер
func NewServer(
	cfg *config.Config,
	authService *auth.Auth,
	client *api.Client,
	workspaces *gallery.Registry,
	hub *notify.Hub,
	links *download.Links,
	mediaCache *cache.MediaCache,
	workerPool *worker.Pool,
	uploads *worker.UploadService,
	previews *worker.PreviewService,
) (*Server, error) {
	// Парсим шаблоны
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		auth:       authService,
		api:        client,
		templates:  tmpl,
		workspaces: workspaces,
		hub:        hub,
		links:      links,
		cache:      mediaCache,
		workerPool: workerPool,
		uploads:    uploads,
		previews:   previews,
	}

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// Создаем handlers
	h := handlers.NewHandlers(s.cfg, s.auth, s.api, s.templates, s.workspaces, s.hub, s.links, s.cache, s.workerPool, s.uploads, s.previews)

	// Статические файлы
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	// JSON для внешних панелей мониторинга
	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.Server.CORSOrigins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
		r.Use(middleware.Timeout(60 * time.Second))
		r.Get("/status", h.Status)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)
			r.Use(s.auth.RequireAdmin)
			r.Get("/stats", h.Stats)
		})
	})

	r.Group(func(r chi.Router) {
		// Браузерная сессия нужна всем страницам, в том числе входу
		r.Use(s.auth.Middleware)

		// Публичные маршруты
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/login", h.LoginPage)
			r.Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Get("/register", h.RegisterPage)
			r.Post("/register", h.Register)
			r.Get("/forgot-password", h.ForgotPasswordPage)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Get("/reset-password", h.ResetPasswordPage)
			r.Post("/reset-password", h.ResetPassword)
		})

		// Защищенные маршруты
		r.Group(func(r chi.Router) {
			r.Use(s.auth.RequireLogin)

			// WebSocket и длинные передачи файлов без общего таймаута
			r.Get("/ws", h.Notifications)
			r.Get("/media/{id}/original", h.ServeOriginal)
			r.Get("/downloads/{token}", h.Download)
			r.Post("/upload", h.Upload)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))

				r.Get("/", h.Index)
				r.Get("/gallery", h.Index)

				// Ленты
				r.Route("/gallery/{kind}", func(r chi.Router) {
					r.Use(h.GalleryScope)
					h.GalleryRoutes(r)
					r.Post("/empty", h.EmptyTrash)
				})

				// Альбомы
				r.Get("/albums", h.ListAlbums)
				r.Post("/albums", h.CreateAlbum)
				r.Post("/albums/delete", h.DeleteAlbums)
				r.Route("/albums/{id}", func(r chi.Router) {
					r.Use(h.AlbumScope)
					h.GalleryRoutes(r)
					r.Post("/rename", h.RenameAlbum)
					r.Post("/delete", h.DeleteAlbum)
				})

				// Медиа
				r.Get("/media/{id}/thumb", h.ServeThumbnail)
				r.Get("/media/{id}/preview", h.ServePreview)

				// Учетная запись
				r.Get("/settings", h.Settings)
				r.Post("/settings/password", h.ChangePassword)
				r.Post("/settings/delete", h.DeleteAccount)

				// Администрирование
				r.Group(func(r chi.Router) {
					r.Use(s.auth.RequireAdmin)

					r.Get("/admin", h.AdminPage)
					r.Post("/admin/registration", h.ChangeRegistration)

					r.Get("/users", h.ListUsers)
					r.Get("/users/new", h.NewUserPage)
					r.Post("/users", h.CreateUser)
					r.Get("/users/{userID}", h.GetUser)
					r.Post("/users/{userID}/quota", h.ChangeQuota)
					r.Post("/users/{userID}/role", h.ChangeRole)
					r.Post("/users/{userID}/password", h.ResetUserPassword)
					r.Post("/users/{userID}/delete", h.DeleteUser)
				})
			})
		})

		r.NotFound(h.NotFound)
	})

	s.router = r
}

// Handler корневой обработчик, нужен тестам
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает веб-сервер и блокируется до остановки
func (s *Server) Start() error {
	addr := s.cfg.Addr()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.L.Info("starting server", zap.String("addr", "http://"+addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown дожидается завершения текущих запросов
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// requestLogger пишет запросы в zap вместо стандартного логгера chi
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logger.L.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}
