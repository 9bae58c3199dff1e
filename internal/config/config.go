package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BaseURLPlaceholder подставляется в образ при сборке и заменяется при деплое
const BaseURLPlaceholder = "%%BASEURL%%"

// BaseURLEnv переменная окружения с адресом API, если в конфиге его нет
const BaseURLEnv = "PHOTOADMIN_API_URL"

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	API     APIConfig     `yaml:"api"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`
	Gallery GalleryConfig `yaml:"gallery"`
	Query   QueryConfig   `yaml:"query"`
	Preview PreviewConfig `yaml:"preview"`
	Upload  UploadConfig  `yaml:"upload"`
	Log     LogConfig     `yaml:"log"`
}

type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	DBPath       string `yaml:"db_path"`
	CachePath    string `yaml:"cache_path"`
	DownloadPath string `yaml:"download_path"`
	LogsPath     string `yaml:"logs_path"`
}

type AuthConfig struct {
	SessionMaxAge     int           `yaml:"session_max_age"`    // время жизни cookie браузера, секунды
	RefreshExpiration time.Duration `yaml:"refresh_expiration"` // срок жизни refresh-токена
	SecureCookie      bool          `yaml:"secure_cookie"`
}

type GalleryConfig struct {
	PageSize      int           `yaml:"page_size"`
	AlbumPageSize int           `yaml:"album_page_size"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"` // через сколько выбрасывать состояние неактивного браузера
}

type QueryConfig struct {
	StaleTime time.Duration `yaml:"stale_time"`
	CacheTime time.Duration `yaml:"cache_time"`
}

type PreviewConfig struct {
	MaxSize int           `yaml:"max_size"` // длинная сторона превью для лайтбокса
	Quality int           `yaml:"quality"`  // JPEG quality (0-100)
	LinkTTL time.Duration `yaml:"link_ttl"` // время жизни временной ссылки на архив
}

type UploadConfig struct {
	Workers        int    `yaml:"workers"`
	QueueSize      int    `yaml:"queue_size"`
	MaxMemory      int64  `yaml:"max_memory"`       // часть формы, которая держится в памяти
	MaxFileSize    int64  `yaml:"max_file_size"`    // предел одного файла, байты
	MaxRequestSize int64  `yaml:"max_request_size"` // предел всего запроса загрузки, байты
	SpoolPath      string `yaml:"spool_path"`       // файлы в очереди ждут отправки здесь
}

type LogConfig struct {
	Env string `yaml:"env"` // production или development
}

// Load читает конфигурацию из YAML-файла и окружения
func Load(path string) (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case os.IsNotExist(err):
		// Работаем только на значениях по умолчанию и окружении
	default:
		return nil, err
	}

	cfg.setDefaults()

	baseURL, err := ResolveBaseURL(cfg.API.BaseURL, os.Getenv(BaseURLEnv))
	if err != nil {
		return nil, err
	}
	cfg.API.BaseURL = baseURL

	return &cfg, nil
}

// ResolveBaseURL выбирает адрес API: значение из конфига, если его подставили
// при деплое, иначе переменная окружения. Результат всегда заканчивается на "/".
func ResolveBaseURL(configured, env string) (string, error) {
	baseURL := configured
	if baseURL == "" || baseURL == BaseURLPlaceholder {
		baseURL = env
	}
	if baseURL == "" {
		return "", fmt.Errorf("api base url is not set: use api.base_url or %s", BaseURLEnv)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return baseURL, nil
}

func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = 60 * time.Second
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "./data/photoadmin.db"
	}
	if c.Storage.CachePath == "" {
		c.Storage.CachePath = "./cache"
	}
	if c.Storage.DownloadPath == "" {
		c.Storage.DownloadPath = "./cache/downloads"
	}
	if c.Storage.LogsPath == "" {
		c.Storage.LogsPath = "./logs"
	}
	if c.Auth.SessionMaxAge == 0 {
		c.Auth.SessionMaxAge = 30 * 86400
	}
	if c.Auth.RefreshExpiration == 0 {
		c.Auth.RefreshExpiration = 72 * time.Hour
	}
	if c.Gallery.PageSize == 0 {
		c.Gallery.PageSize = 30
	}
	if c.Gallery.AlbumPageSize == 0 {
		c.Gallery.AlbumPageSize = 100
	}
	if c.Gallery.IdleTimeout == 0 {
		c.Gallery.IdleTimeout = time.Hour
	}
	if c.Query.StaleTime == 0 {
		c.Query.StaleTime = 30 * time.Second
	}
	if c.Query.CacheTime == 0 {
		c.Query.CacheTime = 5 * time.Minute
	}
	if c.Preview.MaxSize == 0 {
		c.Preview.MaxSize = 1920
	}
	if c.Preview.Quality == 0 {
		c.Preview.Quality = 85
	}
	if c.Preview.LinkTTL == 0 {
		c.Preview.LinkTTL = 5 * time.Minute
	}
	if c.Upload.Workers == 0 {
		c.Upload.Workers = 4
	}
	if c.Upload.QueueSize == 0 {
		c.Upload.QueueSize = 100
	}
	if c.Upload.MaxMemory == 0 {
		c.Upload.MaxMemory = 32 << 20
	}
	if c.Upload.MaxFileSize == 0 {
		c.Upload.MaxFileSize = 512 << 20
	}
	if c.Upload.MaxRequestSize == 0 {
		c.Upload.MaxRequestSize = 2 << 30
	}
	if c.Upload.SpoolPath == "" {
		c.Upload.SpoolPath = "./cache/uploads"
	}
	if c.Log.Env == "" {
		c.Log.Env = "production"
	}
}

// Addr возвращает адрес для прослушивания
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
