package media

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/photocore/photoadmin/internal/config"
)

// PreviewGenerator уменьшает оригиналы до размера экрана для окна просмотра.
// Результат хранится на диске, оригинал с сервера больше не запрашивается.
type PreviewGenerator struct {
	cfg       *config.Config
	cachePath string
}

// NewPreviewGenerator создает новый генератор превью
func NewPreviewGenerator(cfg *config.Config) *PreviewGenerator {
	return &PreviewGenerator{
		cfg:       cfg,
		cachePath: cfg.Storage.CachePath,
	}
}

// EnsureCacheDir создает директорию кэша если не существует
func (p *PreviewGenerator) EnsureCacheDir() error {
	return os.MkdirAll(filepath.Join(p.cachePath, "previews"), 0755)
}

// PreviewPath возвращает путь к превью. Имя файла не зависит от формата id.
func (p *PreviewGenerator) PreviewPath(objectID string) string {
	sum := sha256.Sum256([]byte(objectID))
	return filepath.Join(p.cachePath, "previews", hex.EncodeToString(sum[:12])+".jpg")
}

// Exists проверяет наличие превью
func (p *PreviewGenerator) Exists(objectID string) bool {
	_, err := os.Stat(p.PreviewPath(objectID))
	return err == nil
}

// Delete удаляет превью объекта
func (p *PreviewGenerator) Delete(objectIDs ...string) {
	for _, id := range objectIDs {
		os.Remove(p.PreviewPath(id)) // файла может не быть
	}
}

// Generate читает оригинал из src и сохраняет уменьшенную копию. Если
// превью уже есть, src не читается.
func (p *PreviewGenerator) Generate(objectID string, src io.Reader) (string, error) {
	if err := p.EnsureCacheDir(); err != nil {
		return "", err
	}

	previewPath := p.PreviewPath(objectID)
	if _, err := os.Stat(previewPath); err == nil {
		return previewPath, nil
	}

	// Ориентация из EXIF применяется при декодировании
	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	maxSize := p.cfg.Preview.MaxSize
	bounds := img.Bounds()
	if bounds.Dx() > maxSize || bounds.Dy() > maxSize {
		img = imaging.Fit(img, maxSize, maxSize, imaging.Lanczos)
	}

	// Пишем во временный файл, чтобы параллельный запрос не прочитал половину
	tmp, err := os.CreateTemp(filepath.Dir(previewPath), "preview-*")
	if err != nil {
		return "", fmt.Errorf("failed to create preview file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: p.cfg.Preview.Quality}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), previewPath); err != nil {
		return "", fmt.Errorf("failed to store preview: %w", err)
	}

	return previewPath, nil
}

// Load возвращает содержимое готового превью
func (p *PreviewGenerator) Load(objectID string) ([]byte, error) {
	return os.ReadFile(p.PreviewPath(objectID))
}

// Dimensions возвращает размеры изображения без полного декодирования
func Dimensions(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

// IsResizable сообщает, умеет ли генератор уменьшать такой тип содержимого
func IsResizable(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif":
		return true
	default:
		return false
	}
}
