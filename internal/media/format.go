package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
)

// сколько байт нужно для определения формата
const headerSize = 262

// FormatInfo содержит информацию о формате загружаемого файла
type FormatInfo struct {
	DetectedMIME      string // MIME тип определенный по содержимому
	DetectedExtension string // Расширение определенное по содержимому
	ClaimedExtension  string // Расширение из имени файла
	IsSupported       bool   // Сервер принимает такой формат
	IsVideo           bool
}

// Поддерживаемые форматы изображений
var supportedImages = map[string]bool{
	"image/jpeg":   true,
	"image/png":    true,
	"image/gif":    true,
	"image/webp":   true,
	"image/heic":   true,
	"image/heif":   true,
	"image/bmp":    true,
	"image/tiff":   true,
	"image/x-icon": true,
}

// Поддерживаемые видео форматы
var supportedVideos = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true, // .mov
	"video/x-msvideo":  true, // .avi
	"video/x-matroska": true, // .mkv
	"video/webm":       true,
	"video/mpeg":       true,
}

// RAW filetype определяет не всегда, проверяем по расширению
var rawExtensions = map[string]bool{
	".cr2": true,
	".cr3": true,
	".nef": true,
	".nrw": true,
	".arw": true,
	".dng": true,
	".orf": true,
	".raf": true,
	".rw2": true,
	".raw": true,
	".srf": true,
}

// DetectFormat определяет реальный формат файла по magic bytes
func DetectFormat(filename string, data []byte) *FormatInfo {
	info := &FormatInfo{
		ClaimedExtension: strings.ToLower(filepath.Ext(filename)),
	}

	head := data
	if len(head) > headerSize {
		head = head[:headerSize]
	}

	kind, err := filetype.Match(head)
	if err == nil && kind != filetype.Unknown {
		info.DetectedMIME = kind.MIME.Value
		info.DetectedExtension = "." + kind.Extension
	}

	switch {
	case supportedImages[info.DetectedMIME]:
		info.IsSupported = true
	case supportedVideos[info.DetectedMIME]:
		info.IsSupported = true
		info.IsVideo = true
	case rawExtensions[info.ClaimedExtension]:
		info.IsSupported = true
	}
	return info
}

// ValidateUpload проверяет файл перед отправкой на сервер
func ValidateUpload(filename string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%s: empty file", filename)
	}
	info := DetectFormat(filename, data)
	if !info.IsSupported {
		if info.DetectedMIME == "" {
			return fmt.Errorf("%s: unknown file format", filename)
		}
		return fmt.Errorf("%s: unsupported format %s", filename, info.DetectedMIME)
	}
	return nil
}
