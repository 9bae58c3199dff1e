package cache

import (
	"time"
)

// Blob бинарные данные с типом содержимого
type Blob struct {
	Data        []byte
	ContentType string
}

// MediaCache кэш миниатюр и превью, полученных от API
type MediaCache struct {
	// Миниатюры плитки ленты
	thumbCache *Cache[*Blob]

	// Превью под размер экрана для окна просмотра
	previewCache *Cache[*Blob]
}

// NewMediaCache создает новый медиа-кэш
func NewMediaCache() *MediaCache {
	return &MediaCache{
		thumbCache: New(Config[*Blob]{
			DefaultExpiration: 10 * time.Minute,
			CleanupInterval:   5 * time.Minute,
			MaxItems:          5000,
		}),
		previewCache: New(Config[*Blob]{
			DefaultExpiration: 2 * time.Minute,
			CleanupInterval:   1 * time.Minute,
			MaxItems:          200,
		}),
	}
}

// GetThumb получает миниатюру из кэша
func (mc *MediaCache) GetThumb(id string) (*Blob, bool) {
	return mc.thumbCache.Get("thumb:" + id)
}

// SetThumb сохраняет миниатюру
func (mc *MediaCache) SetThumb(id string, b *Blob) {
	mc.thumbCache.Set("thumb:"+id, b)
}

// GetPreview получает превью из кэша
func (mc *MediaCache) GetPreview(id string) (*Blob, bool) {
	return mc.previewCache.Get("preview:" + id)
}

// SetPreview сохраняет превью
func (mc *MediaCache) SetPreview(id string, b *Blob) {
	mc.previewCache.Set("preview:"+id, b)
}

// Forget удаляет объект из всех кэшей, например после удаления навсегда
func (mc *MediaCache) Forget(ids ...string) {
	for _, id := range ids {
		mc.thumbCache.Delete("thumb:" + id)
		mc.previewCache.Delete("preview:" + id)
	}
}

// Clear очищает все кэши
func (mc *MediaCache) Clear() {
	mc.thumbCache.Clear()
	mc.previewCache.Clear()
}

// Stop останавливает все кэши
func (mc *MediaCache) Stop() {
	mc.thumbCache.Stop()
	mc.previewCache.Stop()
}

// Stats возвращает общую статистику кэшей
func (mc *MediaCache) Stats() map[string]CacheStats {
	return map[string]CacheStats{
		"thumbs":   mc.thumbCache.Stats(),
		"previews": mc.previewCache.Stats(),
	}
}
