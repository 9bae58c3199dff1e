package cache

import (
	"strings"
	"sync"
	"time"
)

// Item представляет элемент кэша
type Item[V any] struct {
	Value      V
	Stored     time.Time
	Expiration int64
}

// IsExpired проверяет, истек ли срок жизни элемента
func (i *Item[V]) IsExpired() bool {
	if i.Expiration == 0 {
		return false
	}
	return time.Now().UnixNano() > i.Expiration
}

// Cache представляет in-memory кэш с TTL
type Cache[V any] struct {
	items             map[string]*Item[V]
	mu                sync.RWMutex
	defaultExpiration time.Duration
	cleanupInterval   time.Duration
	stopCleanup       chan struct{}
	stopOnce          sync.Once
	maxItems          int
	onEvicted         func(key string, value V)
}

// Config конфигурация кэша
type Config[V any] struct {
	DefaultExpiration time.Duration
	CleanupInterval   time.Duration
	MaxItems          int
	OnEvicted         func(key string, value V)
}

// New создает новый кэш
func New[V any](config Config[V]) *Cache[V] {
	if config.DefaultExpiration == 0 {
		config.DefaultExpiration = 5 * time.Minute
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 10 * time.Minute
	}
	if config.MaxItems == 0 {
		config.MaxItems = 10000
	}

	c := &Cache[V]{
		items:             make(map[string]*Item[V]),
		defaultExpiration: config.DefaultExpiration,
		cleanupInterval:   config.CleanupInterval,
		stopCleanup:       make(chan struct{}),
		maxItems:          config.MaxItems,
		onEvicted:         config.OnEvicted,
	}

	go c.cleanupLoop()

	return c
}

// Set добавляет элемент в кэш с TTL по умолчанию
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultExpiration)
}

// SetWithTTL добавляет элемент с указанным TTL, ttl < 0 означает без срока
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	now := time.Now()
	var expiration int64
	if ttl > 0 {
		expiration = now.Add(ttl).UnixNano()
	}

	c.mu.Lock()
	// Проверяем лимит и удаляем старые элементы если нужно
	var evicted []*evictedItem[V]
	if _, exists := c.items[key]; !exists && len(c.items) >= c.maxItems {
		evicted = c.evictOldest()
	}
	c.items[key] = &Item[V]{
		Value:      value,
		Stored:     now,
		Expiration: expiration,
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// Get получает элемент из кэша
func (c *Cache[V]) Get(key string) (V, bool) {
	item, found := c.GetItem(key)
	if !found {
		var zero V
		return zero, false
	}
	return item.Value, true
}

// GetItem получает элемент вместе со временем записи
func (c *Cache[V]) GetItem(key string) (Item[V], bool) {
	c.mu.RLock()
	item, found := c.items[key]
	c.mu.RUnlock()

	if !found {
		return Item[V]{}, false
	}

	if item.IsExpired() {
		c.Delete(key)
		return Item[V]{}, false
	}

	return *item, true
}

// GetOrSet получает элемент или создает новый через функцию
func (c *Cache[V]) GetOrSet(key string, fn func() (V, error)) (V, error) {
	if val, found := c.Get(key); found {
		return val, nil
	}

	val, err := fn()
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, val)
	return val, nil
}

// Take извлекает элемент и удаляет его без вызова OnEvicted
func (c *Cache[V]) Take(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, found := c.items[key]
	if !found || item.IsExpired() {
		var zero V
		return zero, false
	}
	delete(c.items, key)
	return item.Value, true
}

// Delete удаляет элемент из кэша
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	var evicted []*evictedItem[V]
	if item, found := c.items[key]; found {
		evicted = append(evicted, &evictedItem[V]{key: key, value: item.Value})
		delete(c.items, key)
	}
	c.mu.Unlock()

	c.notify(evicted)
}

// DeletePrefix удаляет все элементы, ключ которых начинается с prefix
func (c *Cache[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	var evicted []*evictedItem[V]
	for key, item := range c.items {
		if strings.HasPrefix(key, prefix) {
			evicted = append(evicted, &evictedItem[V]{key: key, value: item.Value})
			delete(c.items, key)
		}
	}
	c.mu.Unlock()

	c.notify(evicted)
	return len(evicted)
}

// Clear очищает кэш
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	evicted := make([]*evictedItem[V], 0, len(c.items))
	for key, item := range c.items {
		evicted = append(evicted, &evictedItem[V]{key: key, value: item.Value})
	}
	c.items = make(map[string]*Item[V])
	c.mu.Unlock()

	c.notify(evicted)
}

// Count возвращает количество элементов в кэше
func (c *Cache[V]) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys возвращает все ключи
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	return keys
}

// Stop останавливает фоновую очистку
func (c *Cache[V]) Stop() {
	c.stopOnce.Do(func() { close(c.stopCleanup) })
}

// Stats возвращает статистику кэша
func (c *Cache[V]) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expired := 0
	for _, item := range c.items {
		if item.IsExpired() {
			expired++
		}
	}

	return CacheStats{
		Items:        len(c.items),
		MaxItems:     c.maxItems,
		ExpiredItems: expired,
	}
}

// CacheStats статистика кэша
type CacheStats struct {
	Items        int `json:"items"`
	MaxItems     int `json:"max_items"`
	ExpiredItems int `json:"expired_items"`
}

type evictedItem[V any] struct {
	key   string
	value V
}

// notify вызывает OnEvicted вне блокировки, чтобы колбэк мог обращаться к кэшу
func (c *Cache[V]) notify(evicted []*evictedItem[V]) {
	if c.onEvicted == nil {
		return
	}
	for _, e := range evicted {
		c.onEvicted(e.key, e.value)
	}
}

func (c *Cache[V]) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCleanup:
			return
		case <-ticker.C:
			c.DeleteExpired()
		}
	}
}

// DeleteExpired удаляет просроченные элементы
func (c *Cache[V]) DeleteExpired() {
	c.mu.Lock()
	var evicted []*evictedItem[V]
	for key, item := range c.items {
		if item.IsExpired() {
			evicted = append(evicted, &evictedItem[V]{key: key, value: item.Value})
			delete(c.items, key)
		}
	}
	c.mu.Unlock()

	c.notify(evicted)
}

func (c *Cache[V]) evictOldest() []*evictedItem[V] {
	// Сначала просроченный элемент, иначе самый давно записанный
	var keyToDelete string
	var oldest time.Time

	for key, item := range c.items {
		if item.IsExpired() {
			keyToDelete = key
			break
		}
		if keyToDelete == "" || item.Stored.Before(oldest) {
			keyToDelete = key
			oldest = item.Stored
		}
	}

	if keyToDelete == "" {
		return nil
	}
	item := c.items[keyToDelete]
	delete(c.items, keyToDelete)
	return []*evictedItem[V]{{key: keyToDelete, value: item.Value}}
}
