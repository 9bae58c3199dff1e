// Package query кэширует чтения из API по логическим ключам и отслеживает
// состояние мутаций. Один Client обслуживает одну браузерную сессию.
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/photocore/photoadmin/internal/cache"
	"github.com/photocore/photoadmin/internal/logger"
)

// Key логический идентификатор запроса, например "fetchIds:null"
type Key string

// Join собирает ключ из частей через ":"
func Join(parts ...string) Key {
	return Key(strings.Join(parts, ":"))
}

// Options параметры кэша запросов
type Options struct {
	StaleTime      time.Duration // после этого значение отдается, но перезапрашивается в фоне
	CacheTime      time.Duration // после этого значение удаляется
	RefetchTimeout time.Duration
}

// Fetcher загружает значение ключа
type Fetcher func(ctx context.Context) (any, error)

// Client кэш запросов с дедупликацией и фоновым обновлением
type Client struct {
	entries *cache.Cache[any]
	group   singleflight.Group
	opts    Options

	mu          sync.Mutex
	generations map[Key]uint64
	mutations   map[string]*Mutation
}

// NewClient создает кэш запросов
func NewClient(opts Options) *Client {
	if opts.StaleTime == 0 {
		opts.StaleTime = 30 * time.Second
	}
	if opts.CacheTime == 0 {
		opts.CacheTime = 5 * time.Minute
	}
	if opts.RefetchTimeout == 0 {
		opts.RefetchTimeout = 30 * time.Second
	}

	return &Client{
		entries: cache.New(cache.Config[any]{
			DefaultExpiration: opts.CacheTime,
			CleanupInterval:   opts.CacheTime,
			MaxItems:          1000,
		}),
		opts:        opts,
		generations: make(map[Key]uint64),
		mutations:   make(map[string]*Mutation),
	}
}

// Fetch возвращает значение ключа: свежее из кэша, устаревшее из кэша с
// фоновым обновлением, либо загружает его. Одновременные запросы одного
// ключа выполняют fn один раз.
func Fetch[T any](ctx context.Context, c *Client, key Key, fn func(context.Context) (T, error)) (T, error) {
	v, err := c.fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("query %s: cached value has type %T", key, v)
	}
	return t, nil
}

func (c *Client) fetch(ctx context.Context, key Key, fn Fetcher) (any, error) {
	if item, ok := c.entries.GetItem(string(key)); ok {
		if time.Since(item.Stored) >= c.opts.StaleTime {
			c.revalidate(key, fn)
		}
		return item.Value, nil
	}
	return c.load(ctx, key, fn)
}

// load загружает ключ одним запросом на всех ожидающих. Запрос не зависит от
// отмены первого из них и ограничен RefetchTimeout; каждый ожидающий
// перестает ждать по своему ctx.
func (c *Client) load(ctx context.Context, key Key, fn Fetcher) (any, error) {
	gen := c.Generation(key)
	ch := c.group.DoChan(flightKey(key, gen), func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.RefetchTimeout)
		defer cancel()

		v, err := fn(fctx)
		if err != nil {
			return nil, err
		}
		c.SetIf(key, gen, v)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

// revalidate перезапрашивает ключ в фоне, ошибки только логируются
func (c *Client) revalidate(key Key, fn Fetcher) {
	go func() {
		if _, err := c.load(context.Background(), key, fn); err != nil {
			logger.L.Warn("background refetch failed", zap.String("key", string(key)), zap.Error(err))
		}
	}()
}

// Get возвращает значение из кэша без загрузки
func (c *Client) Get(key Key) (any, bool) {
	return c.entries.Get(string(key))
}

// Set записывает значение ключа
func (c *Client) Set(key Key, v any) {
	c.entries.Set(string(key), v)
}

// Generation возвращает номер поколения ключа. Он меняется при каждой инвалидации.
func (c *Client) Generation(key Key) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// SetIf записывает значение, только если ключ не инвалидировали после
// получения gen. Результат запроса, завершившегося после инвалидации,
// отбрасывается.
func (c *Client) SetIf(key Key, gen uint64, v any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != gen {
		return false
	}
	c.entries.Set(string(key), v)
	return true
}

// Invalidate удаляет значения ключей, следующее чтение загрузит их заново
func (c *Client) Invalidate(keys ...Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		c.generations[key]++
		c.entries.Delete(string(key))
	}
}

// InvalidatePrefix инвалидирует все ключи с префиксом
func (c *Client) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.generations {
		if strings.HasPrefix(string(key), prefix) {
			c.generations[key]++
		}
	}
	for _, k := range c.entries.Keys() {
		if strings.HasPrefix(k, prefix) {
			c.generations[Key(k)]++
		}
	}
	c.entries.DeletePrefix(prefix)
}

// Mutation возвращает именованную мутацию, создавая её при первом обращении
func (c *Client) Mutation(name string) *Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.mutations[name]
	if !ok {
		m = &Mutation{}
		c.mutations[name] = m
	}
	return m
}

// Stats статистика кэша запросов
func (c *Client) Stats() cache.CacheStats {
	return c.entries.Stats()
}

// Close останавливает фоновую очистку
func (c *Client) Close() {
	c.entries.Stop()
}

func flightKey(key Key, gen uint64) string {
	return string(key) + "#" + strconv.FormatUint(gen, 10)
}
