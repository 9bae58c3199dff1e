package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Префиксы ключей для разных типов данных
const (
	prefixSession = "session:" // session:{id} -> Session
	prefixValue   = "kv:"      // kv:{sessionID}:{key} -> строковое значение
)

// Store обертка над BadgerDB
type Store struct {
	db *badger.DB
}

// NewStore создает новое хранилище
func NewStore(dbPath string) (*Store, error) {
	// Создаем директорию для БД если не существует
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	return open(opts)
}

// NewMemoryStore создает хранилище без записи на диск
func NewMemoryStore() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close закрывает хранилище
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC запускает сборку мусора в value log
func (s *Store) RunGC() {
	for s.db.RunValueLogGC(0.5) == nil {
	}
}

// === Session операции ===

// SaveSession сохраняет сессию браузера с ограниченным временем жизни
func (s *Store) SaveSession(sess *Session, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		return txn.SetEntry(entry(prefixSession+sess.ID, data, ttl))
	})
}

// GetSession получает сессию, nil если её нет или она истекла
func (s *Store) GetSession(id string) (*Session, error) {
	var sess Session
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixSession + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sess)
		})
	})
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// DeleteSession удаляет сессию вместе со всеми её значениями
func (s *Store) DeleteSession(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(valuePrefix(id))
		it := txn.NewIterator(opts)

		var keys [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return txn.Delete([]byte(prefixSession + id))
	})
}

// === Значения сессии ===

// Get возвращает значение ключа сессии, "" если ключа нет
func (s *Store) Get(sessionID, key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(valuePrefix(sessionID) + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return "", nil
	}
	return value, err
}

// Set сохраняет значения сессии одной транзакцией
func (s *Store) Set(sessionID string, values map[string]string, ttl time.Duration) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for key, value := range values {
			if err := txn.SetEntry(entry(valuePrefix(sessionID)+key, []byte(value), ttl)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete удаляет ключи сессии, отсутствующие ключи игнорируются
func (s *Store) Delete(sessionID string, keys ...string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range keys {
			if err := txn.Delete([]byte(valuePrefix(sessionID) + key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func valuePrefix(sessionID string) string {
	return prefixValue + sessionID + ":"
}

func entry(key string, value []byte, ttl time.Duration) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		e = e.WithTTL(ttl)
	}
	return e
}
