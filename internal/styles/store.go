package styles

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"studio/internal/infra"
	"studio/internal/sqlinline"
	"studio/internal/storage"
)

var (
	// ErrCapacityExceeded is returned when a value does not fit the store.
	ErrCapacityExceeded = errors.New("style store capacity exceeded")
	// ErrConflict is returned when another writer changed the key since it was read.
	ErrConflict = errors.New("style store was modified concurrently")
	// ErrKeyNotFound is returned by Get for keys never written.
	ErrKeyNotFound = errors.New("key not found")
)

// PersistentKeyValueStore is the durable storage the library writes its whole
// collection to under a single key.
type PersistentKeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// MemoryStore keeps values in memory with an optional total byte capacity.
type MemoryStore struct {
	mu       sync.Mutex
	capacity int
	values   map[string][]byte
}

// NewMemoryStore returns an empty store. capacity <= 0 means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{capacity: capacity, values: map[string][]byte{}}
}

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capacity > 0 {
		total := len(value)
		for k, v := range m.values {
			if k != key {
				total += len(v)
			}
		}
		if total > m.capacity {
			return fmt.Errorf("%w: %d of %d bytes", ErrCapacityExceeded, total, m.capacity)
		}
	}
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// FileStore writes each key as <key>.json through a storage.FileStore.
type FileStore struct {
	files    *storage.FileStore
	capacity int
}

// NewFileStore roots a store at dir.
func NewFileStore(dir string, capacity int) (*FileStore, error) {
	files, err := storage.NewFileStore(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{files: files, capacity: capacity}, nil
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := f.files.Read(ctx, key+".json")
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return data, err
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if f.capacity > 0 && len(value) > f.capacity {
		return fmt.Errorf("%w: %d of %d bytes", ErrCapacityExceeded, len(value), f.capacity)
	}
	_, err := f.files.Write(ctx, key+".json", value)
	return err
}

// PostgresStore keeps values in the kv_entries table. Writes are optimistic:
// a Set only succeeds if the row still has the version this store last read
// or wrote, otherwise it returns ErrConflict.
type PostgresStore struct {
	db        infra.SQLExecutor
	namespace string
	capacity  int

	mu       sync.Mutex
	versions map[string]int64
}

// NewPostgresStore returns a store scoped to namespace.
func NewPostgresStore(db infra.SQLExecutor, namespace string, capacity int) *PostgresStore {
	return &PostgresStore{db: db, namespace: namespace, capacity: capacity, versions: map[string]int64{}}
}

// EnsureSchema creates the kv_entries table if needed.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, sqlinline.QCreateKVEntries)
	return err
}

func (p *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value   []byte
		version int64
	)
	err := p.db.QueryRow(ctx, sqlinline.QSelectKVEntry, p.namespace, key).Scan(&value, &version)
	if err != nil {
		if infra.IsNoRows(err) {
			p.setVersion(key, 0)
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	p.setVersion(key, version)
	return value, nil
}

func (p *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	if p.capacity > 0 && len(value) > p.capacity {
		return fmt.Errorf("%w: %d of %d bytes", ErrCapacityExceeded, len(value), p.capacity)
	}
	p.mu.Lock()
	expected := p.versions[key]
	p.mu.Unlock()

	tag, err := p.db.Exec(ctx, sqlinline.QUpsertKVEntry, p.namespace, key, value, expected)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	p.setVersion(key, expected+1)
	return nil
}

func (p *PostgresStore) setVersion(key string, v int64) {
	p.mu.Lock()
	p.versions[key] = v
	p.mu.Unlock()
}
