package archive

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store with in-memory storage (for testing and for
// deployments that only need the admin listing, not durability)
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]*memoryObject
}

type memoryObject struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// NewMemoryStore creates an empty in-memory snapshot store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*memoryObject),
	}
}

// Put stores an object in memory
func (m *MemoryStore) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	if err := m.validateKey(key); err != nil {
		return err
	}

	dataBytes, err := io.ReadAll(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[key] = &memoryObject{
		data:         dataBytes,
		contentType:  contentType,
		lastModified: time.Now().UTC(),
	}
	return nil
}

// Get retrieves an object from memory
func (m *MemoryStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := m.validateKey(key); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, exists := m.objects[key]
	if !exists {
		return nil, ErrNotFound
	}

	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Delete removes an object from memory
func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := m.validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.objects[key]; !exists {
		return ErrNotFound
	}

	delete(m.objects, key)
	return nil
}

// Exists checks if an object exists in memory
func (m *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := m.validateKey(key); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.objects[key]
	return exists, nil
}

// List returns objects whose keys start with prefix
func (m *MemoryStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var objects []ObjectInfo
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			objects = append(objects, ObjectInfo{
				Key:          key,
				Size:         int64(len(obj.data)),
				LastModified: obj.lastModified,
				ContentType:  obj.contentType,
			})
		}
	}

	return objects, nil
}

func (m *MemoryStore) validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// Size returns the number of objects stored (useful for testing)
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ Store = (*MemoryStore)(nil)
