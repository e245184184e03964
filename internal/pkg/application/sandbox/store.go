package sandbox

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/diwise/warp/pkg/warp/errors"
)

// Record is a stored object
type Record struct {
	ClassName  string
	ID         string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	Attributes map[string]any
}

type Store interface {
	Insert(ctx context.Context, r Record) error
	Get(ctx context.Context, className, id string) (Record, error)
	Replace(ctx context.Context, r Record) error
	Delete(ctx context.Context, className, id string) error
}

type memoryStore struct {
	mu      sync.RWMutex
	classes map[string]map[string]Record
}

func NewMemoryStore() Store {
	return &memoryStore{
		classes: map[string]map[string]Record{},
	}
}

func (m *memoryStore) Insert(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	objects, ok := m.classes[r.ClassName]
	if !ok {
		objects = map[string]Record{}
		m.classes[r.ClassName] = objects
	}

	if _, exists := objects[r.ID]; exists {
		return fmt.Errorf("%s with id %s already exists (%w)", r.ClassName, r.ID, errors.ErrBadRequest)
	}

	objects[r.ID] = clone(r)

	return nil
}

func (m *memoryStore) Get(ctx context.Context, className, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.classes[className][id]
	if !ok {
		return Record{}, notFound(className, id)
	}

	return clone(r), nil
}

func (m *memoryStore) Replace(ctx context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.classes[r.ClassName][r.ID]; !ok {
		return notFound(r.ClassName, r.ID)
	}

	m.classes[r.ClassName][r.ID] = clone(r)

	return nil
}

func (m *memoryStore) Delete(ctx context.Context, className, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.classes[className][id]; !ok {
		return notFound(className, id)
	}

	delete(m.classes[className], id)

	return nil
}

func clone(r Record) Record {
	r.Attributes = maps.Clone(r.Attributes)
	if r.Attributes == nil {
		r.Attributes = map[string]any{}
	}
	return r
}

func notFound(className, id string) error {
	return fmt.Errorf("no %s with id %s (%w)", className, id, errors.ErrNotFound)
}
