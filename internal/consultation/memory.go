package consultation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepo keeps consultations for the lifetime of the process only.
type memoryRepo struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*Consultation
}

func NewMemoryRepository() Repository {
	return &memoryRepo{items: make(map[uuid.UUID]*Consultation)}
}

func (r *memoryRepo) GetByID(_ context.Context, id uuid.UUID) (*Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

func (r *memoryRepo) Save(_ context.Context, c *Consultation) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	c.UpdatedAt = time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[c.ID] = c.Clone()
	return nil
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}
