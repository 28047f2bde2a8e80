package storage

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryStore vive sólo mientras dure el proceso.
type memoryStore struct{ c *gocache.Cache }

func NewMemory() Store {
	return &memoryStore{c: gocache.New(gocache.NoExpiration, time.Minute)}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *memoryStore) Ping(context.Context) error { return nil }

func (m *memoryStore) Close() error {
	m.c.Flush()
	return nil
}
