package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/whisperjob/errors"
	"github.com/kbukum/whisperjob/redis"
)

// Store persists job records. Get returns a NOT_FOUND AppError for unknown
// or expired ids.
type Store interface {
	Get(ctx context.Context, id string) (*Record, error)
	Put(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps records in process memory. Records expire ttl after
// their last Put; a zero ttl keeps them forever.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string]memoryEntry
}

type memoryEntry struct {
	rec       *Record
	expiresAt time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.records[id]
	if !ok || s.expired(e) {
		delete(s.records, id)
		return nil, errors.NotFound("job", id)
	}
	return e.rec.Clone(), nil
}

func (s *MemoryStore) Put(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.records {
		if s.expired(e) {
			delete(s.records, id)
		}
	}
	e := memoryEntry{rec: rec.Clone()}
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	s.records[rec.ID] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && s.now().After(e.expiresAt)
}

// RedisStore keeps records as JSON in redis under "<prefix>:<id>".
type RedisStore struct {
	store *redis.TypedStore[Record]
	ttl   time.Duration
}

// NewRedisStore creates a RedisStore on client.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{store: redis.NewTypedStore[Record](client, prefix), ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, errors.ExternalServiceError("redis", err)
	}
	if rec == nil {
		return nil, errors.NotFound("job", id)
	}
	return rec, nil
}

func (s *RedisStore) Put(ctx context.Context, rec *Record) error {
	if err := s.store.Save(ctx, rec.ID, rec, s.ttl); err != nil {
		return errors.ExternalServiceError("redis", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
