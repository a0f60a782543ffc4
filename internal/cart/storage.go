package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStorageMiss is returned by Storage implementations when the key is absent.
var ErrStorageMiss = errors.New("cart: storage key not found")

// Storage is the durable key-value slot a Store persists into.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// MemoryStorage keeps values in process memory.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStorage constructs an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: map[string][]byte{}}
}

// Get implements Storage.
func (m *MemoryStorage) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrStorageMiss
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string][]byte{}
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

// RedisStorage persists values in Redis under Prefix+key with a sliding TTL.
type RedisStorage struct {
	Client *redis.Client
	Prefix string
	TTL    time.Duration
}

// Get implements Storage.
func (s RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	if s.Client == nil {
		return nil, errors.New("cart: redis client not configured")
	}
	data, err := s.Client.Get(ctx, s.Prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrStorageMiss
		}
		return nil, err
	}
	return data, nil
}

// Set implements Storage.
func (s RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	if s.Client == nil {
		return errors.New("cart: redis client not configured")
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return s.Client.Set(ctx, s.Prefix+key, value, ttl).Err()
}
