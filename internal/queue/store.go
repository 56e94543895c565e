package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fleet-alert-service/pkg/db"
	"fleet-alert-service/pkg/models"

	"github.com/go-redis/redis/v8"
)

const queueCacheKey = "alerts:active:queue"

// Cache persists the full active queue as one canonical value per cycle.
type Cache interface {
	GetQueue(ctx context.Context) ([]models.Alert, error)
	SetQueue(ctx context.Context, alerts []models.Alert) error
}

// RedisCache stores the serialized queue in Redis.
type RedisCache struct {
	client *db.RedisClient
}

func NewRedisCache(client *db.RedisClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) GetQueue(ctx context.Context) ([]models.Alert, error) {
	data, err := c.client.Get(ctx, queueCacheKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue cache: %w", err)
	}

	var alerts []models.Alert
	if err := json.Unmarshal(data, &alerts); err != nil {
		return nil, fmt.Errorf("failed to decode queue cache: %w", err)
	}
	return alerts, nil
}

func (c *RedisCache) SetQueue(ctx context.Context, alerts []models.Alert) error {
	data, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to encode queue: %w", err)
	}
	if err := c.client.Set(ctx, queueCacheKey, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write queue cache: %w", err)
	}
	return nil
}

// Store is the single writer for the active alert queue. All mutation goes
// through its mutex; the whole queue is re-persisted to the cache after every
// change.
type Store struct {
	mu     sync.Mutex
	alerts []models.Alert
	cache  Cache
	window time.Duration
	max    int
}

func NewStore(cache Cache, window time.Duration, maxSize int) *Store {
	return &Store{
		cache:  cache,
		window: window,
		max:    maxSize,
	}
}

// Load restores the queue from the cache, typically at startup.
func (s *Store) Load(ctx context.Context) error {
	alerts, err := s.cache.GetQueue(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.alerts = alerts
	s.mu.Unlock()
	return nil
}

// MergeAndPersist merges newly classified candidates into the queue, caps it
// and persists the result. It returns the candidates that entered the queue as
// genuinely new entries, which are the ones that need notification dispatch.
func (s *Store) MergeAndPersist(ctx context.Context, incoming []models.Alert) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[string]bool, len(s.alerts))
	for _, a := range s.alerts {
		known[a.ID] = true
	}

	merged := Cap(Merge(incoming, s.alerts, s.window), s.max)

	surviving := make(map[string]bool, len(merged))
	for _, a := range merged {
		surviving[a.ID] = true
	}

	var fresh []models.Alert
	for _, a := range incoming {
		if surviving[a.ID] && !known[a.ID] && !a.SavedToDatabase {
			fresh = append(fresh, a)
		}
	}

	s.alerts = merged
	if err := s.cache.SetQueue(ctx, s.alerts); err != nil {
		return fresh, err
	}
	return fresh, nil
}

// Active returns the unsaved view of the queue: promoted alerts are excluded.
func (s *Store) Active() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if !a.SavedToDatabase {
			active = append(active, a)
		}
	}
	return active
}

// Get looks up an alert by ID, including promoted entries not yet purged.
func (s *Store) Get(id string) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.alerts {
		if a.ID == id {
			return a, true
		}
	}
	return models.Alert{}, false
}

// MarkSent records an acknowledgment. The alert stays in the active queue.
func (s *Store) MarkSent(ctx context.Context, id, actor string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID != id {
			continue
		}
		s.alerts[i].Sent = true
		s.alerts[i].SentAt = &at
		s.alerts[i].SentBy = actor
		return s.cache.SetQueue(ctx, s.alerts)
	}
	return fmt.Errorf("alert %s not found in active queue", id)
}

// MarkSaved flags an alert as promoted and immediately purges promoted entries
// so the active queue only holds alerts still awaiting triage.
func (s *Store) MarkSaved(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	kept := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if a.ID == id {
			found = true
			continue
		}
		if a.SavedToDatabase {
			continue
		}
		kept = append(kept, a)
	}
	if !found {
		return fmt.Errorf("alert %s not found in active queue", id)
	}

	s.alerts = kept
	return s.cache.SetQueue(ctx, s.alerts)
}

// Size reports the current queue length including promoted entries.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}
