package sink

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nao1215/hostcrawl/internal/model"
)

// DefaultStatusPrefix namespaces status keys.
const DefaultStatusPrefix = "hostcrawl:status:"

// Crawl states.
const (
	StateRunning   = "running"
	StateFinished  = "finished"
	StateCancelled = "cancelled"
	StateFailed    = "failed"
)

// CrawlStatus is the status record of one crawl session.
type CrawlStatus struct {
	SessionID  string    `json:"session_id"`
	SeedURL    string    `json:"seed_url"`
	State      string    `json:"state"`
	Downloaded int       `json:"downloaded"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StatusFromReport derives the status record for report. A report that has
// not finished is running; otherwise cancellation wins over an error.
func StatusFromReport(report *model.CrawlReport) CrawlStatus {
	state := StateFinished
	switch {
	case report.Cancelled:
		state = StateCancelled
	case report.Error != "":
		state = StateFailed
	case report.FinishedAt.IsZero():
		state = StateRunning
	}
	return CrawlStatus{
		SessionID:  report.SessionID,
		SeedURL:    report.SeedURL,
		State:      state,
		Downloaded: len(report.Downloaded),
		Failed:     len(report.Failures),
		Error:      report.Error,
		UpdatedAt:  time.Now().UTC(),
	}
}

// StatusStore persists crawl session status.
type StatusStore interface {
	SetStatus(ctx context.Context, status CrawlStatus) error
	GetStatus(ctx context.Context, sessionID string) (CrawlStatus, bool, error)
}

type statusClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Close() error
}

// RedisStatusStore stores crawl status in Redis with a TTL.
type RedisStatusStore struct {
	client statusClient
	prefix string
	ttl    time.Duration
}

// NewRedisStatusStore initializes a Redis-backed StatusStore.
func NewRedisStatusStore(addr, prefix string, ttl time.Duration) *RedisStatusStore {
	return NewRedisStatusStoreWithClient(redis.NewClient(&redis.Options{Addr: addr}), prefix, ttl)
}

// NewRedisStatusStoreWithClient builds a store on a custom client.
func NewRedisStatusStoreWithClient(client statusClient, prefix string, ttl time.Duration) *RedisStatusStore {
	if prefix == "" {
		prefix = DefaultStatusPrefix
	}
	return &RedisStatusStore{client: client, prefix: prefix, ttl: ttl}
}

// Close closes the Redis client.
func (s *RedisStatusStore) Close() error {
	return s.client.Close()
}

// SetStatus writes the status record.
func (s *RedisStatusStore) SetStatus(ctx context.Context, status CrawlStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.prefix+status.SessionID, payload, s.ttl).Err()
}

// GetStatus reads the status record. The bool is false when none exists.
func (s *RedisStatusStore) GetStatus(ctx context.Context, sessionID string) (CrawlStatus, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CrawlStatus{}, false, nil
		}
		return CrawlStatus{}, false, err
	}

	var status CrawlStatus
	if err := json.Unmarshal([]byte(val), &status); err != nil {
		return CrawlStatus{}, false, err
	}
	return status, true, nil
}
