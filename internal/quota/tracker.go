package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/juanmh10/RAG-AWS/internal/redis"
)

// Backend stores per-session usage counters. Counters survive process
// restarts when backed by redis; the memory backend exists for tests and
// single-process runs.
type Backend interface {
	Count(ctx context.Context, sessionID string) (int64, error)
	Add(ctx context.Context, sessionID string, n int64) (int64, error)
	Reset(ctx context.Context, sessionID string) error
}

const keyPrefix = "quota:"

// RedisBackend keeps usage counters in redis under "quota:<session>".
type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func (b *RedisBackend) Count(ctx context.Context, sessionID string) (int64, error) {
	raw, err := b.client.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		if errors.Is(err, redis.ErrCacheMiss) {
			return 0, nil
		}
		return 0, fmt.Errorf("read usage counter: %w", err)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse usage counter %q: %w", raw, err)
	}
	return n, nil
}

func (b *RedisBackend) Add(ctx context.Context, sessionID string, n int64) (int64, error) {
	total, err := b.client.IncrBy(ctx, keyPrefix+sessionID, n)
	if err != nil {
		return 0, fmt.Errorf("increment usage counter: %w", err)
	}
	return total, nil
}

func (b *RedisBackend) Reset(ctx context.Context, sessionID string) error {
	if err := b.client.Del(ctx, keyPrefix+sessionID); err != nil {
		return fmt.Errorf("reset usage counter: %w", err)
	}
	return nil
}

// MemoryBackend is an in-process counter store.
type MemoryBackend struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{counts: make(map[string]int64)}
}

func (b *MemoryBackend) Count(_ context.Context, sessionID string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts[sessionID], nil
}

func (b *MemoryBackend) Add(_ context.Context, sessionID string, n int64) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts[sessionID] += n
	return b.counts[sessionID], nil
}

func (b *MemoryBackend) Reset(_ context.Context, sessionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.counts, sessionID)
	return nil
}

// Tracker enforces a per-session usage ceiling measured in words. Words are a
// deliberate proxy for model tokens: cheap to count, close enough for a
// per-session cost cap.
type Tracker struct {
	backend Backend
	max     int64
}

func NewTracker(backend Backend, max int64) *Tracker {
	return &Tracker{backend: backend, max: max}
}

// Words counts whitespace-separated words in s.
func Words(s string) int64 {
	return int64(len(strings.Fields(s)))
}

// Exceeded reports whether the session has reached its ceiling. The check is
// made before answering, so a session always gets the exchange that crosses
// the line and is cut off on the next one.
func (t *Tracker) Exceeded(ctx context.Context, sessionID string) (bool, error) {
	count, err := t.backend.Count(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return count >= t.max, nil
}

// Record charges a completed exchange, question and answer both, against the
// session's ceiling.
func (t *Tracker) Record(ctx context.Context, sessionID, question, answer string) error {
	_, err := t.backend.Add(ctx, sessionID, Words(question)+Words(answer))
	return err
}

// Reset clears the session's counter.
func (t *Tracker) Reset(ctx context.Context, sessionID string) error {
	return t.backend.Reset(ctx, sessionID)
}
