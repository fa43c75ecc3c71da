package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrBusy is returned when a session's job queue is full. The caller should
// surface a retryable error rather than wait.
var ErrBusy = errors.New("worker: session queue full")

const defaultIdle = 5 * time.Minute

// Manager serializes work per session. Each session gets at most one
// goroutine, so an upload can never interleave with an answer or a purge for
// the same session. Workers shut down after an idle period and are respawned
// on demand.
type Manager struct {
	mu        sync.Mutex
	workers   map[string]*sessionWorker
	queueSize int
	idle      time.Duration
	log       *zap.Logger
}

type sessionWorker struct {
	jobs    chan job
	retired bool
}

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

func NewManager(queueSize int, idle time.Duration, log *zap.Logger) *Manager {
	if queueSize <= 0 {
		queueSize = 16
	}
	if idle <= 0 {
		idle = defaultIdle
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		workers:   make(map[string]*sessionWorker),
		queueSize: queueSize,
		idle:      idle,
		log:       log,
	}
}

// Run executes fn on the session's worker goroutine and blocks until it
// finishes. Jobs for the same session run strictly in submission order; jobs
// for different sessions run concurrently.
func (m *Manager) Run(ctx context.Context, sessionID string, fn func(ctx context.Context) error) error {
	j := job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	for {
		m.mu.Lock()
		w, ok := m.workers[sessionID]
		if !ok {
			w = &sessionWorker{jobs: make(chan job, m.queueSize)}
			m.workers[sessionID] = w
			go m.runWorker(sessionID, w)
		}
		if w.retired {
			// Lost a race with idle shutdown, grab a fresh worker.
			m.mu.Unlock()
			continue
		}
		var enqueued bool
		select {
		case w.jobs <- j:
			enqueued = true
		default:
		}
		m.mu.Unlock()

		if !enqueued {
			return ErrBusy
		}
		return <-j.done
	}
}

// Active returns the number of live session workers.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workers)
}

func (m *Manager) runWorker(sessionID string, w *sessionWorker) {
	idle := time.NewTimer(m.idle)
	defer idle.Stop()

	for {
		select {
		case j := <-w.jobs:
			j.done <- j.fn(j.ctx)
			idle.Reset(m.idle)
		case <-idle.C:
			m.mu.Lock()
			if len(w.jobs) == 0 {
				w.retired = true
				delete(m.workers, sessionID)
				m.mu.Unlock()
				m.log.Debug("session worker stopped", zap.String("session_id", sessionID))
				return
			}
			m.mu.Unlock()
			idle.Reset(m.idle)
		}
	}
}
