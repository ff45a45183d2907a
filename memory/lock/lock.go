// Package lock layers an in-process keyed gate over the distributed
// user lock. Goroutines of one process contending for the same user
// queue on a local channel first, so only the process-level winner
// talks to Redis and siblings never spin on SetNX.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/memoria/store/cache"
)

// localWait bounds how long a goroutine queues behind its own process,
// mirroring the distributed lock's blocking wait.
const localWait = 32 * time.Second

// Backend acquires the cross-replica lock once the local gate is held.
type Backend interface {
	AcquireUserLock(ctx context.Context, scope string, userID uuid.UUID) (*cache.UserLock, error)
}

// Manager hands out per-user locks scoped by name.
type Manager struct {
	backend Backend

	mu    sync.Mutex
	gates map[string]*gate
}

// gate is one (scope, user) queue. refs counts holders plus waiters so
// the entry can be dropped from the map once nobody is interested.
type gate struct {
	sem  chan struct{}
	refs int
}

func New(backend Backend) *Manager {
	return &Manager{backend: backend, gates: map[string]*gate{}}
}

// Handle is a held lock. Release it when the critical section ends.
type Handle struct {
	mgr  *Manager
	key  string
	dist *cache.UserLock
}

// AcquireUserLock serializes work on one user within a scope, first
// against sibling goroutines, then across replicas through the backend.
func (m *Manager) AcquireUserLock(ctx context.Context, scope string, userID uuid.UUID) (*Handle, error) {
	key := scope + ":" + userID.String()
	if err := m.enter(ctx, key); err != nil {
		return nil, err
	}
	dist, err := m.backend.AcquireUserLock(ctx, scope, userID)
	if err != nil {
		m.leave(key)
		return nil, err
	}
	return &Handle{mgr: m, key: key, dist: dist}, nil
}

func (m *Manager) enter(ctx context.Context, key string) error {
	m.mu.Lock()
	g, ok := m.gates[key]
	if !ok {
		g = &gate{sem: make(chan struct{}, 1)}
		m.gates[key] = g
	}
	g.refs++
	m.mu.Unlock()

	timer := time.NewTimer(localWait)
	defer timer.Stop()
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		m.drop(key)
		return errors.Wrap(ctx.Err(), "canceled while waiting for user lock")
	case <-timer.C:
		m.drop(key)
		return errors.Errorf("could not acquire lock %s within %s", key, localWait)
	}
}

// leave opens the gate and drops the holder's reference.
func (m *Manager) leave(key string) {
	m.mu.Lock()
	g := m.gates[key]
	m.mu.Unlock()
	if g == nil {
		return
	}
	<-g.sem
	m.drop(key)
}

func (m *Manager) drop(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g := m.gates[key]
	if g == nil {
		return
	}
	g.refs--
	if g.refs <= 0 {
		delete(m.gates, key)
	}
}

// Release drops the distributed lock, then opens the local gate so the
// next queued goroutine may take its turn.
func (h *Handle) Release(ctx context.Context) {
	if h == nil {
		return
	}
	h.dist.Release(ctx)
	if h.mgr != nil {
		h.mgr.leave(h.key)
	}
}
