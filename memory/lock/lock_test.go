package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/memoria/store/cache"
)

type fakeBackend struct {
	mu       sync.Mutex
	acquires int
	err      error
}

func (b *fakeBackend) AcquireUserLock(_ context.Context, _ string, _ uuid.UUID) (*cache.UserLock, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acquires++
	if b.err != nil {
		return nil, b.err
	}
	return &cache.UserLock{}, nil
}

func TestAcquireSerializesSameUser(t *testing.T) {
	backend := &fakeBackend{}
	m := New(backend)
	user := uuid.New()

	var mu sync.Mutex
	inSection, maxInSection := 0, 0
	errs := make(chan error, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := m.AcquireUserLock(context.Background(), "flush", user)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			inSection++
			if inSection > maxInSection {
				maxInSection = inSection
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inSection--
			mu.Unlock()
			h.Release(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.Equal(t, 1, maxInSection)
	require.Equal(t, 8, backend.acquires)

	// All turns taken, the gate map must be empty again.
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Empty(t, m.gates)
}

func TestAcquireDistinctUsersDoNotBlock(t *testing.T) {
	m := New(&fakeBackend{})

	first, err := m.AcquireUserLock(context.Background(), "flush", uuid.New())
	require.NoError(t, err)
	defer first.Release(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		second, err := m.AcquireUserLock(context.Background(), "flush", uuid.New())
		if err == nil {
			second.Release(context.Background())
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second user blocked behind an unrelated lock")
	}
}

func TestAcquireCanceledWhileWaiting(t *testing.T) {
	m := New(&fakeBackend{})
	user := uuid.New()

	holder, err := m.AcquireUserLock(context.Background(), "flush", user)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = m.AcquireUserLock(ctx, "flush", user)
	require.Error(t, err)
	require.ErrorIs(t, errors.Cause(err), context.DeadlineExceeded)

	// The canceled waiter must not leak a queue slot.
	holder.Release(context.Background())
	again, err := m.AcquireUserLock(context.Background(), "flush", user)
	require.NoError(t, err)
	again.Release(context.Background())
}

func TestBackendFailureReopensGate(t *testing.T) {
	backend := &fakeBackend{err: errors.New("redis down")}
	m := New(backend)
	user := uuid.New()

	_, err := m.AcquireUserLock(context.Background(), "flush", user)
	require.Error(t, err)

	backend.mu.Lock()
	backend.err = nil
	backend.mu.Unlock()

	h, err := m.AcquireUserLock(context.Background(), "flush", user)
	require.NoError(t, err)
	h.Release(context.Background())
}

func TestReleaseNilHandle(t *testing.T) {
	var h *Handle
	h.Release(context.Background())
	(&Handle{}).Release(context.Background())
}
