package database

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
)

func newTestManager(dial dialFunc) *Manager {
	m := &Manager{dial: dial}
	m.migrate = func(ctx context.Context, db *mongo.Database) error { return nil }
	return m
}

func TestEnsureConnectedSingleAttempt(t *testing.T) {
	var dials int32
	m := newTestManager(func(ctx context.Context) (*mongo.Database, *mongo.Client, error) {
		atomic.AddInt32(&dials, 1)
		time.Sleep(20 * time.Millisecond) // widen the race window
		return nil, nil, nil
	})

	const callers = 50
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.EnsureConnected(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&dials), "concurrent first calls must share one dial")
	for _, err := range errs {
		require.NoError(t, err)
	}

	// Subsequent calls reuse the cached connection.
	_, err := m.EnsureConnected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&dials))
}

func TestFailedAttemptClearsStateAndRetries(t *testing.T) {
	var dials int32
	dialErr := errors.New("no route to host")
	m := newTestManager(func(ctx context.Context) (*mongo.Database, *mongo.Client, error) {
		if atomic.AddInt32(&dials, 1) == 1 {
			time.Sleep(10 * time.Millisecond)
			return nil, nil, dialErr
		}
		return nil, nil, nil
	})

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.EnsureConnected(context.Background())
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&dials))
	for _, err := range errs {
		require.ErrorIs(t, err, ErrUnavailable, "every waiter shares the failed attempt's error")
	}

	// The failure cleared the cached attempt, so the next request dials
	// from scratch instead of failing forever.
	_, err := m.EnsureConnected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&dials))
}

func TestSchemaCleanupRunsOncePerProcess(t *testing.T) {
	var migrations int32
	m := newTestManager(func(ctx context.Context) (*mongo.Database, *mongo.Client, error) {
		return nil, nil, nil
	})
	m.migrate = func(ctx context.Context, db *mongo.Database) error {
		atomic.AddInt32(&migrations, 1)
		return nil
	}

	_, err := m.EnsureConnected(context.Background())
	require.NoError(t, err)

	m.Reset()
	_, err = m.EnsureConnected(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&migrations), "cleanup guard is process-lifetime, not per-connection")
}

func TestSchemaCleanupFailureFailsAttempt(t *testing.T) {
	var migrations int32
	m := newTestManager(func(ctx context.Context) (*mongo.Database, *mongo.Client, error) {
		return nil, nil, nil
	})
	boom := errors.New("not authorized on admin")
	m.migrate = func(ctx context.Context, db *mongo.Database) error {
		if atomic.AddInt32(&migrations, 1) == 1 {
			return boom
		}
		return nil
	}

	_, err := m.EnsureConnected(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	// The guard was rolled back; the next attempt runs cleanup again.
	_, err = m.EnsureConnected(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&migrations))
}

func TestIsBenignIndexError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		benign bool
	}{
		{"namespace not found", mongo.CommandError{Code: 26, Name: "NamespaceNotFound"}, true},
		{"index not found", mongo.CommandError{Code: 27, Name: "IndexNotFound"}, true},
		{"unauthorized", mongo.CommandError{Code: 13, Name: "Unauthorized"}, false},
		{"plain error", errors.New("broken pipe"), false},
		{"nil-adjacent", context.DeadlineExceeded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.benign, isBenignIndexError(tt.err))
		})
	}
}
