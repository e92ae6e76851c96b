package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrUnavailable is returned when the backing store cannot be reached.
// Handlers map it to 503.
var ErrUnavailable = errors.New("database unavailable")

const (
	connectTimeout         = 30 * time.Second
	pingTimeout            = 10 * time.Second
	serverSelectionTimeout = 10 * time.Second

	// legacyUsernameIndex is a unique index left behind by an old schema
	// where users signed in by username. It blocks re-registration of
	// recycled usernames and must be dropped once per deployment.
	legacyUsernameIndex = "username_1"
)

// dialFunc opens a connection and returns the database handle plus its
// client. Overridable in tests.
type dialFunc func(ctx context.Context) (*mongo.Database, *mongo.Client, error)

// attempt is a single connection attempt. Everyone who calls
// EnsureConnected while it is in flight waits on done and shares the
// outcome.
type attempt struct {
	done   chan struct{}
	db     *mongo.Database
	client *mongo.Client
	err    error
}

// Manager owns the single MongoDB connection for the process.
//
// The invariant: at most one outstanding connection attempt at any time.
// The first caller starts the dial and the attempt itself is memoized, so
// concurrent callers during the connection window wait for the same dial
// instead of opening duplicate connections. A failed attempt is cleared so
// the next request retries from scratch; a successful one is cached for
// the process lifetime.
type Manager struct {
	dial    dialFunc
	migrate func(ctx context.Context, db *mongo.Database) error

	mu       sync.Mutex // guards current + migrated
	current  *attempt
	migrated bool
}

// NewManager builds a Manager that connects to uri and uses dbName.
func NewManager(uri, dbName string) *Manager {
	m := &Manager{}
	m.dial = func(ctx context.Context) (*mongo.Database, *mongo.Client, error) {
		return dialMongo(ctx, uri, dbName)
	}
	m.migrate = cleanupLegacySchema
	return m
}

// EnsureConnected returns the ready database handle, starting the single
// connection attempt if none is cached. Errors are wrapped in
// ErrUnavailable and delivered to every caller that waited on the failed
// attempt.
func (m *Manager) EnsureConnected(ctx context.Context) (*mongo.Database, error) {
	m.mu.Lock()
	a := m.current
	if a == nil {
		a = &attempt{done: make(chan struct{})}
		m.current = a
		go m.run(a)
	}
	m.mu.Unlock()

	select {
	case <-a.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if a.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, a.err)
	}
	return a.db, nil
}

func (m *Manager) run(a *attempt) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	a.db, a.client, a.err = m.dial(ctx)

	if a.err == nil {
		// One-time legacy schema cleanup, guarded for the process
		// lifetime. A cleanup failure fails the attempt so the next
		// request runs it again against a fresh connection.
		m.mu.Lock()
		pending := !m.migrated
		m.migrated = true
		m.mu.Unlock()

		if pending {
			if err := m.migrate(ctx, a.db); err != nil {
				log.Printf("schema cleanup failed: %v", err)
				if a.client != nil {
					_ = a.client.Disconnect(context.Background())
				}
				a.db, a.client, a.err = nil, nil, err
				m.mu.Lock()
				m.migrated = false
				m.mu.Unlock()
			}
		}
	}

	if a.err != nil {
		// Clear the cached attempt so the next request retries.
		m.mu.Lock()
		if m.current == a {
			m.current = nil
		}
		m.mu.Unlock()
	}

	close(a.done)
}

// Reset drops the cached connection state and disconnects the client if
// one is live. The next EnsureConnected dials again.
func (m *Manager) Reset() {
	m.mu.Lock()
	a := m.current
	m.current = nil
	m.mu.Unlock()

	if a == nil {
		return
	}
	select {
	case <-a.done:
		if a.client != nil {
			ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
			defer cancel()
			if err := a.client.Disconnect(ctx); err != nil {
				log.Printf("mongo disconnect: %v", err)
			}
		}
	default:
		// Attempt still in flight; let it finish on its own.
	}
}

func dialMongo(ctx context.Context, uri, dbName string) (*mongo.Database, *mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)
	clientOptions.SetServerSelectionTimeout(serverSelectionTimeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, err
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}

	log.Println("✅ Connected to MongoDB")
	return client.Database(dbName), client, nil
}

// cleanupLegacySchema drops the obsolete username index and ensures the
// indexes the current schema relies on. Email uniqueness lives here, at
// the storage layer, so a check-then-insert race in the handler cannot
// produce duplicate accounts.
func cleanupLegacySchema(ctx context.Context, db *mongo.Database) error {
	users := db.Collection("users")

	_, err := users.Indexes().DropOne(ctx, legacyUsernameIndex)
	if err != nil && !isBenignIndexError(err) {
		return fmt.Errorf("dropping %s: %w", legacyUsernameIndex, err)
	}
	if err == nil {
		log.Printf("dropped legacy index %s", legacyUsernameIndex)
	}

	_, err = users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("ensuring email index: %w", err)
	}

	_, err = db.Collection("tasks").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("ensuring task owner index: %w", err)
	}
	return nil
}

// isBenignIndexError reports whether err just means the index or the
// collection is already gone. Another instance may have cleaned up first;
// that is not a failure.
func isBenignIndexError(err error) bool {
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		// 26 NamespaceNotFound, 27 IndexNotFound
		return ce.Code == 26 || ce.Code == 27
	}
	return false
}
