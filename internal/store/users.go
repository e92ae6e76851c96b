package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskbrew/taskbrew-backend/internal/database"
	"github.com/taskbrew/taskbrew-backend/internal/models"
)

const usersCollection = "users"

// NormalizeEmail trims and lowercases an email so lookups and the unique
// index agree on a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserStore persists identities. Every operation goes through the
// connection manager, so the first request after startup (or after a
// connection failure) transparently establishes the shared handle.
type UserStore struct {
	db *database.Manager
}

func NewUserStore(db *database.Manager) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) collection(ctx context.Context) (*mongo.Collection, error) {
	db, err := s.db.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(usersCollection), nil
}

// Create inserts a new identity. The email is normalized here and
// uniqueness is enforced by the storage-layer index; a duplicate-key
// rejection surfaces as ErrDuplicateEmail regardless of who won the race.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Email = NormalizeEmail(u.Email)

	res, err := coll.InsertOne(ctx, u)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = id
	}
	return nil
}

// FindByEmail looks up an identity by normalized email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	var u models.User
	err = coll.FindOne(ctx, bson.M{"email": NormalizeEmail(email)}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByID looks up an identity by its hex id. Malformed ids behave like
// missing ones.
func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	var u models.User
	err = coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordLogin stamps last_login_at and remembers the login-time
// remember-me choice in the user's settings.
func (s *UserStore) RecordLogin(ctx context.Context, id string, rememberMe bool) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	_, err = coll.UpdateByID(ctx, oid, bson.M{"$set": bson.M{
		"last_login_at":        now,
		"settings.remember_me": rememberMe,
		"updated_at":           now,
	}})
	return err
}

// SettingsChanges is a partial update of user settings; nil fields are
// left untouched.
type SettingsChanges struct {
	DailyEmail  *bool
	WeeklyEmail *bool
	Timezone    *string
}

// UpdateSettings applies a partial settings update in a single operation
// and returns the updated identity.
func (s *UserStore) UpdateSettings(ctx context.Context, id string, changes SettingsChanges) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	if changes.DailyEmail != nil {
		set["settings.daily_email"] = *changes.DailyEmail
	}
	if changes.WeeklyEmail != nil {
		set["settings.weekly_email"] = *changes.WeeklyEmail
	}
	if changes.Timezone != nil {
		set["settings.timezone"] = *changes.Timezone
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var u models.User
	err = coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": set}, opts).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
