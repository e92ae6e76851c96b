package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taskbrew/taskbrew-backend/internal/database"
	"github.com/taskbrew/taskbrew-backend/internal/models"
)

const tasksCollection = "tasks"

// TaskStore persists tasks. Every method takes the owner's id and bakes
// it into the Mongo filter itself; there is no way to address a task
// without saying whose it must be. A task that exists but belongs to
// someone else is indistinguishable from one that does not exist.
type TaskStore struct {
	db *database.Manager
}

func NewTaskStore(db *database.Manager) *TaskStore {
	return &TaskStore{db: db}
}

func (s *TaskStore) collection(ctx context.Context) (*mongo.Collection, error) {
	db, err := s.db.EnsureConnected(ctx)
	if err != nil {
		return nil, err
	}
	return db.Collection(tasksCollection), nil
}

// ownedFilter builds the {_id, user_id} filter carried by single-task
// operations. Malformed ids yield a nil filter, which callers treat as
// ErrNotFound.
func ownedFilter(ownerID, taskID string) bson.M {
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil
	}
	task, err := primitive.ObjectIDFromHex(taskID)
	if err != nil {
		return nil
	}
	return bson.M{"_id": task, "user_id": owner}
}

// Create inserts a task for ownerID, applying defaults: status active,
// effort clamped into range.
func (s *TaskStore) Create(ctx context.Context, ownerID string, t *models.Task) error {
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return ErrNotFound
	}

	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	t.UserID = owner
	t.CreatedAt = now
	t.UpdatedAt = now
	t.EffortLevel = models.ClampEffort(t.EffortLevel)
	if t.Status == "" {
		t.Status = models.TaskStatusActive
	}

	res, err := coll.InsertOne(ctx, t)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		t.ID = id
	}
	return nil
}

// ListByOwner returns all of the owner's tasks, oldest first. Returns an
// empty slice, not nil, so the JSON response is always an array.
func (s *TaskStore) ListByOwner(ctx context.Context, ownerID string) ([]models.Task, error) {
	owner, err := primitive.ObjectIDFromHex(ownerID)
	if err != nil {
		return nil, ErrNotFound
	}

	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	findOptions := options.Find().SetSort(bson.M{"created_at": 1})
	cursor, err := coll.Find(ctx, bson.M{"user_id": owner}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tasks := make([]models.Task, 0)
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// TaskChanges is a partial task update; nil fields are left untouched.
// ClearDueDate removes the due date (set + clear cannot both be true).
type TaskChanges struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
	EffortLevel  *int
	Status       *string
	IsBigThree   *bool
}

// buildTaskUpdate translates changes into a single Mongo update document.
// Moving to completed stamps completed_at; moving back to active clears
// it.
func buildTaskUpdate(changes TaskChanges, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	var unset bson.M

	if changes.Title != nil {
		set["title"] = *changes.Title
	}
	if changes.Description != nil {
		set["description"] = *changes.Description
	}
	if changes.DueDate != nil {
		set["due_date"] = *changes.DueDate
	} else if changes.ClearDueDate {
		unset = bson.M{"due_date": ""}
	}
	if changes.EffortLevel != nil {
		set["effort_level"] = models.ClampEffort(*changes.EffortLevel)
	}
	if changes.Status != nil {
		set["status"] = *changes.Status
		if *changes.Status == models.TaskStatusCompleted {
			set["completed_at"] = now
		} else {
			if unset == nil {
				unset = bson.M{}
			}
			unset["completed_at"] = ""
		}
	}
	if changes.IsBigThree != nil {
		set["is_big_three"] = *changes.IsBigThree
	}

	update := bson.M{"$set": set}
	if unset != nil {
		update["$unset"] = unset
	}
	return update
}

// Update applies a partial update in one FindOneAndUpdate scoped by both
// task id and owner — no load-then-save gap — and returns the updated
// task. Missing or unowned tasks yield ErrNotFound.
func (s *TaskStore) Update(ctx context.Context, ownerID, taskID string, changes TaskChanges) (*models.Task, error) {
	filter := ownedFilter(ownerID, taskID)
	if filter == nil {
		return nil, ErrNotFound
	}

	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var t models.Task
	err = coll.FindOneAndUpdate(ctx, filter, buildTaskUpdate(changes, time.Now().UTC()), opts).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Delete removes the task in a single owner-scoped DeleteOne. Removal is
// immediate and non-recoverable.
func (s *TaskStore) Delete(ctx context.Context, ownerID, taskID string) error {
	filter := ownedFilter(ownerID, taskID)
	if filter == nil {
		return ErrNotFound
	}

	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}

	res, err := coll.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
