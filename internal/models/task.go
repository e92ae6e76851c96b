package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Task statuses. A task is exactly one of these.
const (
	TaskStatusActive    = "active"
	TaskStatusCompleted = "completed"
)

// Effort bounds. Values outside the range are clamped on write.
const (
	EffortMin     = 1
	EffortMax     = 5
	EffortDefault = 3
)

// Task is a single to-do item. UserID is set at creation and never
// changes; ownership does not transfer.
type Task struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updatedAt"`

	UserID primitive.ObjectID `bson:"user_id" json:"-"`

	Title       string     `bson:"title,omitempty" json:"title,omitempty"`
	Description string     `bson:"description" json:"description"`
	DueDate     *time.Time `bson:"due_date,omitempty" json:"dueDate,omitempty"`
	EffortLevel int        `bson:"effort_level" json:"effortLevel"`

	Status      string     `bson:"status" json:"status"`
	CompletedAt *time.Time `bson:"completed_at,omitempty" json:"completedAt,omitempty"`

	// IsBigThree marks one of the day's three priority tasks. Independent
	// of status.
	IsBigThree bool `bson:"is_big_three" json:"isBigThree"`
}

// ClampEffort forces v into the valid effort range, using the default for
// zero (absent) values.
func ClampEffort(v int) int {
	if v == 0 {
		return EffortDefault
	}
	if v < EffortMin {
		return EffortMin
	}
	if v > EffortMax {
		return EffortMax
	}
	return v
}
