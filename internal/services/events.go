package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskbrew/taskbrew-backend/internal/models"
)

// Task event types broadcast over Redis and WebSocket.
const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

// TaskEvent is the payload published when an owner's task list changes.
// Deleted tasks carry only the id.
type TaskEvent struct {
	Type      string       `json:"type"`
	TaskID    string       `json:"task_id"`
	Task      *models.Task `json:"task,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// TaskEvents publishes per-owner task change events through Redis
// Pub/Sub. Each owner has a private channel, so a subscriber only ever
// sees its own tasks.
type TaskEvents struct {
	client *redis.Client
}

func NewTaskEvents(client *redis.Client) *TaskEvents {
	return &TaskEvents{client: client}
}

func taskChannel(ownerID string) string {
	return "tasks:user:" + ownerID
}

// Publish sends the event to the owner's channel. Best-effort: callers
// log failures and carry on, the HTTP operation has already succeeded.
func (p *TaskEvents) Publish(ctx context.Context, ownerID string, event TaskEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, taskChannel(ownerID), data).Err()
}

// Subscribe opens a subscription to the owner's channel. The caller owns
// the returned PubSub and must Close it.
func (p *TaskEvents) Subscribe(ctx context.Context, ownerID string) *redis.PubSub {
	return p.client.Subscribe(ctx, taskChannel(ownerID))
}
