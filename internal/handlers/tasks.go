package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskbrew/taskbrew-backend/internal/middleware"
	"github.com/taskbrew/taskbrew-backend/internal/models"
	"github.com/taskbrew/taskbrew-backend/internal/services"
	"github.com/taskbrew/taskbrew-backend/internal/store"
)

// TaskCollection is the slice of the task store the handlers need. Every
// method takes the owner id; a call without one does not compile.
type TaskCollection interface {
	Create(ctx context.Context, ownerID string, t *models.Task) error
	ListByOwner(ctx context.Context, ownerID string) ([]models.Task, error)
	Update(ctx context.Context, ownerID, taskID string, changes store.TaskChanges) (*models.Task, error)
	Delete(ctx context.Context, ownerID, taskID string) error
}

// EventPublisher broadcasts task changes to live listeners. Optional.
type EventPublisher interface {
	Publish(ctx context.Context, ownerID string, event services.TaskEvent) error
}

// TasksHandler serves the owner-scoped task CRUD routes. It only ever
// sees the owner id the auth middleware attached; the caller's claims
// about ownership in the body or URL are irrelevant.
type TasksHandler struct {
	Tasks  TaskCollection
	Events EventPublisher
}

func NewTasksHandler(tasks TaskCollection, events EventPublisher) *TasksHandler {
	return &TasksHandler{Tasks: tasks, Events: events}
}

type CreateTaskRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueDate     string      `json:"dueDate"`
	EffortLevel interface{} `json:"effortLevel"`
	IsBigThree  bool        `json:"isBigThree"`
}

type UpdateTaskRequest struct {
	Title       *string     `json:"title"`
	Description *string     `json:"description"`
	DueDate     *string     `json:"dueDate"`
	EffortLevel interface{} `json:"effortLevel"`
	Status      *string     `json:"status"`
	IsBigThree  *bool       `json:"isBigThree"`
}

// parseDueDate accepts a plain calendar date or a full timestamp.
func parseDueDate(s string) (*time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, true
		}
	}
	return nil, false
}

// coerceEffort mirrors the forgiving input handling of the form: numbers
// and numeric strings are accepted, anything else falls back to the
// default via clamping.
func coerceEffort(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return 0
}

func (h *TasksHandler) publish(ctx context.Context, ownerID string, event services.TaskEvent) {
	if h.Events == nil {
		return
	}
	if err := h.Events.Publish(ctx, ownerID, event); err != nil {
		log.Printf("error publishing task event: %v", err)
	}
}

// Create validates input, inserts the task and returns the owner's full
// task list so the client renders exactly what it just wrote.
func (h *TasksHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.UserID(r.Context())

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		writeError(w, http.StatusBadRequest, "Description is required")
		return
	}

	dueDate, ok := parseDueDate(req.DueDate)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid due date")
		return
	}

	task := models.Task{
		Title:       strings.TrimSpace(req.Title),
		Description: description,
		DueDate:     dueDate,
		EffortLevel: coerceEffort(req.EffortLevel),
		IsBigThree:  req.IsBigThree,
	}

	if err := h.Tasks.Create(r.Context(), ownerID, &task); err != nil {
		writeStoreError(w, err, "Task not found", "Server error while creating task")
		return
	}

	h.publish(r.Context(), ownerID, services.TaskEvent{
		Type:   services.EventTaskCreated,
		TaskID: task.ID.Hex(),
		Task:   &task,
	})

	tasks, err := h.Tasks.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeStoreError(w, err, "Task not found", "Server error while retrieving tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// List returns all tasks owned by the caller.
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.UserID(r.Context())

	tasks, err := h.Tasks.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeStoreError(w, err, "Task not found", "Server error while retrieving tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Update applies a partial update to one of the caller's tasks. A task
// that is missing and a task that belongs to someone else produce the
// same 404.
func (h *TasksHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.UserID(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var changes store.TaskChanges

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		changes.Title = &title
	}
	if req.Description != nil {
		description := strings.TrimSpace(*req.Description)
		if description == "" {
			writeError(w, http.StatusBadRequest, "Description cannot be empty")
			return
		}
		changes.Description = &description
	}
	if req.DueDate != nil {
		if strings.TrimSpace(*req.DueDate) == "" {
			changes.ClearDueDate = true
		} else {
			dueDate, ok := parseDueDate(*req.DueDate)
			if !ok {
				writeError(w, http.StatusBadRequest, "Invalid due date")
				return
			}
			changes.DueDate = dueDate
		}
	}
	if req.EffortLevel != nil {
		effort := coerceEffort(req.EffortLevel)
		changes.EffortLevel = &effort
	}
	if req.Status != nil {
		status := *req.Status
		if status != models.TaskStatusActive && status != models.TaskStatusCompleted {
			writeError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		changes.Status = &status
	}
	changes.IsBigThree = req.IsBigThree

	task, err := h.Tasks.Update(r.Context(), ownerID, taskID, changes)
	if err != nil {
		writeStoreError(w, err, "Task not found", "Server error while updating task")
		return
	}

	h.publish(r.Context(), ownerID, services.TaskEvent{
		Type:   services.EventTaskUpdated,
		TaskID: task.ID.Hex(),
		Task:   task,
	})

	writeJSON(w, http.StatusOK, task)
}

// Delete removes one of the caller's tasks for good.
func (h *TasksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, _ := middleware.UserID(r.Context())
	taskID := chi.URLParam(r, "taskID")

	if err := h.Tasks.Delete(r.Context(), ownerID, taskID); err != nil {
		writeStoreError(w, err, "Task not found", "Server error while deleting task")
		return
	}

	h.publish(r.Context(), ownerID, services.TaskEvent{
		Type:   services.EventTaskDeleted,
		TaskID: taskID,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}
