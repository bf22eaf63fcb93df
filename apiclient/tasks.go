package apiclient

import (
	"context"
	"net/http"

	"github.com/yukikurage/task-management-front/domain"
)

// SortDueDate orders tasks by due date ascending.
const SortDueDate = "due_date"

// TaskQuery holds the list filters of GET /api/tasks.
type TaskQuery struct {
	OrganizationID int64  `url:"organization_id,omitempty"`
	DueToday       bool   `url:"due_today,omitempty"`
	AssignedToMe   bool   `url:"assigned_to_me,omitempty"`
	Sort           string `url:"sort,omitempty"`
}

type tasksResponse struct {
	Tasks []domain.TaskListItem `json:"tasks"`
}

type draftsResponse struct {
	Tasks []domain.TaskDraft `json:"tasks"`
}

// ListTasks returns the tasks matching q.
func (c *Client) ListTasks(ctx context.Context, q TaskQuery) ([]domain.TaskListItem, error) {
	var resp tasksResponse
	if err := c.do(ctx, request{method: http.MethodGet, route: "/api/tasks", path: "/api/tasks", query: q}, &resp); err != nil {
		return nil, err
	}
	if resp.Tasks == nil {
		resp.Tasks = []domain.TaskListItem{}
	}
	return resp.Tasks, nil
}

// CreateTask creates a task under in.OrganizationID.
func (c *Client) CreateTask(ctx context.Context, in domain.TaskInput) (domain.Task, error) {
	var t domain.Task
	err := c.do(ctx, request{
		method:     http.MethodPost,
		route:      "/api/tasks",
		path:       "/api/tasks",
		body:       in,
		idempotent: true,
	}, &t)
	return t, err
}

// GetTask returns the task including its assignments.
func (c *Client) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	var t domain.Task
	path, err := idPath("/api/tasks", id, "")
	if err != nil {
		return t, err
	}
	err = c.do(ctx, request{method: http.MethodGet, route: "/api/tasks/{id}", path: path}, &t)
	return t, err
}

// UpdateTask patches the fields set in p.
func (c *Client) UpdateTask(ctx context.Context, id int64, p domain.TaskPatch) (domain.Task, error) {
	var t domain.Task
	path, err := idPath("/api/tasks", id, "")
	if err != nil {
		return t, err
	}
	err = c.do(ctx, request{method: http.MethodPatch, route: "/api/tasks/{id}", path: path, body: p}, &t)
	return t, err
}

// DeleteTask deletes the task. Only the creator may delete.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	path, err := idPath("/api/tasks", id, "")
	if err != nil {
		return err
	}
	return c.do(ctx, request{method: http.MethodDelete, route: "/api/tasks/{id}", path: path}, nil)
}

// AssignUsers assigns every user in userIDs to the task.
func (c *Client) AssignUsers(ctx context.Context, id int64, userIDs []int64) error {
	path, err := idPath("/api/tasks", id, "/assign")
	if err != nil {
		return err
	}
	return c.do(ctx, request{method: http.MethodPost, route: "/api/tasks/{id}/assign", path: path, body: domain.UserIDs{UserIDs: userIDs}}, nil)
}

// UnassignUsers removes every user in userIDs from the task.
func (c *Client) UnassignUsers(ctx context.Context, id int64, userIDs []int64) error {
	path, err := idPath("/api/tasks", id, "/unassign")
	if err != nil {
		return err
	}
	return c.do(ctx, request{method: http.MethodPost, route: "/api/tasks/{id}/unassign", path: path, body: domain.UserIDs{UserIDs: userIDs}}, nil)
}

// GenerateTasks turns free text into zero or more drafts. Nothing is persisted.
func (c *Client) GenerateTasks(ctx context.Context, text string) ([]domain.TaskDraft, error) {
	var resp draftsResponse
	if err := c.do(ctx, request{
		method: http.MethodPost,
		route:  "/api/tasks/generate",
		path:   "/api/tasks/generate",
		body:   domain.GenerateRequest{Text: text},
	}, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}
