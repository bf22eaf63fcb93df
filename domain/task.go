package domain

import (
	"strconv"
	"time"

	"github.com/bytedance/sonic"
)

// Task is the full task representation returned by GET /api/tasks/{id}.
type Task struct {
	ID             int64         `json:"id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	DueDate        *time.Time    `json:"due_date,omitempty"`
	OrganizationID int64         `json:"organization_id"`
	Organization   *Organization `json:"organization,omitempty"`
	CreatorID      int64         `json:"creator_id"`
	Creator        *User         `json:"creator,omitempty"`
	Assignments    []Assignment  `json:"assignments,omitempty"`
}

// AssignedUserIDs lists the ids of every assignee in assignment order.
func (t Task) AssignedUserIDs() []int64 {
	ids := make([]int64, 0, len(t.Assignments))
	for _, a := range t.Assignments {
		ids = append(ids, a.User.ID)
	}
	return ids
}

// IsAssigned reports whether userID is among the assignees.
func (t Task) IsAssigned(userID int64) bool {
	for _, a := range t.Assignments {
		if a.User.ID == userID {
			return true
		}
	}
	return false
}

// CreatorName renders the creator as "@name", or "User #id" when the creator is not embedded.
func (t Task) CreatorName() string {
	if t.Creator != nil && t.Creator.Username != "" {
		return "@" + t.Creator.Username
	}
	return "User #" + strconv.FormatInt(t.CreatorID, 10)
}

// ListItem projects the task onto the reduced list shape.
func (t Task) ListItem() TaskListItem {
	return TaskListItem{
		ID:           t.ID,
		Title:        t.Title,
		DueDate:      t.DueDate,
		Description:  t.Description,
		Organization: t.Organization,
	}
}

// Assignment links a task to one assignee. The embedded user is authoritative.
type Assignment struct {
	User User `json:"user"`
}

// UnmarshalJSON accepts both {"user":{"id":..}} and the legacy flat {"user_id":..}.
func (a *Assignment) UnmarshalJSON(data []byte) error {
	var raw struct {
		User   *User `json:"user"`
		UserID int64 `json:"user_id"`
	}
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.User != nil {
		a.User = *raw.User
	}
	if a.User.ID == 0 {
		a.User.ID = raw.UserID
	}
	return nil
}

// TaskListItem is the reduced projection used in list views. Assignments and
// organization detail are not guaranteed to be present.
type TaskListItem struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	DueDate      *time.Time    `json:"due_date,omitempty"`
	Description  string        `json:"description,omitempty"`
	Organization *Organization `json:"organization,omitempty"`
}

// TaskInput is the body of POST /api/tasks.
type TaskInput struct {
	Title          string     `json:"title" validate:"required"`
	Description    string     `json:"description,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	OrganizationID int64      `json:"organization_id" validate:"required,gt=0"`
}

// TaskPatch is the body of PATCH /api/tasks/{id}. A nil DueDate with
// ClearDueDate set is encoded as an explicit null.
type TaskPatch struct {
	Title        *string
	Description  *string
	DueDate      *time.Time
	ClearDueDate bool
}

// MarshalJSON emits only the fields being changed.
func (p TaskPatch) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, 3)
	if p.Title != nil {
		body["title"] = *p.Title
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	switch {
	case p.DueDate != nil:
		body["due_date"] = p.DueDate.Format(time.RFC3339)
	case p.ClearDueDate:
		body["due_date"] = nil
	}
	return sonic.ConfigStd.Marshal(body)
}

// UserIDs is the body of the assign and unassign endpoints.
type UserIDs struct {
	UserIDs []int64 `json:"user_ids" validate:"required,min=1"`
}
