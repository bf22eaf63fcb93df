package domain

import "time"

// TaskDraft is an unpersisted task proposal produced from free text.
type TaskDraft struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// Input converts the draft into a create request under orgID.
func (d TaskDraft) Input(orgID int64) TaskInput {
	return TaskInput{
		Title:          d.Title,
		Description:    d.Description,
		DueDate:        d.DueDate,
		OrganizationID: orgID,
	}
}

// GenerateRequest is the body of POST /api/tasks/generate.
type GenerateRequest struct {
	Text string `json:"text" validate:"required"`
}
