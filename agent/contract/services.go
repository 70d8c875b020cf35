package contract

import (
	"context"
	"time"
)

type KnowledgeHit struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score,omitempty"`
}

type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Meeting struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	EndsAt    time.Time `json:"ends_at"`
	Attendees []string  `json:"attendees,omitempty"`
	Summary   string    `json:"summary,omitempty"`
}

type MeetingDraft struct {
	PulseID   string
	Title     string
	StartsAt  time.Time
	Duration  time.Duration
	Attendees []string
	CreatedBy string
}

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

type Task struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Status     TaskStatus `json:"status"`
	AssigneeID string     `json:"assignee_id,omitempty"`
	DueAt      *time.Time `json:"due_at,omitempty"`
}

type TaskDraft struct {
	PulseID    string
	Title      string
	AssigneeID string
	DueAt      *time.Time
	CreatedBy  string
}

type TaskFilter struct {
	AssigneeID string
	Status     TaskStatus
	Limit      int
}

type Member struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	Title     string `json:"title,omitempty"`
	Team      string `json:"team,omitempty"`
	ManagerID string `json:"manager_id,omitempty"`
}

type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type NoteDraft struct {
	PulseID   string
	Title     string
	Body      string
	CreatedBy string
}

type DirectMessage struct {
	PulseID     string
	SenderID    string
	RecipientID string
	Body        string
}

type Broadcast struct {
	PulseID  string
	SenderID string
	Team     string
	Body     string
}

type KnowledgeService interface {
	Search(ctx context.Context, pulseID, query string, limit int) ([]KnowledgeHit, error)
	Document(ctx context.Context, pulseID, documentID string) (Document, error)
}

type MeetingService interface {
	ListMeetings(ctx context.Context, pulseID string, from, to time.Time) ([]Meeting, error)
	ScheduleMeeting(ctx context.Context, draft MeetingDraft) (Meeting, error)
	Meeting(ctx context.Context, pulseID, meetingID string) (Meeting, error)
}

type TaskService interface {
	ListTasks(ctx context.Context, pulseID string, filter TaskFilter) ([]Task, error)
	CreateTask(ctx context.Context, draft TaskDraft) (Task, error)
	UpdateTaskStatus(ctx context.Context, pulseID, taskID string, status TaskStatus) (Task, error)
}

type OrgService interface {
	FindMembers(ctx context.Context, orgID, query string, limit int) ([]Member, error)
	ListTeam(ctx context.Context, pulseID string) ([]Member, error)
}

type NoteService interface {
	CreateNote(ctx context.Context, draft NoteDraft) (Note, error)
	SearchNotes(ctx context.Context, pulseID, query string, limit int) ([]Note, error)
}

type MessagingService interface {
	SendDirectMessage(ctx context.Context, msg DirectMessage) (string, error)
	BroadcastToTeam(ctx context.Context, msg Broadcast) (int, error)
}

// Services groups the workspace collaborators tool handlers act on.
type Services struct {
	Knowledge KnowledgeService
	Meetings  MeetingService
	Tasks     TaskService
	Org       OrgService
	Notes     NoteService
	Messaging MessagingService
}
