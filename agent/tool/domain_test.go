package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

type fakeTasks struct {
	created []contractx.TaskDraft
	filters []contractx.TaskFilter
	updated []contractx.TaskStatus
	err     error
}

func (f *fakeTasks) ListTasks(_ context.Context, _ string, filter contractx.TaskFilter) ([]contractx.Task, error) {
	f.filters = append(f.filters, filter)
	return []contractx.Task{{ID: "t1", Title: "Ship", Status: contractx.TaskTodo}}, f.err
}

func (f *fakeTasks) CreateTask(_ context.Context, draft contractx.TaskDraft) (contractx.Task, error) {
	f.created = append(f.created, draft)
	return contractx.Task{ID: "t2", Title: draft.Title, Status: contractx.TaskTodo}, f.err
}

func (f *fakeTasks) UpdateTaskStatus(_ context.Context, _ string, taskID string, status contractx.TaskStatus) (contractx.Task, error) {
	f.updated = append(f.updated, status)
	return contractx.Task{ID: taskID, Status: status}, f.err
}

type fakeMeetings struct {
	from, to time.Time
	drafts   []contractx.MeetingDraft
}

func (f *fakeMeetings) ListMeetings(_ context.Context, _ string, from, to time.Time) ([]contractx.Meeting, error) {
	f.from, f.to = from, to
	return nil, nil
}

func (f *fakeMeetings) ScheduleMeeting(_ context.Context, draft contractx.MeetingDraft) (contractx.Meeting, error) {
	f.drafts = append(f.drafts, draft)
	return contractx.Meeting{ID: "m1", Title: draft.Title, StartsAt: draft.StartsAt, EndsAt: draft.StartsAt.Add(draft.Duration)}, nil
}

func (f *fakeMeetings) Meeting(_ context.Context, _ string, meetingID string) (contractx.Meeting, error) {
	return contractx.Meeting{ID: meetingID, Title: "Retro"}, nil
}

var testScope = contractx.Scope{OrgID: "org", PulseID: "pulse", ThreadID: "thread", MessageID: "msg"}

func decodeResult(t *testing.T, text string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	return out
}

func TestCreateTaskDecodesArguments(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{}
	svc := contractx.Services{Tasks: tasks}
	h, ok := LookupDomainHandler(CreateTask)
	require.True(t, ok)

	text, err := h(context.Background(), svc, testScope, contractx.Actor{UserID: "u1"}, map[string]any{
		"title":  "  Write launch post ",
		"due_at": "2026-03-01",
	})
	require.NoError(t, err)
	require.Equal(t, "t2", decodeResult(t, text)["id"])
	require.Len(t, tasks.created, 1)
	require.Equal(t, "Write launch post", tasks.created[0].Title)
	require.Equal(t, "pulse", tasks.created[0].PulseID)
	require.Equal(t, "u1", tasks.created[0].CreatedBy)
	require.NotNil(t, tasks.created[0].DueAt)
	require.Equal(t, 2026, tasks.created[0].DueAt.Year())
}

func TestDomainArgumentProblemsAreResults(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{}
	svc := contractx.Services{Tasks: tasks}

	text, err := updateTaskStatus(context.Background(), svc, testScope, contractx.Actor{}, map[string]any{"task_id": "t1", "status": "archived"})
	require.NoError(t, err)
	require.Contains(t, decodeResult(t, text)["error"], "status must be")

	text, err = createTask(context.Background(), svc, testScope, contractx.Actor{}, map[string]any{"title": "x", "due_at": "someday"})
	require.NoError(t, err)
	require.Contains(t, decodeResult(t, text)["error"], "cannot parse time")

	text, err = listTasks(context.Background(), svc, testScope, contractx.Actor{}, map[string]any{"limit": map[string]any{"bad": true}})
	require.NoError(t, err)
	require.Contains(t, decodeResult(t, text)["error"], "invalid arguments")

	require.Empty(t, tasks.created)
	require.Empty(t, tasks.updated)
}

func TestListTasksWeakTyping(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{}
	_, err := listTasks(context.Background(), contractx.Services{Tasks: tasks}, testScope, contractx.Actor{}, map[string]any{"limit": "500", "status": "In_Progress"})
	require.NoError(t, err)
	require.Equal(t, []contractx.TaskFilter{{Status: contractx.TaskInProgress, Limit: 100}}, tasks.filters)
}

func TestDomainServiceFaultsPropagate(t *testing.T) {
	t.Parallel()

	boom := errors.New("db down")
	_, err := listTasks(context.Background(), contractx.Services{Tasks: &fakeTasks{err: boom}}, testScope, contractx.Actor{}, nil)
	require.ErrorIs(t, err, boom)

	_, err = searchKnowledge(context.Background(), contractx.Services{}, testScope, contractx.Actor{}, map[string]any{"query": "x"})
	require.ErrorIs(t, err, contractx.ErrIntegrationUnavailable)
}

func TestScheduleMeetingDefaults(t *testing.T) {
	t.Parallel()

	meetings := &fakeMeetings{}
	text, err := scheduleMeeting(context.Background(), contractx.Services{Meetings: meetings}, testScope, contractx.Actor{UserID: "u1"}, map[string]any{
		"title":        "Sync",
		"starts_at":    "2026-05-04T10:00:00Z",
		"attendee_ids": []any{"a", "b"},
	})
	require.NoError(t, err)
	require.Equal(t, "m1", decodeResult(t, text)["id"])
	require.Len(t, meetings.drafts, 1)
	require.Equal(t, 30*time.Minute, meetings.drafts[0].Duration)
	require.Equal(t, []string{"a", "b"}, meetings.drafts[0].Attendees)
}

func TestListMeetingsWindow(t *testing.T) {
	t.Parallel()

	meetings := &fakeMeetings{}
	_, err := listMeetings(context.Background(), contractx.Services{Meetings: meetings}, testScope, contractx.Actor{}, map[string]any{"from": "2026-05-01"})
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), meetings.from)
	require.Equal(t, time.Date(2026, 5, 8, 0, 0, 0, 0, time.UTC), meetings.to)

	text, err := listMeetings(context.Background(), contractx.Services{Meetings: meetings}, testScope, contractx.Actor{}, map[string]any{"from": "2026-05-05", "to": "2026-05-01"})
	require.NoError(t, err)
	require.Contains(t, decodeResult(t, text)["error"], "before")
}

func TestMeetingSummaryFallback(t *testing.T) {
	t.Parallel()

	text, err := getMeetingSummary(context.Background(), contractx.Services{Meetings: &fakeMeetings{}}, testScope, contractx.Actor{}, map[string]any{"meeting_id": "m9"})
	require.NoError(t, err)
	out := decodeResult(t, text)
	require.Equal(t, "m9", out["meeting_id"])
	require.Equal(t, "No summary has been recorded for this meeting.", out["summary"])
}

func TestEveryNestedToolHasDomainHandler(t *testing.T) {
	t.Parallel()

	for _, name := range AllToolNames() {
		if !IsNested(name) {
			continue
		}
		_, ok := LookupDomainHandler(name)
		require.True(t, ok, name)
	}
}

func TestNotFoundIsAResult(t *testing.T) {
	t.Parallel()

	tasks := &fakeTasks{err: fmt.Errorf("task t9: %w", contractx.ErrNotFound)}
	text, err := updateTaskStatus(context.Background(), contractx.Services{Tasks: tasks}, testScope, contractx.Actor{}, map[string]any{"task_id": "t9", "status": "done"})
	require.NoError(t, err)
	require.Contains(t, decodeResult(t, text)["error"], "record not found")
}
