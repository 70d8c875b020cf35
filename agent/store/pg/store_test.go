package pg

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	contractx "github.com/tanpawarit/pulse-agent/agent/contract"
)

// openTestDB connects to PULSE_TEST_DATABASE_URL and runs the test inside a
// transaction that is rolled back afterwards.
func openTestDB(t *testing.T) bun.IDB {
	t.Helper()

	dsn := os.Getenv("PULSE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("PULSE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := Open(ctx, Config{DSN: dsn, MaxOpenConns: 2, CreateSchema: true})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx() error = %v", err)
	}
	t.Cleanup(func() { _ = tx.Rollback() })
	return tx
}

func TestStoreActivity(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	clock := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s := New(db, WithClock(func() time.Time { return clock }))
	pulse, user := uuid.NewString(), uuid.NewString()

	first, err := s.CreateThread(ctx, pulse, user, "first")
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}
	clock = clock.Add(time.Hour)
	second, err := s.CreateThread(ctx, pulse, user, "second")
	if err != nil {
		t.Fatalf("CreateThread() error = %v", err)
	}

	if _, ok, err := s.LastToolActivity(ctx, pulse, second, user); err != nil || ok {
		t.Fatalf("LastToolActivity() = %v, %v; want none", ok, err)
	}
	at, ok, err := s.PreviousThreadCreatedAt(ctx, pulse, second, user)
	if err != nil || !ok || !at.Equal(time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("PreviousThreadCreatedAt() = %v, %v, %v", at, ok, err)
	}
	if _, ok, _ := s.PreviousThreadCreatedAt(ctx, pulse, first, user); ok {
		t.Fatalf("first thread has no predecessor")
	}

	toolAt := clock.Add(5 * time.Minute)
	for _, e := range []contractx.PersistedEntry{
		{ID: uuid.NewString(), Role: contractx.RoleAssistant, ToolCalls: []contractx.ToolCall{{ID: "c1", FunctionName: "route_to_task", ArgumentsJSON: "{}"}}, PulseID: pulse, ThreadID: second, UserID: user, IsSystem: true, Status: contractx.EntryStatusCompleted, CreatedAt: toolAt},
		{ID: uuid.NewString(), Role: contractx.RoleTool, Content: "done", ToolCallID: "c1", PulseID: pulse, ThreadID: second, UserID: user, IsSystem: true, Status: contractx.EntryStatusCompleted, CreatedAt: toolAt},
	} {
		if err := s.AppendEntry(ctx, e); err != nil {
			t.Fatalf("AppendEntry() error = %v", err)
		}
	}

	at, ok, err = s.LastToolActivity(ctx, pulse, second, user)
	if err != nil || !ok || !at.Equal(toolAt) {
		t.Fatalf("LastToolActivity() = %v, %v, %v", at, ok, err)
	}

	entries, err := s.Entries(ctx, pulse, second)
	if err != nil {
		t.Fatalf("Entries() error = %v", err)
	}
	if len(entries) != 2 || entries[0].ToolCalls[0].FunctionName != "route_to_task" || entries[1].ToolCallID != "c1" {
		t.Fatalf("unexpected entries %+v", entries)
	}
}

func TestStoreIntegrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	s := New(db)
	org, pulse := uuid.NewString(), uuid.NewString()

	orgWide, err := s.SaveIntegration(ctx, contractx.IntegrationRecord{OrgID: org, Kind: " GitHub ", Enabled: true, Config: map[string]any{"owner": "acme", "repo": "app"}})
	if err != nil {
		t.Fatalf("SaveIntegration() error = %v", err)
	}
	if _, err := s.SaveIntegration(ctx, contractx.IntegrationRecord{OrgID: org, PulseID: pulse, Kind: "github", Label: "docs", Enabled: true}); err != nil {
		t.Fatalf("SaveIntegration() error = %v", err)
	}
	if _, err := s.SaveIntegration(ctx, contractx.IntegrationRecord{OrgID: org, PulseID: uuid.NewString(), Kind: "github"}); err != nil {
		t.Fatalf("SaveIntegration() error = %v", err)
	}

	records, err := s.ListIntegrations(ctx, org, pulse)
	if err != nil {
		t.Fatalf("ListIntegrations() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected org-wide and pulse integrations, got %+v", records)
	}
	if records[0].Kind != "github" || records[0].Config["repo"] != "app" {
		t.Fatalf("unexpected record %+v", records[0])
	}

	if _, err := s.SaveIntegration(ctx, contractx.IntegrationRecord{ID: orgWide, OrgID: org, Kind: "github", Enabled: false}); err != nil {
		t.Fatalf("SaveIntegration() update error = %v", err)
	}
	records, _ = s.ListIntegrations(ctx, org, pulse)
	for _, r := range records {
		if r.ID == orgWide && r.Enabled {
			t.Fatalf("update must disable the integration")
		}
	}
}

func TestStoreDomainServices(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	s := New(db, WithClock(func() time.Time { return now }))
	svc := s.Services()
	org, pulse, user := uuid.NewString(), uuid.NewString(), uuid.NewString()

	task, err := svc.Tasks.CreateTask(ctx, contractx.TaskDraft{PulseID: pulse, Title: "Ship", CreatedBy: user})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	updated, err := svc.Tasks.UpdateTaskStatus(ctx, pulse, task.ID, contractx.TaskDone)
	if err != nil || updated.Status != contractx.TaskDone {
		t.Fatalf("UpdateTaskStatus() = %+v, %v", updated, err)
	}
	if _, err := svc.Tasks.UpdateTaskStatus(ctx, pulse, uuid.NewString(), contractx.TaskDone); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	done, err := svc.Tasks.ListTasks(ctx, pulse, contractx.TaskFilter{Status: contractx.TaskDone})
	if err != nil || len(done) != 1 {
		t.Fatalf("ListTasks() = %+v, %v", done, err)
	}

	meeting, err := svc.Meetings.ScheduleMeeting(ctx, contractx.MeetingDraft{PulseID: pulse, Title: "Retro", StartsAt: now.Add(24 * time.Hour), Duration: 30 * time.Minute, Attendees: []string{user}})
	if err != nil {
		t.Fatalf("ScheduleMeeting() error = %v", err)
	}
	if !meeting.EndsAt.Equal(now.Add(24*time.Hour + 30*time.Minute)) {
		t.Fatalf("unexpected end %v", meeting.EndsAt)
	}
	listed, err := svc.Meetings.ListMeetings(ctx, pulse, now, now.Add(48*time.Hour))
	if err != nil || len(listed) != 1 || listed[0].Attendees[0] != user {
		t.Fatalf("ListMeetings() = %+v, %v", listed, err)
	}
	if _, err := svc.Meetings.Meeting(ctx, pulse, uuid.NewString()); !errors.Is(err, contractx.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, m := range []memberRow{
		{ID: user, OrgID: org, PulseID: pulse, Name: "Dana", Team: "design"},
		{ID: uuid.NewString(), OrgID: org, PulseID: pulse, Name: "Lee", Team: "design"},
		{ID: uuid.NewString(), OrgID: org, PulseID: pulse, Name: "Kim", Team: "eng"},
	} {
		m := m
		if _, err := db.NewInsert().Model(&m).Exec(ctx); err != nil {
			t.Fatalf("insert member: %v", err)
		}
	}
	found, err := svc.Org.FindMembers(ctx, org, "le", 5)
	if err != nil || len(found) != 1 || found[0].Name != "Lee" {
		t.Fatalf("FindMembers() = %+v, %v", found, err)
	}
	n, err := svc.Messaging.BroadcastToTeam(ctx, contractx.Broadcast{PulseID: pulse, SenderID: user, Team: "design", Body: "hi"})
	if err != nil || n != 1 {
		t.Fatalf("BroadcastToTeam() = %d, %v", n, err)
	}
	if _, err := svc.Messaging.SendDirectMessage(ctx, contractx.DirectMessage{PulseID: pulse, SenderID: user, RecipientID: found[0].ID, Body: "hey"}); err != nil {
		t.Fatalf("SendDirectMessage() error = %v", err)
	}

	if _, err := svc.Notes.CreateNote(ctx, contractx.NoteDraft{PulseID: pulse, Title: "Launch plan", Body: "Ship on Friday", CreatedBy: user}); err != nil {
		t.Fatalf("CreateNote() error = %v", err)
	}
	notes, err := svc.Notes.SearchNotes(ctx, pulse, "friday", 5)
	if err != nil || len(notes) != 1 {
		t.Fatalf("SearchNotes() = %+v, %v", notes, err)
	}

	doc := documentRow{ID: uuid.NewString(), PulseID: pulse, Title: "Handbook", Body: "Vacation policy: 25 days.", UpdatedAt: now}
	if _, err := db.NewInsert().Model(&doc).Exec(ctx); err != nil {
		t.Fatalf("insert document: %v", err)
	}
	hits, err := svc.Knowledge.Search(ctx, pulse, "vacation", 5)
	if err != nil || len(hits) != 1 || hits[0].DocumentID != doc.ID {
		t.Fatalf("Search() = %+v, %v", hits, err)
	}
	got, err := svc.Knowledge.Document(ctx, pulse, doc.ID)
	if err != nil || got.Title != "Handbook" {
		t.Fatalf("Document() = %+v, %v", got, err)
	}
}
