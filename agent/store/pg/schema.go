package pg

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

var tables = []any{
	(*messageRow)(nil),
	(*threadRow)(nil),
	(*integrationRow)(nil),
	(*documentRow)(nil),
	(*meetingRow)(nil),
	(*taskRow)(nil),
	(*memberRow)(nil),
	(*noteRow)(nil),
	(*directMessageRow)(nil),
	(*broadcastRow)(nil),
}

type index struct {
	model   any
	name    string
	columns []string
}

var indexes = []index{
	{(*messageRow)(nil), "messages_activity_idx", []string{"pulse_id", "thread_id", "user_id", "role", "created_at"}},
	{(*threadRow)(nil), "threads_user_idx", []string{"pulse_id", "user_id", "created_at"}},
	{(*integrationRow)(nil), "integrations_scope_idx", []string{"org_id", "pulse_id"}},
	{(*meetingRow)(nil), "meetings_window_idx", []string{"pulse_id", "starts_at"}},
	{(*taskRow)(nil), "tasks_pulse_idx", []string{"pulse_id", "status"}},
	{(*memberRow)(nil), "members_org_idx", []string{"org_id", "pulse_id"}},
}

// CreateSchema creates every table and index that does not exist yet.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	for _, idx := range indexes {
		if _, err := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
