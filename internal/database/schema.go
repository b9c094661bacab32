package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ActionsTable is the archive table written by the action writer.
const ActionsTable = "chat_actions"

// ActionColumns lists the chat_actions columns in COPY order.
var ActionColumns = []string{
	"received_at",
	"category",
	"kind",
	"topic",
	"room_id",
	"source_id",
	"target_id",
	"payload",
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS chat_actions (
		id          BIGSERIAL PRIMARY KEY,
		received_at TIMESTAMPTZ NOT NULL,
		category    TEXT NOT NULL,
		kind        TEXT NOT NULL,
		topic       TEXT NOT NULL,
		room_id     TEXT NOT NULL,
		source_id   TEXT,
		target_id   TEXT,
		payload     JSONB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS chat_actions_room_received_idx
		ON chat_actions (room_id, received_at DESC)`,
	`CREATE INDEX IF NOT EXISTS chat_actions_target_idx
		ON chat_actions (target_id) WHERE target_id IS NOT NULL`,
}

// Execer is the subset of pgxpool.Pool used to apply the schema.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// EnsureSchema creates the archive table and indexes if they are missing.
func EnsureSchema(ctx context.Context, db Execer) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
