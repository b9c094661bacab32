package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// WriterConfig contains configuration for batch writers.
type WriterConfig struct {
	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Skipped int64 // events whose action could not be serialized
}

// Copier is the subset of pgxpool.Pool used for bulk inserts.
type Copier interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// actionRow represents a row to be inserted into the chat_actions table.
type actionRow struct {
	ReceivedAt time.Time
	Category   string
	Kind       string
	Topic      string
	RoomID     string
	SourceID   *string // NULL when the action has no source user
	TargetID   *string
	Payload    []byte // JSONB
}

func (r actionRow) values() []any {
	return []any{r.ReceivedAt, r.Category, r.Kind, r.Topic, r.RoomID, r.SourceID, r.TargetID, r.Payload}
}
