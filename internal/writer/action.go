package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/chat-pubsub/internal/action"
	"github.com/rickgao/chat-pubsub/internal/database"
	"github.com/rickgao/chat-pubsub/internal/metrics"
	"github.com/rickgao/chat-pubsub/internal/router"
)

// ActionWriter consumes events from a router buffer and writes them to the
// chat_actions table.
type ActionWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Input from the router's buffered sink
	input *router.Buffer[router.Event]

	db Copier

	// Batching
	batch       []actionRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats WriterMetrics
}

// NewActionWriter creates a new ActionWriter. A nil m records into
// unregistered collectors.
func NewActionWriter(
	cfg WriterConfig,
	input *router.Buffer[router.Event],
	db Copier,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ActionWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &ActionWriter{
		cfg:     cfg,
		input:   input,
		db:      db,
		metrics: m,
		logger:  logger,
		batch:   make([]actionRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming events and writing to the database.
func (w *ActionWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(1)
	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("action writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the writer. Events still queued in the input
// buffer are written in a final flush bounded by ctx.
func (w *ActionWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping action writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("action writer stopped")
	case <-ctx.Done():
		w.logger.Warn("action writer stop timed out")
	}

	for _, event := range w.input.DrainTo(0) {
		w.add(event)
	}
	w.flush(ctx)

	return nil
}

// Stats returns current metrics.
func (w *ActionWriter) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop reads from the input buffer and accumulates batches.
func (w *ActionWriter) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			event, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}

			if w.add(event) {
				w.flush(w.ctx)
			}
		}
	}
}

// flushLoop periodically flushes the batch.
func (w *ActionWriter) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush(w.ctx)
		}
	}
}

// add transforms an event and appends it to the batch. It reports whether
// the batch is full.
func (w *ActionWriter) add(event router.Event) bool {
	row, err := transform(event)
	if err != nil {
		w.logger.Warn("skipping action", "kind", event.Action.Kind(), "error", err)
		w.batchMu.Lock()
		w.stats.Skipped++
		w.batchMu.Unlock()
		return false
	}

	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	w.batch = append(w.batch, row)
	return len(w.batch) >= w.cfg.BatchSize
}

// flush writes the current batch to the database.
func (w *ActionWriter) flush(ctx context.Context) {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return
	}

	batch := w.batch
	w.batch = make([]actionRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	n, err := w.copyRows(ctx, batch)
	if err != nil {
		w.logger.Error("copy into chat_actions failed", "error", err, "count", len(batch))
		w.metrics.ArchiveFlushErrors.Inc()
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		return
	}

	w.metrics.ArchiveRowsWritten.Add(float64(n))
	w.batchMu.Lock()
	w.stats.Inserts += n
	w.stats.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed actions",
		"count", n,
		"duration", time.Since(start),
	)
}

func (w *ActionWriter) copyRows(ctx context.Context, rows []actionRow) (int64, error) {
	return w.db.CopyFrom(
		ctx,
		pgx.Identifier{database.ActionsTable},
		database.ActionColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			return rows[i].values(), nil
		}),
	)
}

// transform converts an Event to an actionRow.
func transform(event router.Event) (actionRow, error) {
	payload, err := json.Marshal(event.Action)
	if err != nil {
		return actionRow{}, fmt.Errorf("marshal %s: %w", event.Action.Kind(), err)
	}

	source, target := participants(event.Action)
	return actionRow{
		ReceivedAt: event.Action.Received(),
		Category:   string(event.Category),
		Kind:       event.Action.Kind(),
		Topic:      string(event.Topic),
		RoomID:     event.Action.Room(),
		SourceID:   nullable(source.ID),
		TargetID:   nullable(target.ID),
		Payload:    payload,
	}, nil
}

// participants returns the acting and affected users of an action.
func participants(a action.Action) (source, target action.User) {
	switch a := a.(type) {
	case action.BanAction:
		return a.Source, a.Target
	case action.UnbanAction:
		return a.Source, a.Target
	case action.ModerationStateAction:
		return a.Source, a.Target
	case action.DeleteAction:
		return a.Source, a.Target
	case action.WarnAction:
		return a.Source, a.Target
	case action.ModeChangedAction:
		return a.Source, action.User{}
	case action.ClearChatAction:
		return a.Source, action.User{}
	case action.RaidAction:
		return a.Source, action.User{}
	case action.UnraidAction:
		return a.Source, action.User{}
	case action.AutomodInfoAction:
		return a.Source, action.User{}
	case action.AutomodUserAction:
		return a.Source, action.User{}
	case action.AutomodAction:
		return action.User{}, a.Target
	case action.WhisperAction:
		return a.From, action.User{}
	case action.PointRedemptionAction:
		return a.User, action.User{}
	}
	return action.User{}, action.User{}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
