package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"kanakku/internal/amqp"
	"kanakku/internal/log"
)

// Consumer delivers ledger events until ctx is done. *amqp.Client
// implements it.
type Consumer interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// Processor mirrors ledger events into the export target.
// *services.ExportProcessor implements it.
type Processor interface {
	Handle(ctx context.Context, ev *amqp.LedgerEvent) error
	Backfill(ctx context.Context, familyID string) (int, error)
}

// Config holds configuration for the export worker
type Config struct {
	// MaxRetries is how many times one event is attempted before it is
	// dropped (default: 3)
	MaxRetries int

	// RetryDelay is the pause before a failed event goes back to the
	// queue (default: 2s)
	RetryDelay time.Duration

	// BackfillFamilies are exported in full when the worker starts, to
	// recover rows missed while it was down
	BackfillFamilies []string

	// BackfillConcurrency bounds parallel family backfills (default: 2)
	BackfillConcurrency int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxRetries:          3,
		RetryDelay:          2 * time.Second,
		BackfillConcurrency: 2,
	}
}

// ExportWorker consumes ledger events and hands them to the processor.
type ExportWorker struct {
	consumer  Consumer
	processor Processor
	config    Config

	attemptsMu sync.Mutex
	attempts   map[string]int

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

func NewExportWorker(consumer Consumer, processor Processor, config Config) *ExportWorker {
	defaults := DefaultConfig()
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaults.MaxRetries
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	if config.BackfillConcurrency <= 0 {
		config.BackfillConcurrency = defaults.BackfillConcurrency
	}
	return &ExportWorker{
		consumer:  consumer,
		processor: processor,
		config:    config,
		attempts:  make(map[string]int),
	}
}

// Start runs the configured backfills and then consumes events in the
// background. Returns an error if already running.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("export worker is already running")
	}
	w.running = true
	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.err = nil
	w.mu.Unlock()

	w.StartupBackfill(runCtx)

	go w.run(runCtx)

	slog.InfoContext(ctx, "Export worker started",
		"max_retries", w.config.MaxRetries,
		"retry_delay", w.config.RetryDelay)

	return nil
}

func (w *ExportWorker) run(ctx context.Context) {
	err := w.consumer.Consume(ctx, w.HandleEvent)

	w.mu.Lock()
	if ctx.Err() == nil {
		w.err = err
	}
	w.running = false
	done := w.doneCh
	w.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Export worker stopped consuming", log.FieldError, err)
	}
	close(done)
}

// Stop cancels consumption and waits for the in-flight event to finish.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if w.doneCh == nil {
		w.mu.Unlock()
		return nil
	}
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()

	cancel()

	select {
	case <-done:
		slog.InfoContext(ctx, "Export worker stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the worker is currently consuming
func (w *ExportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Done is closed once consumption has ended, nil before Start.
func (w *ExportWorker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

// Err reports why consumption ended on its own; nil after Stop.
func (w *ExportWorker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// HandleEvent runs the processor for one event. A failed event is
// returned to the queue after RetryDelay until it has been attempted
// MaxRetries times, then it is logged and dropped.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	key := eventKey(ev)
	err := w.processor.Handle(ctx, ev)
	if err == nil {
		w.forget(key)
		return nil
	}

	attempt := w.attempt(key)
	if attempt >= w.config.MaxRetries {
		w.forget(key)
		slog.ErrorContext(ctx, "Dropping ledger event after repeated failures",
			log.FieldEventType, ev.Type,
			log.FieldFamilyID, ev.FamilyID,
			log.FieldTransactionID, ev.TransactionID,
			log.FieldVersion, ev.Version,
			"attempts", attempt,
			log.FieldError, err)
		return nil
	}

	slog.WarnContext(ctx, "Export failed, event will be redelivered",
		log.FieldEventType, ev.Type,
		log.FieldTransactionID, ev.TransactionID,
		"attempt", attempt,
		"max_retries", w.config.MaxRetries,
		log.FieldError, err)

	if w.config.RetryDelay > 0 {
		timer := time.NewTimer(w.config.RetryDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
	return err
}

// StartupBackfill exports every configured family. Failures are logged;
// the worker starts regardless.
func (w *ExportWorker) StartupBackfill(ctx context.Context) {
	if len(w.config.BackfillFamilies) == 0 {
		slog.InfoContext(ctx, "No families configured for startup backfill")
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.config.BackfillConcurrency)
	for _, familyID := range w.config.BackfillFamilies {
		g.Go(func() error {
			n, err := w.processor.Backfill(gctx, familyID)
			if err != nil {
				slog.ErrorContext(gctx, "Startup backfill failed",
					log.FieldFamilyID, familyID,
					"exported", n,
					log.FieldError, err)
				return nil
			}
			slog.InfoContext(gctx, "Startup backfill completed",
				log.FieldFamilyID, familyID,
				"exported", n)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *ExportWorker) attempt(key string) int {
	w.attemptsMu.Lock()
	defer w.attemptsMu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *ExportWorker) forget(key string) {
	w.attemptsMu.Lock()
	defer w.attemptsMu.Unlock()
	delete(w.attempts, key)
}

// Attempts reports the failed attempts recorded for events still pending.
func (w *ExportWorker) Attempts() int {
	w.attemptsMu.Lock()
	defer w.attemptsMu.Unlock()
	return len(w.attempts)
}

func eventKey(ev *amqp.LedgerEvent) string {
	return fmt.Sprintf("%s/%s/%s/%d", ev.Type, ev.FamilyID, ev.TransactionID, ev.Version)
}
