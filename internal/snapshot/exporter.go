package snapshot

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

const (
	defaultQueueSize   = 64
	defaultSaveTimeout = 5 * time.Second
)

// Exporter hands records to a Store from its own goroutine so callers never
// block on storage.
type Exporter struct {
	store       Store
	queue       chan Record
	clock       quartz.Clock
	logger      *log.Logger
	saveTimeout time.Duration
}

// NewExporter creates an exporter with a queue of queueSize records. A
// non-positive size uses the default.
func NewExporter(store Store, logger *log.Logger, clock quartz.Clock, queueSize int) *Exporter {
	if store == nil {
		store = Discard
	}
	if logger == nil {
		logger = log.Default()
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Exporter{
		store:       store,
		queue:       make(chan Record, queueSize),
		clock:       clock,
		logger:      logger.WithPrefix("exporter"),
		saveTimeout: defaultSaveTimeout,
	}
}

// Export enqueues rec, stamping FinishedAt when unset. It reports false when
// the queue is full and the record was dropped.
func (e *Exporter) Export(rec Record) bool {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = e.clock.Now().UTC()
	}
	select {
	case e.queue <- rec:
		return true
	default:
		e.logger.Error("Export queue full, dropping snapshot", "code", rec.Code)
		return false
	}
}

// Run saves queued records until ctx is cancelled, then drains what is left.
func (e *Exporter) Run(ctx context.Context) error {
	for {
		select {
		case rec := <-e.queue:
			e.save(ctx, rec)
		case <-ctx.Done():
			e.drain(ctx)
			return nil
		}
	}
}

func (e *Exporter) drain(ctx context.Context) {
	for {
		select {
		case rec := <-e.queue:
			e.save(ctx, rec)
		default:
			return
		}
	}
}

// save ignores cancellation of ctx; each write is bounded by saveTimeout.
func (e *Exporter) save(ctx context.Context, rec Record) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.saveTimeout)
	defer cancel()

	if err := e.store.Save(ctx, rec); err != nil {
		e.logger.Error("Failed to export snapshot", "code", rec.Code, "error", err)
		return
	}
	e.logger.Debug("Exported snapshot", "code", rec.Code, "winner", rec.Winner, "reason", rec.Reason)
}
