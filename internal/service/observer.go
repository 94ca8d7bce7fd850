package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/target/console-auth/internal/domain/auth"
	"github.com/target/console-auth/internal/ports"
)

// LogObserver writes one structured log line per session operation.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) Observe(ctx context.Context, ev domainauth.Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []any{
		"session_id", ev.SessionID,
		"op", string(ev.Op),
		"result", string(ev.Result),
		"phase", string(ev.Phase),
		"duration_ms", ev.Duration.Milliseconds(),
	}
	if ev.Challenge != domainauth.ChallengeNone {
		attrs = append(attrs, "challenge", string(ev.Challenge))
	}
	if ev.Username != "" {
		attrs = append(attrs, "username", ev.Username)
	}
	if ev.SubjectID != "" {
		attrs = append(attrs, "subject_id", ev.SubjectID)
	}

	switch ev.Result {
	case domainauth.ResultFailure:
		attrs = append(attrs, "error_code", ev.ErrorCode)
		if ev.Reason != "" {
			attrs = append(attrs, "reason", ev.Reason)
		}
		logger.WarnContext(ctx, "auth operation failed", attrs...)
	case domainauth.ResultPreferencePending, domainauth.ResultExpired:
		if ev.Reason != "" {
			attrs = append(attrs, "reason", ev.Reason)
		}
		logger.InfoContext(ctx, "auth operation incomplete", attrs...)
	default:
		logger.InfoContext(ctx, "auth operation", attrs...)
	}
}

const (
	defaultAuditTimeout = 2 * time.Second
	defaultAuditBuffer  = 256
)

// AuditObserverOptions configures NewAuditObserver.
type AuditObserverOptions struct {
	Sink   ports.AuditSink
	Logger *slog.Logger
	// Timeout bounds each sink write.
	Timeout time.Duration
	// Buffer is how many events may wait for the writer before new ones are dropped.
	Buffer int
}

// AuditObserver hands events to a background writer that persists them to an
// AuditSink. Observe never waits on the sink; when the queue is full the event
// is dropped and logged. Sink failures are logged and dropped.
type AuditObserver struct {
	sink    ports.AuditSink
	logger  *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan domainauth.Event
	done   chan struct{}
}

// NewAuditObserver starts the writer goroutine. Call Close to drain it.
func NewAuditObserver(opts AuditObserverOptions) *AuditObserver {
	o := &AuditObserver{
		sink:    opts.Sink,
		logger:  opts.Logger,
		timeout: opts.Timeout,
		done:    make(chan struct{}),
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.timeout <= 0 {
		o.timeout = defaultAuditTimeout
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = defaultAuditBuffer
	}
	o.queue = make(chan domainauth.Event, buffer)
	go o.run()
	return o
}

func (o *AuditObserver) Observe(ctx context.Context, ev domainauth.Event) {
	if o.sink == nil {
		return
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return
	}
	select {
	case o.queue <- ev:
	default:
		o.logger.WarnContext(ctx, "audit queue full, event dropped",
			"session_id", ev.SessionID,
			"op", string(ev.Op),
		)
	}
}

func (o *AuditObserver) run() {
	defer close(o.done)
	for ev := range o.queue {
		o.record(ev)
	}
}

func (o *AuditObserver) record(ev domainauth.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()
	if err := o.sink.Record(ctx, ev); err != nil {
		o.logger.Warn("failed to record auth audit event",
			"session_id", ev.SessionID,
			"op", string(ev.Op),
			"error", err,
		)
	}
}

// Close stops accepting events and waits for queued ones to be written, or for
// ctx to end. It is safe to call more than once.
func (o *AuditObserver) Close(ctx context.Context) error {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()

	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain audit queue: %w", ctx.Err())
	}
}

// closer is implemented by observers that hold background work.
type closer interface {
	Close(ctx context.Context) error
}

type multiObserver []ports.AuthObserver

func (m multiObserver) Observe(ctx context.Context, ev domainauth.Event) {
	for _, o := range m {
		o.Observe(ctx, ev)
	}
}

func (m multiObserver) Close(ctx context.Context) error {
	var errs []error
	for _, o := range m {
		if c, ok := o.(closer); ok {
			errs = append(errs, c.Close(ctx))
		}
	}
	return errors.Join(errs...)
}

// MultiObserver fans events out to every non-nil observer in order.
func MultiObserver(observers ...ports.AuthObserver) ports.AuthObserver {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}
