package digest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Kamalennam/notes-app-backend/internal/notes"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Outcome classifies one dispatch run. The trigger boundary only ever sees
// this enum; underlying causes are logged, never raised.
type Outcome string

const (
	// OutcomeSent means the digest was composed and handed to the transport.
	OutcomeSent Outcome = "sent"
	// OutcomeNoneScheduled means no notes fell in today's window; the run is
	// a successful no-op and no message is sent.
	OutcomeNoneScheduled Outcome = "none_scheduled"
	// OutcomeStorageUnavailable means the store query failed; nothing was sent.
	OutcomeStorageUnavailable Outcome = "storage_unavailable"
	// OutcomeTransportFailed means the store query succeeded but the mail
	// transport reported a failure.
	OutcomeTransportFailed Outcome = "transport_failed"
)

// Succeeded reports whether the run completed without a failure outcome.
func (o Outcome) Succeeded() bool {
	return o == OutcomeSent || o == OutcomeNoneScheduled
}

const (
	defaultQueryTimeout = 10 * time.Second
	defaultSendTimeout  = 30 * time.Second

	annotationRendering = "2006-01-02 15:04:05"
)

var (
	errMissingNoteSource = errors.New("note source is required")
	errMissingSender     = errors.New("message sender is required")
)

// NoteSource is the read-only slice of the note store the dispatcher needs.
type NoteSource interface {
	FindScheduledInRange(ctx context.Context, start, end time.Time) ([]notes.Note, error)
}

// MessageSender delivers one composed message. Implementations convert every
// transport-level fault into a returned error.
type MessageSender interface {
	Send(ctx context.Context, subject, body string) error
}

// DispatcherConfig carries the dependencies for NewDispatcher.
type DispatcherConfig struct {
	Notes  NoteSource
	Sender MessageSender
	Clock  func() time.Time
	Logger *zap.Logger

	// QueryTimeout bounds the store query; SendTimeout bounds the transport
	// send. Zero values select the defaults.
	QueryTimeout time.Duration
	SendTimeout  time.Duration
}

// Dispatcher owns one end-to-end digest run: window, query, compose, send.
// Runs are serialized so overlapping external triggers cannot send
// overlapping digests for the same day.
type Dispatcher struct {
	notes        NoteSource
	sender       MessageSender
	clock        func() time.Time
	logger       *zap.Logger
	queryTimeout time.Duration
	sendTimeout  time.Duration

	runMu sync.Mutex
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Notes == nil {
		return nil, errMissingNoteSource
	}
	if cfg.Sender == nil {
		return nil, errMissingSender
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	queryTimeout := cfg.QueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}

	return &Dispatcher{
		notes:        cfg.Notes,
		sender:       cfg.Sender,
		clock:        clock,
		logger:       logger,
		queryTimeout: queryTimeout,
		sendTimeout:  sendTimeout,
	}, nil
}

// Run executes one dispatch cycle and reports its outcome. The returned
// error carries the underlying cause for failure outcomes and is nil for
// OutcomeSent and OutcomeNoneScheduled; callers treat it as detail, not as
// a fault to re-raise. The run performs no retries.
func (d *Dispatcher) Run(ctx context.Context) (Outcome, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	now := d.clock().UTC()
	runID := uuid.NewString()
	window := ComputeWindow(now)

	logger := d.logger.With(
		zap.String("run_id", runID),
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
	)
	logger.Info("digest run started")

	queryCtx, cancelQuery := context.WithTimeout(ctx, d.queryTimeout)
	defer cancelQuery()
	scheduled, err := d.notes.FindScheduledInRange(queryCtx, window.Start, window.End)
	if err != nil {
		logger.Error("digest store query failed", zap.Error(err))
		return OutcomeStorageUnavailable, err
	}

	if len(scheduled) == 0 {
		logger.Info("no notes scheduled for today")
		return OutcomeNoneScheduled, nil
	}

	subject, digestBody := Compose(scheduled, now)
	body := fmt.Sprintf("Scheduled: %s\n\n%s", formatAnnotationTime(now), digestBody)

	sendCtx, cancelSend := context.WithTimeout(ctx, d.sendTimeout)
	defer cancelSend()
	if err := d.sender.Send(sendCtx, subject, body); err != nil {
		logger.Error("digest send failed", zap.Error(err))
		return OutcomeTransportFailed, err
	}

	logger.Info("digest sent", zap.Int("note_count", len(scheduled)))
	return OutcomeSent, nil
}

// formatAnnotationTime renders the run instant for the "Scheduled: ..."
// line prepended to the message body. Downstream consumers of the legacy
// format expect "2024-03-01 23:00:00+00:00" exactly.
func formatAnnotationTime(now time.Time) string {
	return now.UTC().Format(annotationRendering) + "+00:00"
}
