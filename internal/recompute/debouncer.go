// Package recompute coalesces rapid bill-input edits into a single
// computation per settle window. Each edit session holds one logical timer;
// a new edit restarts it and supersedes any in-flight computation, so the
// applied result always reflects the latest committed inputs.
package recompute

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	billdomain "github.com/sitewise/rabill/internal/bill/domain"
	obsmetrics "github.com/sitewise/rabill/internal/observability/metrics"
	"go.uber.org/zap"
)

var ErrSessionNotFound = errors.New("session_not_found")

// ResultFunc receives the breakdown of the newest computation that survived
// the supersede checks. seq is monotonic per session.
type ResultFunc func(sessionID string, seq uint64, breakdown billdomain.BillBreakdown)

type session struct {
	id       string
	onResult ResultFunc

	timer   *time.Timer
	pending billdomain.BillInput

	// seq is bumped on every edit; only the computation carrying the
	// newest seq may apply its result.
	seq     uint64
	applied uint64

	inFlightCancel context.CancelFunc

	lastSeq    uint64
	lastResult *billdomain.BillBreakdown

	closed bool
}

type Debouncer struct {
	mu       sync.Mutex
	sessions map[string]*session

	calc billdomain.Calculator
	cfg  Config
	log  *zap.Logger
}

func New(calc billdomain.Calculator, cfg Config, log *zap.Logger) *Debouncer {
	return &Debouncer{
		sessions: make(map[string]*session),
		calc:     calc,
		cfg:      cfg.withDefaults(),
		log:      log.Named("recompute"),
	}
}

// Open starts an edit session. A blank id gets a generated one. onResult
// may be nil; Latest still serves the newest applied breakdown.
func (d *Debouncer) Open(sessionID string, onResult ResultFunc) string {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.sessions[sessionID]; !ok {
		d.sessions[sessionID] = &session{id: sessionID, onResult: onResult}
	}
	return sessionID
}

// Submit registers an edit: the pending input is replaced and the settle
// timer restarts. Nothing computes until the input stops changing for a
// full settle window.
func (d *Debouncer) Submit(sessionID string, input billdomain.BillInput) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok || s.closed {
		return ErrSessionNotFound
	}

	s.seq++
	seq := s.seq
	s.pending = input

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(d.cfg.SettleDelay, func() {
		d.fire(sessionID, seq, input)
	})
	obsmetrics.Billing().IncRecomputeScheduled()
	return nil
}

// fire runs once the settle window elapses for an edit. It re-checks the
// sequence before and after the computation: a timer that was stopped too
// late, or a slow computation finishing after a newer edit, must not
// overwrite a later result.
func (d *Debouncer) fire(sessionID string, seq uint64, input billdomain.BillInput) {
	d.mu.Lock()
	s, ok := d.sessions[sessionID]
	if !ok || s.closed || seq != s.seq {
		d.mu.Unlock()
		obsmetrics.Billing().IncRecomputeSuperseded()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.inFlightCancel = cancel
	d.mu.Unlock()

	breakdown := d.calc.Compute(ctx, input)
	cancel()

	d.mu.Lock()
	s, ok = d.sessions[sessionID]
	if !ok || s.closed || seq != s.seq || seq <= s.applied {
		d.mu.Unlock()
		obsmetrics.Billing().IncRecomputeSuperseded()
		return
	}
	s.applied = seq
	s.lastSeq = seq
	s.lastResult = &breakdown
	s.inFlightCancel = nil
	// Deliver under the lock so Close gives a hard guarantee: once it
	// returns, no further callback runs. Callbacks must not call back
	// into the Debouncer.
	if s.onResult != nil {
		s.onResult(sessionID, seq, breakdown)
	}
	d.mu.Unlock()

	obsmetrics.Billing().IncRecomputeApplied()
}

// Latest returns the newest applied breakdown for the session, if any.
func (d *Debouncer) Latest(sessionID string) (uint64, *billdomain.BillBreakdown, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok || s.closed {
		return 0, nil, ErrSessionNotFound
	}
	if s.lastResult == nil {
		return 0, nil, nil
	}
	result := *s.lastResult
	return s.lastSeq, &result, nil
}

// Close ends the session: the pending timer stops and any in-flight
// computation is cancelled. No result is delivered after Close returns.
func (d *Debouncer) Close(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.sessions[sessionID]
	if !ok {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	if s.inFlightCancel != nil {
		s.inFlightCancel()
	}
	delete(d.sessions, sessionID)
	d.log.Debug("recompute session closed", zap.String("session_id", sessionID))
}
