package application

import (
	"context"
	"fmt"
	"log"
	"sync"

	"homewatch/internal/diagnostics"
	escalation "homewatch/internal/escalation/domain"
	"homewatch/internal/observability/metrics"
)

// CallGateway places a voice call to phone. A nil error means the call was placed.
type CallGateway interface {
	Call(ctx context.Context, phone, message string) error
}

// LadderSource supplies the current escalation ladder.
type LadderSource interface {
	Get(ctx context.Context) (escalation.Ladder, error)
}

// Escalator resolves a ladder level to a contact and calls it.
type Escalator struct {
	gateway CallGateway
	diag    diagnostics.Recorder
	logger  *log.Logger

	unavailable sync.Once
}

// EscalatorOption configures the escalator.
type EscalatorOption func(*Escalator)

// WithLogger logs a missing gateway once.
func WithLogger(logger *log.Logger) EscalatorOption {
	return func(e *Escalator) {
		e.logger = logger
	}
}

// NewEscalator constructs an escalator. A nil gateway disables calling.
func NewEscalator(gateway CallGateway, diag diagnostics.Recorder, opts ...EscalatorOption) *Escalator {
	if diag == nil {
		diag = diagnostics.Discard
	}
	e := &Escalator{gateway: gateway, diag: diag}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Available reports whether a gateway is configured.
func (e *Escalator) Available() bool {
	return e != nil && e.gateway != nil
}

// Escalate calls the contact at level with message and reports whether the
// call was placed. Failures are recorded as diagnostics, never returned.
func (e *Escalator) Escalate(ctx context.Context, message string, level int, ladder escalation.Ladder) bool {
	if e == nil {
		return false
	}
	target, ok := ladder.Target(level)
	if !ok {
		e.diag.Record(fmt.Sprintf("No contact for escalation level %d", level))
		metrics.IncEscalation(metrics.EscalationNoTarget)
		return false
	}
	if target.Phone == "" {
		e.diag.Record(fmt.Sprintf("Escalation level %d: contact %s has no phone", level, target.Name))
		metrics.IncEscalation(metrics.EscalationNoPhone)
		return false
	}
	if e.gateway == nil {
		e.unavailable.Do(func() {
			if e.logger != nil {
				e.logger.Printf("escalation: call gateway not configured, escalation disabled")
			}
		})
		e.diag.Record(fmt.Sprintf("Escalation level %d: call gateway unavailable", level))
		metrics.IncEscalation(metrics.EscalationUnavailable)
		return false
	}

	if err := e.gateway.Call(ctx, target.Phone, message); err != nil {
		e.diag.Record(fmt.Sprintf("Escalation level %d to %s: false (%v)", level, target.Name, err))
		metrics.IncEscalation(metrics.EscalationFailed)
		return false
	}
	e.diag.Record(fmt.Sprintf("Escalation level %d to %s: true", level, target.Name))
	metrics.IncEscalation(metrics.EscalationSuccess)
	return true
}

// ResolveLadder reads the ladder from source, falling back to the default
// ladder when source is nil or fails.
func (e *Escalator) ResolveLadder(ctx context.Context, source LadderSource) escalation.Ladder {
	if source == nil {
		return escalation.DefaultLadder()
	}
	ladder, err := source.Get(ctx)
	if err == nil {
		err = ladder.Validate()
	}
	if err != nil {
		if e != nil {
			e.diag.Record(fmt.Sprintf("Contact ladder unavailable, using default: %v", err))
		}
		return escalation.DefaultLadder()
	}
	return ladder.Normalize()
}
