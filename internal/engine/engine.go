package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	chainapp "homewatch/internal/chains/application"
	chains "homewatch/internal/chains/domain"
	"homewatch/internal/diagnostics"
	escalationapp "homewatch/internal/escalation/application"
	"homewatch/internal/eventbus"
	healthapp "homewatch/internal/health/application"
	health "homewatch/internal/health/domain"
	"homewatch/internal/observability/metrics"
)

const defaultEventHistory = 500

// Engine wires the scenario store, predictor, device health, escalation and
// persistence behind one facade. All methods are safe for concurrent use.
type Engine struct {
	diag      *diagnostics.Log
	scenarios *chainapp.Store
	predictor *chainapp.Predictor
	health    *healthapp.Service
	escalator *escalationapp.Escalator
	ladders   escalationapp.LadderSource
	store     Persistence
	bus       *eventbus.InMemoryBus
	logger    *log.Logger

	historyMu  sync.RWMutex
	history    []chains.Event
	historyCap int

	// escalation is fixed at construction from the presence of a gateway.
	escalation bool
}

type config struct {
	persistence   Persistence
	gateway       escalationapp.CallGateway
	ladders       escalationapp.LadderSource
	notifiers     []healthapp.AlertNotifier
	logger        *log.Logger
	clock         healthapp.Clock
	diagCapacity  int
	historyCap    int
	diagLogMirror bool
}

// Option configures the engine.
type Option func(*config)

// WithPersistence enables Load and Save.
func WithPersistence(p Persistence) Option {
	return func(c *config) {
		c.persistence = p
	}
}

// WithCallGateway enables call-out escalation.
func WithCallGateway(gateway escalationapp.CallGateway) Option {
	return func(c *config) {
		c.gateway = gateway
	}
}

// WithLadderSource supplies the escalation ladder. Without one the default
// ladder is used.
func WithLadderSource(source escalationapp.LadderSource) Option {
	return func(c *config) {
		c.ladders = source
	}
}

// WithNotifier forwards alert lifecycle events.
func WithNotifier(notifier healthapp.AlertNotifier) Option {
	return func(c *config) {
		if notifier != nil {
			c.notifiers = append(c.notifiers, notifier)
		}
	}
}

// WithLogger sets the operational logger. Diagnostics are mirrored to it.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithoutDiagnosticsMirror keeps diagnostics out of the operational log.
func WithoutDiagnosticsMirror() Option {
	return func(c *config) {
		c.diagLogMirror = false
	}
}

// WithClock overrides the health clock.
func WithClock(clock healthapp.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithDiagnosticsCapacity bounds stored diagnostics.
func WithDiagnosticsCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.diagCapacity = n
		}
	}
}

// WithEventHistoryCapacity bounds the recent event history.
func WithEventHistoryCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.historyCap = n
		}
	}
}

// New constructs an engine.
func New(opts ...Option) *Engine {
	cfg := config{historyCap: defaultEventHistory, diagLogMirror: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	diagOpts := []diagnostics.Option{}
	if cfg.diagCapacity > 0 {
		diagOpts = append(diagOpts, diagnostics.WithCapacity(cfg.diagCapacity))
	}
	if cfg.logger != nil && cfg.diagLogMirror {
		diagOpts = append(diagOpts, diagnostics.WithLogger(cfg.logger))
	}
	diag := diagnostics.New(diagOpts...)

	e := &Engine{
		diag:       diag,
		bus:        eventbus.NewInMemoryBus(),
		ladders:    cfg.ladders,
		store:      cfg.persistence,
		logger:     cfg.logger,
		historyCap: cfg.historyCap,
	}

	healthOpts := []healthapp.ServiceOption{healthapp.WithNotifier(busNotifier{bus: e.bus, diag: diag})}
	if cfg.clock != nil {
		healthOpts = append(healthOpts, healthapp.WithClock(cfg.clock))
	}
	e.scenarios = chainapp.NewStore(diag)
	e.predictor = chainapp.NewPredictor(e.scenarios, diag)
	e.health = healthapp.NewService(diag, healthOpts...)
	e.escalator = escalationapp.NewEscalator(cfg.gateway, diag, escalationapp.WithLogger(cfg.logger))
	e.escalation = e.escalator.Available()
	if !e.escalation {
		e.logf("engine: no call gateway configured, call_out events will not escalate")
	}

	e.subscribe()
	for _, notifier := range cfg.notifiers {
		e.AddNotifier(notifier)
	}
	return e
}

// AddNotifier registers an alert notifier after construction, for notifiers
// that read alerts back through the engine.
func (e *Engine) AddNotifier(notifier healthapp.AlertNotifier) {
	if e == nil || notifier == nil {
		return
	}
	eventbus.SubscribeTo(e.bus, func(ctx context.Context, event healthapp.AlertEvent) error {
		notifier.Notify(ctx, event)
		return nil
	})
}

// AddEvent ingests one sensor event. Invalid events are dropped with a
// diagnostic and false is returned.
func (e *Engine) AddEvent(ctx context.Context, evt chains.Event) bool {
	if e == nil {
		return false
	}
	if err := evt.Validate(); err != nil {
		e.diag.Record(fmt.Sprintf("Invalid event dropped: %v", err))
		return false
	}
	metrics.IncEventIngested(evt.EventType)
	e.appendHistory(evt)

	switch evt.EventType {
	case chains.EventTypeDeviceStatus:
		e.routeDeviceStatus(ctx, evt)
	case chains.EventTypeCallOut:
		if e.escalation {
			message, level := evt.CallOut()
			e.publish(ctx, CallOutRequested{Message: message, Level: level})
		}
	}

	e.diag.Record("Event received: " + evt.String())
	return true
}

func (e *Engine) routeDeviceStatus(ctx context.Context, evt chains.Event) {
	if evt.SensorID == "" {
		e.diag.Record("Device status ignored: empty sensor id")
		return
	}
	status, err := health.ParseStatus(evt.Value)
	if err != nil {
		e.diag.Record(fmt.Sprintf("Device status ignored for %s: %v", evt.SensorID, err))
		return
	}
	e.publish(ctx, DeviceStatusObserved{DeviceID: evt.SensorID, Status: status})
}

func (e *Engine) publish(ctx context.Context, event any) {
	if err := e.bus.Publish(ctx, event); err != nil {
		e.diag.Record(fmt.Sprintf("Event handling failed: %v", err))
	}
}

func (e *Engine) subscribe() {
	eventbus.SubscribeTo(e.bus, func(ctx context.Context, evt DeviceStatusObserved) error {
		e.health.UpdateHealth(ctx, evt.DeviceID, evt.Status)
		return nil
	})
	eventbus.SubscribeTo(e.bus, func(ctx context.Context, evt CallOutRequested) error {
		ladder := e.escalator.ResolveLadder(ctx, e.ladders)
		ok := e.escalator.Escalate(ctx, evt.Message, evt.Level, ladder)
		outcome := "failed"
		if ok {
			outcome = "succeeded"
		}
		e.diag.Record(fmt.Sprintf("Call-out escalation level %d %s", evt.Level, outcome))
		return nil
	})
}

func (e *Engine) appendHistory(evt chains.Event) {
	stored := chains.CloneEvents([]chains.Event{evt})[0]
	e.historyMu.Lock()
	e.history = append(e.history, stored)
	if over := len(e.history) - e.historyCap; over > 0 {
		e.history = append([]chains.Event(nil), e.history[over:]...)
	}
	e.historyMu.Unlock()
}

func (e *Engine) logf(format string, args ...any) {
	if e != nil && e.logger != nil {
		e.logger.Printf(format, args...)
	}
}

// busNotifier publishes alert lifecycle events so notifiers can be attached
// after the health service exists.
type busNotifier struct {
	bus  *eventbus.InMemoryBus
	diag diagnostics.Recorder
}

func (n busNotifier) Notify(ctx context.Context, event healthapp.AlertEvent) {
	if err := n.bus.Publish(ctx, event); err != nil {
		n.diag.Record(fmt.Sprintf("Alert forwarding failed: %v", err))
	}
}
