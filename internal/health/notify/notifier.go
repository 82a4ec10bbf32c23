package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"log"
	"sync"
	"time"

	healthapp "homewatch/internal/health/application"
	health "homewatch/internal/health/domain"
)

// AlertReader loads alert records.
type AlertReader interface {
	GetByID(ctx context.Context, id string) (*health.Alert, error)
}

// Clock provides time for scheduling.
type Clock interface {
	Now() time.Time
}

const defaultQueueSize = 64

var errNotifierClosed = errors.New("alert notifier: closed")

type sendRecord struct {
	at   time.Time
	hash string
}

// delivery is one queued send. A delivery with flushed set is a marker that
// is closed once every earlier delivery has been handled.
type delivery struct {
	ctx       context.Context
	eventType string
	alert     health.Alert
	flushed   chan struct{}
}

// Notifier sends alert notifications via a channel and handles escalation.
type Notifier struct {
	alerts         AlertReader
	channel        Channel
	template       *Template
	escalation     time.Duration
	clock          Clock
	logger         *log.Logger
	mu             sync.Mutex
	timers         map[string]*time.Timer
	sent           map[string]sendRecord
	cooldown       time.Duration
	dedupeWindow   time.Duration
	requestTimeout time.Duration
	queueSize      int

	queue     chan delivery
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Option configures the notifier.
type Option func(*Notifier)

// WithEscalation re-sends an alert that is still unacknowledged after the delay.
func WithEscalation(after time.Duration) Option {
	return func(n *Notifier) {
		if after > 0 {
			n.escalation = after
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger logs delivery failures.
func WithLogger(logger *log.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithRequestTimeout overrides the default timeout for sends and escalation checks.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same alert and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithQueueSize bounds the number of pending deliveries. Notifications
// arriving while the queue is full are dropped and logged.
func WithQueueSize(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.queueSize = size
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(alerts AlertReader, channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if alerts == nil {
		return nil, errors.New("alert notifier: nil alert reader")
	}
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		alerts:         alerts,
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		timers:         make(map[string]*time.Timer),
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
		queueSize:      defaultQueueSize,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.queue = make(chan delivery, n.queueSize)
	go n.run()
	return n, nil
}

// Notify implements healthapp.AlertNotifier. Delivery happens on the
// notifier's worker; Notify never waits for the channel.
func (n *Notifier) Notify(ctx context.Context, event healthapp.AlertEvent) {
	if n == nil || n.channel == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	n.enqueue(delivery{ctx: context.WithoutCancel(ctx), eventType: event.Type, alert: event.Alert})

	switch event.Type {
	case healthapp.EventRaised:
		n.scheduleEscalation(event.Alert)
	case healthapp.EventAcknowledged:
		n.cancelEscalation(event.Alert.ID)
	}
}

// Flush waits until every delivery queued before the call has been handled.
func (n *Notifier) Flush(ctx context.Context) error {
	if n == nil || n.queue == nil {
		return nil
	}
	marker := delivery{flushed: make(chan struct{})}
	select {
	case n.queue <- marker:
	case <-n.stop:
		return errNotifierClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-marker.flushed:
		return nil
	case <-n.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops pending escalation timers, delivers what is already queued and
// stops the worker. Notifications after Close are discarded.
func (n *Notifier) Close() {
	if n == nil || n.queue == nil {
		return
	}
	n.closeOnce.Do(func() {
		n.mu.Lock()
		timers := n.timers
		n.timers = make(map[string]*time.Timer)
		n.mu.Unlock()
		for _, timer := range timers {
			if timer != nil {
				timer.Stop()
			}
		}
		close(n.stop)
	})
	<-n.done
}

func (n *Notifier) enqueue(d delivery) {
	select {
	case <-n.stop:
		return
	default:
	}
	select {
	case n.queue <- d:
	default:
		n.logf("alert notify queue full, dropping %s for %s", d.eventType, d.alert.ID)
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for {
		select {
		case d := <-n.queue:
			n.handle(d)
		case <-n.stop:
			for {
				select {
				case d := <-n.queue:
					n.handle(d)
				default:
					return
				}
			}
		}
	}
}

func (n *Notifier) handle(d delivery) {
	if d.flushed != nil {
		close(d.flushed)
		return
	}
	n.dispatch(d.ctx, d.eventType, d.alert)
}

func (n *Notifier) dispatch(ctx context.Context, eventType string, alert health.Alert) {
	content, err := n.template.Render(buildTemplateData(eventType, alert))
	if err != nil {
		n.logf("alert notify render %s: %v", alert.ID, err)
		return
	}
	if !n.shouldSend(alert.ID, eventType, content) {
		return
	}
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}
	if err := n.channel.Send(ctx, content); err != nil {
		n.logf("alert notify send %s: %v", alert.ID, err)
		return
	}
	n.markSent(alert.ID, eventType, content)
}

func (n *Notifier) scheduleEscalation(alert health.Alert) {
	if n == nil || n.escalation <= 0 || alert.ID == "" {
		return
	}
	select {
	case <-n.stop:
		return
	default:
	}
	n.mu.Lock()
	if existing, ok := n.timers[alert.ID]; ok && existing != nil {
		existing.Stop()
	}
	n.timers[alert.ID] = time.AfterFunc(n.escalation, func() {
		n.runEscalation(alert.ID)
	})
	n.mu.Unlock()
}

func (n *Notifier) cancelEscalation(alertID string) {
	if n == nil || alertID == "" {
		return
	}
	n.mu.Lock()
	timer := n.timers[alertID]
	delete(n.timers, alertID)
	n.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (n *Notifier) runEscalation(alertID string) {
	if n == nil || alertID == "" {
		return
	}
	n.mu.Lock()
	delete(n.timers, alertID)
	n.mu.Unlock()

	ctx := context.Background()
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}

	alert, err := n.alerts.GetByID(ctx, alertID)
	if err != nil || alert == nil {
		return
	}
	if alert.Acknowledged {
		return
	}
	n.enqueue(delivery{ctx: context.Background(), eventType: "escalated", alert: *alert})
}

func buildTemplateData(eventType string, alert health.Alert) TemplateData {
	status := "open"
	ackedAt := ""
	if alert.Acknowledged {
		status = "acknowledged"
		if !alert.AckedAt.IsZero() {
			ackedAt = alert.AckedAt.UTC().Format(time.RFC3339)
		}
	}
	raisedAt := ""
	if !alert.Timestamp.IsZero() {
		raisedAt = alert.Timestamp.UTC().Format(time.RFC3339)
	}
	return TemplateData{
		AlertID:    alert.ID,
		DeviceID:   alert.DeviceID,
		Condition:  string(alert.Event),
		RaisedAt:   raisedAt,
		AckedAt:    ackedAt,
		Status:     status,
		Suggestion: suggestionFor(alert.Event),
		Event:      eventType,
		EventLabel: eventLabel(eventType),
	}
}

func eventLabel(event string) string {
	switch event {
	case healthapp.EventRaised:
		return "Raised"
	case healthapp.EventAcknowledged:
		return "Acknowledged"
	case "escalated":
		return "Escalated"
	default:
		return event
	}
}

func suggestionFor(event health.Status) string {
	switch event {
	case health.StatusRemoved:
		return "Confirm the device was removed intentionally."
	case health.StatusDown:
		return "Check power and connectivity of the device."
	default:
		return "Inspect the device."
	}
}

func (n *Notifier) shouldSend(alertID, eventType, content string) bool {
	if n == nil {
		return false
	}
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(alertID, eventType)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

// markSent remembers a delivery for cooldown and dedupe checks. Records older
// than the longer of the two windows can no longer suppress a send and are
// pruned.
func (n *Notifier) markSent(alertID, eventType, content string) {
	if n == nil {
		return
	}
	retention := n.cooldown
	if n.dedupeWindow > retention {
		retention = n.dedupeWindow
	}
	if retention <= 0 {
		return
	}
	key := notificationKey(alertID, eventType)
	now := n.clock.Now().UTC()
	n.mu.Lock()
	for k, record := range n.sent {
		if now.Sub(record.at) >= retention {
			delete(n.sent, k)
		}
	}
	n.sent[key] = sendRecord{at: now, hash: hashContent(content)}
	n.mu.Unlock()
}

func (n *Notifier) logf(format string, args ...any) {
	if n != nil && n.logger != nil {
		n.logger.Printf(format, args...)
	}
}

func notificationKey(alertID, eventType string) string {
	return alertID + "|" + eventType
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
