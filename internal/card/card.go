package card

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"go.uber.org/zap"

	"timercard/internal/clock"
	"timercard/internal/ha"
)

// cancelSettleDelay keeps the power toggle inert while a cancel is in
// flight, until the hub state has had a chance to settle.
const cancelSettleDelay = time.Second

// Card binds one timer-card configuration to the hub: it re-resolves its
// entity pair on every pushed snapshot, keeps the countdown in sync with
// the resolved sensor, derives the render state, and carries the user
// actions to the backend.
type Card struct {
	name     string
	hub      ha.HubClient
	services *ha.Services
	clk      clock.Clock
	logger   *zap.Logger
	events   *Events

	mu             sync.Mutex
	cfg            Config
	buttons        []int
	validationMsgs []string
	sliderValue    int

	resolution       Resolution
	entitiesLoaded   bool
	lastTimerActive  bool
	notificationSent bool
	cancelling       bool
	cancelTimer      clock.Timer

	countdown *Countdown
	render    RenderState

	sub ha.Subscription
}

// New creates a card for the given configuration. The button list is
// validated immediately; rejected entries become warnings in the render
// state rather than errors.
func New(name string, cfg Config, hub ha.HubClient, clk clock.Clock, logger *zap.Logger, events *Events) *Card {
	log := logger.Named("card").With(zap.String("card", name))
	c := &Card{
		name:     name,
		hub:      hub,
		services: ha.NewServices(hub, log),
		clk:      clk,
		logger:   log,
		events:   events,
	}
	c.applyConfig(cfg)
	c.countdown = NewCountdown(clk, log)
	return c
}

// Name returns the card's instance name.
func (c *Card) Name() string {
	return c.name
}

// applyConfig validates and installs a configuration. Caller must not
// hold c.mu.
func (c *Card) applyConfig(cfg Config) {
	buttons, messages := ValidateButtons(cfg.TimerButtons)
	for _, msg := range messages {
		c.logger.Warn("Button validation", zap.String("message", msg))
	}
	if err := ha.ValidateServiceTarget(cfg.NotificationTarget); err != nil {
		c.logger.Warn("Notification target rejected", zap.Error(err))
		messages = append(messages, fmt.Sprintf("Notification target '%s' ignored: expected a domain.service pair.", cfg.NotificationTarget))
		cfg.NotificationTarget = ""
	}
	normalized := cfg.Normalized()

	c.mu.Lock()
	c.cfg = normalized
	c.buttons = buttons
	c.validationMsgs = messages
	if c.sliderValue > normalized.SliderMax {
		c.sliderValue = normalized.SliderMax
	}
	c.resolution = Resolution{}
	c.entitiesLoaded = false
	c.notificationSent = false
	c.mu.Unlock()
}

// Start subscribes to hub pushes and runs the first update pass.
func (c *Card) Start() error {
	sub, err := c.hub.SubscribeStateChanges(func(entityID string, oldState, newState *ha.State) {
		c.Update()
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to state changes: %w", err)
	}
	c.sub = sub

	c.logger.Info("Card started")
	c.Update()
	return nil
}

// Stop tears the card down: the push subscription, the countdown poll
// and the cancel settle timer are all cancelled synchronously. No
// background activity survives Stop.
func (c *Card) Stop() {
	if c.sub != nil {
		c.sub.Unsubscribe()
		c.sub = nil
	}
	c.countdown.Stop()

	c.mu.Lock()
	if c.cancelTimer != nil {
		c.cancelTimer.Stop()
		c.cancelTimer = nil
	}
	c.cancelling = false
	c.mu.Unlock()

	c.logger.Info("Card stopped")
}

// SetConfig replaces the card's configuration and re-runs the update
// path, mirroring a host-driven config change.
func (c *Card) SetConfig(cfg Config) {
	c.applyConfig(cfg)
	c.countdown.Stop()
	c.Update()
}

// SetSliderValue stores the freeform duration, clamped to [0, slider_max].
func (c *Card) SetSliderValue(minutes int) {
	c.mu.Lock()
	max := c.cfg.SliderMax
	if minutes < 0 {
		minutes = 0
	}
	if minutes > max {
		minutes = max
	}
	c.sliderValue = minutes
	c.mu.Unlock()
	c.Update()
}

// Update is the card's single re-evaluation pass, run on every hub push,
// configuration change and countdown tick. Resolution always happens
// before derivation, so a render never uses a stale entity pair.
func (c *Card) Update() {
	snap := c.hub.States()

	c.mu.Lock()
	cfg := c.cfg
	c.mu.Unlock()

	resolution := ResolveEntities(snap, cfg, c.logger)

	c.mu.Lock()
	pairChanged := !resolution.Equal(c.resolution)
	c.resolution = resolution
	c.entitiesLoaded = resolution.Valid
	if pairChanged {
		// Cycle state belongs to the old pair.
		c.lastTimerActive = false
		c.notificationSent = false
	}
	c.mu.Unlock()

	if pairChanged {
		c.logger.Debug("Effective entity pair changed",
			zap.String("switch", resolution.SwitchID),
			zap.String("sensor", resolution.SensorID),
			zap.Bool("valid", resolution.Valid))
		// A new pair means any running poll belongs to the old one.
		c.countdown.Stop()
	}

	c.syncCountdown(snap, resolution)
	c.publish(c.deriveRender(snap, resolution))
}

// syncCountdown starts or stops the countdown poll based on the resolved
// sensor's timer attributes.
func (c *Card) syncCountdown(snap ha.Snapshot, resolution Resolution) {
	if !resolution.Valid {
		c.countdown.Stop()
		return
	}

	sensor := NewSensor(snap.Get(resolution.SensorID))
	active := sensor.TimerActive()

	c.mu.Lock()
	wasActive := c.lastTimerActive
	c.lastTimerActive = active
	if active && !wasActive {
		// A new cycle re-arms the completion notification.
		c.notificationSent = false
	}
	cfg := c.cfg
	c.mu.Unlock()

	if !active {
		c.countdown.Stop()
		c.mu.Lock()
		c.notificationSent = false
		c.mu.Unlock()
		return
	}

	finishesAt, ok := sensor.FinishesAt()
	if !ok {
		c.logger.Warn("Active timer has no parseable finish time, countdown not shown",
			zap.String("sensor", resolution.SensorID))
		c.countdown.Stop()
		return
	}

	showSeconds := sensor.ShowSeconds() || cfg.ShowSeconds
	c.countdown.Start(finishesAt, showSeconds,
		func(string) { c.publish(c.deriveRender(c.hub.States(), resolution)) },
		func() { c.handleExpiry(resolution) },
	)
}

// handleExpiry fires the terminal notification, at most once per cycle
// no matter how many render passes observe the finished cycle.
func (c *Card) handleExpiry(resolution Resolution) {
	c.mu.Lock()
	if c.notificationSent {
		c.mu.Unlock()
		return
	}
	c.notificationSent = true
	cfg := c.cfg
	c.mu.Unlock()

	sensor := NewSensor(c.hub.States().Get(resolution.SensorID))
	usage := formatUsage(sensor.DailySeconds(), false)
	c.services.Notify(cfg.NotificationTarget,
		fmt.Sprintf("%s was turned off - daily usage %s (hh:mm)", c.displayName(), usage))
}

func (c *Card) displayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cfg.CardTitle != "" {
		return c.cfg.CardTitle
	}
	return c.name
}

// deriveRender computes the full render state for the current snapshot.
func (c *Card) deriveRender(snap ha.Snapshot, resolution Resolution) RenderState {
	c.mu.Lock()
	cfg := c.cfg
	buttons := c.buttons
	messages := c.validationMsgs
	slider := c.sliderValue
	c.mu.Unlock()

	if !resolution.Valid {
		return DerivePlaceholder(snap, cfg, messages)
	}

	return Derive(DeriveInput{
		SwitchState:        snap.Get(resolution.SwitchID),
		SensorState:        snap.Get(resolution.SensorID),
		Buttons:            buttons,
		Config:             cfg,
		CountdownDisplay:   c.countdown.Display(),
		SliderValue:        slider,
		ValidationMessages: messages,
	})
}

// publish stores the render state and notifies the host, but only when
// it actually changed, to avoid render thrashing on unrelated pushes.
func (c *Card) publish(state RenderState) {
	c.mu.Lock()
	changed := !reflect.DeepEqual(c.render, state)
	if changed {
		c.render = state
	}
	c.mu.Unlock()

	if changed {
		c.events.emitRender(c.name, state)
	}
}

// RenderState returns the last derived render state.
func (c *Card) RenderState() RenderState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.render
}

// entryID resolves the backend instance id from the effective sensor's
// attributes. Empty when the card is not resolved.
func (c *Card) entryID() string {
	c.mu.Lock()
	resolution := c.resolution
	loaded := c.entitiesLoaded
	c.mu.Unlock()

	if !loaded {
		return ""
	}
	sensor := NewSensor(c.hub.States().Get(resolution.SensorID))
	id, ok := sensor.EntryID()
	if !ok {
		c.logger.Error("Effective sensor lost its entry_id attribute",
			zap.String("sensor", resolution.SensorID))
		return ""
	}
	return id
}

// StartTimer turns the switch on and starts a timed cycle. Remote-call
// failures are logged, never propagated: the next hub push corrects the
// view.
func (c *Card) StartTimer(minutes int) error {
	entryID := c.entryID()
	if entryID == "" {
		return fmt.Errorf("cannot start timer: entities not resolved")
	}
	if minutes <= 0 {
		return fmt.Errorf("cannot start timer: duration %d is not positive", minutes)
	}

	c.mu.Lock()
	switchID := c.resolution.SwitchID
	cfg := c.cfg
	c.notificationSent = false
	c.mu.Unlock()

	if err := c.services.TurnOn(switchID); err != nil {
		c.logger.Error("Failed to turn on switch", zap.String("switch", switchID), zap.Error(err))
		return nil
	}
	if err := c.services.StartTimer(entryID, minutes); err != nil {
		c.logger.Error("Failed to start timer", zap.String("entry_id", entryID), zap.Error(err))
		return nil
	}

	c.services.Notify(cfg.NotificationTarget,
		fmt.Sprintf("%s was turned on for %d minutes", c.displayName(), minutes))
	return nil
}

// CancelTimer ends the current cycle early. While the cancel settles the
// power toggle is inert, preventing an immediate restart.
func (c *Card) CancelTimer() error {
	entryID := c.entryID()
	if entryID == "" {
		return fmt.Errorf("cannot cancel timer: entities not resolved")
	}

	c.mu.Lock()
	c.cancelling = true
	c.notificationSent = false
	if c.cancelTimer != nil {
		c.cancelTimer.Stop()
	}
	c.cancelTimer = c.clk.AfterFunc(cancelSettleDelay, func() {
		c.mu.Lock()
		c.cancelling = false
		c.mu.Unlock()
	})
	c.mu.Unlock()

	if err := c.services.CancelTimer(entryID); err != nil {
		c.logger.Error("Failed to cancel timer", zap.String("entry_id", entryID), zap.Error(err))
		c.mu.Lock()
		c.cancelling = false
		c.mu.Unlock()
	}
	return nil
}

// TogglePower is the power button: an active timer is cancelled first
// regardless of switch state; otherwise a lit switch is turned off
// through the backend, and a dark one either starts a slider-length
// timer or turns on indefinitely.
func (c *Card) TogglePower() error {
	entryID := c.entryID()
	if entryID == "" {
		return fmt.Errorf("cannot toggle power: entities not resolved")
	}

	c.mu.Lock()
	if c.cancelling {
		c.mu.Unlock()
		c.logger.Debug("Toggle ignored while cancel settles")
		return nil
	}
	resolution := c.resolution
	slider := c.sliderValue
	c.mu.Unlock()

	snap := c.hub.States()
	switchState := snap.Get(resolution.SwitchID)
	if switchState == nil {
		c.logger.Warn("Switch entity missing during toggle", zap.String("switch", resolution.SwitchID))
		return nil
	}
	sensor := NewSensor(snap.Get(resolution.SensorID))

	if sensor.TimerActive() {
		return c.CancelTimer()
	}

	if switchState.State == "on" {
		if err := c.services.ManualPowerToggle(entryID, "turn_off"); err != nil {
			c.logger.Error("Failed to turn off", zap.String("entry_id", entryID), zap.Error(err))
		}
		return nil
	}

	if slider > 0 {
		return c.StartTimer(slider)
	}

	c.mu.Lock()
	c.notificationSent = false
	c.mu.Unlock()
	if err := c.services.ManualPowerToggle(entryID, "turn_on"); err != nil {
		c.logger.Error("Failed to turn on", zap.String("entry_id", entryID), zap.Error(err))
	}
	return nil
}

// ResetUsage zeroes the accumulated daily runtime. Destructive: the
// caller must pass confirm=true, standing in for the user confirmation
// dialog.
func (c *Card) ResetUsage(confirm bool) error {
	if !confirm {
		return fmt.Errorf("reset requires confirmation")
	}
	entryID := c.entryID()
	if entryID == "" {
		return fmt.Errorf("cannot reset usage: entities not resolved")
	}

	c.mu.Lock()
	c.notificationSent = false
	c.mu.Unlock()

	if err := c.services.ResetDailyUsage(entryID); err != nil {
		c.logger.Error("Failed to reset daily usage", zap.String("entry_id", entryID), zap.Error(err))
	}
	return nil
}

// ShowDetails emits the show-details event for the effective sensor.
func (c *Card) ShowDetails() error {
	c.mu.Lock()
	resolution := c.resolution
	loaded := c.entitiesLoaded
	c.mu.Unlock()

	if !loaded {
		return fmt.Errorf("cannot show details: entities not resolved")
	}

	c.mu.Lock()
	c.notificationSent = false
	c.mu.Unlock()

	c.events.emitShowDetails(c.name, resolution.SensorID)
	return nil
}
