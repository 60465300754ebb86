package card

import (
	"sync"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"timercard/internal/ha"
)

// Editor holds a draft configuration for one card and emits it through
// the config-changed event whenever an edit actually changes it. Unlike
// the card, which falls through to auto-detect, the editor clears a
// configured instance id that no longer resolves, surfacing "please
// reselect" instead of keeping a dead reference.
type Editor struct {
	cardName string
	hub      ha.HubClient
	services *ha.Services
	logger   *zap.Logger
	events   *Events

	mu          sync.Mutex
	cfg         Config
	messages    []string
	lastEmitted string
}

// NewEditor creates an editor over the given card's configuration.
func NewEditor(cardName string, cfg Config, hub ha.HubClient, logger *zap.Logger, events *Events) *Editor {
	log := logger.Named("editor").With(zap.String("card", cardName))
	e := &Editor{
		cardName: cardName,
		hub:      hub,
		services: ha.NewServices(hub, log),
		logger:   log,
		events:   events,
		cfg:      cfg.Normalized(),
	}
	e.lastEmitted = serializeConfig(e.cfg)
	return e
}

// Config returns the current draft.
func (e *Editor) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Messages returns the warnings produced by the last edit.
func (e *Editor) Messages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.messages...)
}

// Instances lists the backend deployments currently visible in the hub.
func (e *Editor) Instances() []Instance {
	return DiscoverInstances(e.hub.States())
}

// Refresh re-checks the configured instance against the live hub state.
// A configured id with no surviving instance is cleared and reported.
func (e *Editor) Refresh() {
	e.mu.Lock()
	instanceID := e.cfg.TimerInstanceID
	e.mu.Unlock()

	if instanceID == "" {
		return
	}

	for _, inst := range e.Instances() {
		if inst.EntryID == instanceID {
			return
		}
	}

	e.logger.Warn("Configured instance no longer exists, clearing selection",
		zap.String("instance_id", instanceID))

	e.mu.Lock()
	e.cfg.TimerInstanceID = ""
	e.messages = []string{"Previously selected timer instance no longer exists. Please reselect an instance."}
	e.mu.Unlock()
	e.emit()
}

// SetInstance selects a backend instance by entry id.
func (e *Editor) SetInstance(entryID string) {
	e.mu.Lock()
	e.cfg.TimerInstanceID = entryID
	e.messages = nil
	e.mu.Unlock()
	e.emit()
}

// SetButtons replaces the raw button list. Validation warnings are
// surfaced but the raw value is preserved in the emitted configuration,
// so the card performs the same validation on its side.
func (e *Editor) SetButtons(raw any) []string {
	_, messages := ValidateButtons(raw)

	e.mu.Lock()
	e.cfg.TimerButtons = raw
	e.messages = messages
	e.mu.Unlock()
	e.emit()
	return messages
}

// SetTitle updates the display title.
func (e *Editor) SetTitle(title string) {
	e.mu.Lock()
	e.cfg.CardTitle = title
	e.mu.Unlock()
	e.emit()
}

// SetNotificationTarget updates the outbound notification service.
func (e *Editor) SetNotificationTarget(target string) {
	if err := ha.ValidateServiceTarget(target); err != nil {
		e.logger.Warn("Rejected notification target", zap.Error(err))
		e.mu.Lock()
		e.messages = []string{"Notification target must be a domain.service pair."}
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	e.cfg.NotificationTarget = target
	e.messages = nil
	e.mu.Unlock()
	e.emit()
}

// SetShowSeconds toggles seconds-precision display.
func (e *Editor) SetShowSeconds(enabled bool) {
	e.mu.Lock()
	e.cfg.ShowSeconds = enabled
	e.mu.Unlock()
	e.emit()
}

// SetSliderMax updates the freeform duration bound.
func (e *Editor) SetSliderMax(max int) {
	e.mu.Lock()
	e.cfg.SliderMax = max
	e.cfg = e.cfg.Normalized()
	e.mu.Unlock()
	e.emit()
}

// SetSwitchEntity changes which switch the configured instance controls
// and pushes the new link to the backend.
func (e *Editor) SetSwitchEntity(switchEntityID string) {
	e.mu.Lock()
	e.cfg.SwitchEntity = switchEntityID
	instanceID := e.cfg.TimerInstanceID
	e.mu.Unlock()

	if instanceID != "" && switchEntityID != "" {
		if err := e.services.UpdateSwitchLink(instanceID, switchEntityID); err != nil {
			e.logger.Error("Failed to update switch link",
				zap.String("instance_id", instanceID),
				zap.String("switch", switchEntityID),
				zap.Error(err))
		}
	}
	e.emit()
}

// emit fires config-changed, but only when the serialized configuration
// actually differs from the last emission. Value equality, not call
// count, debounces redundant change events.
func (e *Editor) emit() {
	e.mu.Lock()
	serialized := serializeConfig(e.cfg)
	if serialized == e.lastEmitted {
		e.mu.Unlock()
		return
	}
	e.lastEmitted = serialized
	cfg := e.cfg
	e.mu.Unlock()

	e.events.emitConfigChanged(e.cardName, cfg)
}

func serializeConfig(cfg Config) string {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return ""
	}
	return string(data)
}
