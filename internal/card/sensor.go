package card

import (
	"strconv"
	"time"

	"timercard/internal/ha"
)

// Attribute names published by the backend integration's runtime sensor.
const (
	AttrEntryID        = "entry_id"
	AttrSwitchEntityID = "switch_entity_id"
	AttrTimerState     = "timer_state"
	AttrFinishesAt     = "timer_finishes_at"
	AttrTimerDuration  = "timer_duration"
	AttrStartMethod    = "timer_start_method"
	AttrWatchdog       = "watchdog_message"
	AttrInstanceTitle  = "instance_title"
	AttrShowSeconds    = "show_seconds"
	AttrFriendlyName   = "friendly_name"
)

// timerStateActive is the sensor's timer_state value while a cycle runs.
const timerStateActive = "active"

// startMethodSlider marks cycles started from the slider rather than a
// preset button.
const startMethodSlider = "slider"

// Sensor is a typed view over a runtime sensor's state. Every accessor
// handles the absent case explicitly; a nil Sensor state is valid and
// reports everything as absent.
type Sensor struct {
	state *ha.State
}

// NewSensor wraps a hub state. st may be nil.
func NewSensor(st *ha.State) Sensor {
	return Sensor{state: st}
}

// Exists reports whether the underlying entity was present.
func (s Sensor) Exists() bool {
	return s.state != nil
}

// EntityID returns the sensor's entity id, "" when absent.
func (s Sensor) EntityID() string {
	if s.state == nil {
		return ""
	}
	return s.state.EntityID
}

// EntryID returns the backend instance id the sensor belongs to.
func (s Sensor) EntryID() (string, bool) {
	return s.state.StringAttr(AttrEntryID)
}

// SwitchEntityID returns the cross-link to the controlled switch.
func (s Sensor) SwitchEntityID() (string, bool) {
	return s.state.StringAttr(AttrSwitchEntityID)
}

// TimerActive reports whether a timer cycle is currently running.
func (s Sensor) TimerActive() bool {
	v, _ := s.state.StringAttr(AttrTimerState)
	return v == timerStateActive
}

// FinishesAt parses the absolute finish timestamp of the active cycle.
// Reports false when the attribute is absent or malformed.
func (s Sensor) FinishesAt() (time.Time, bool) {
	raw, ok := s.state.StringAttr(AttrFinishesAt)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Duration returns the active cycle's duration in minutes, 0 when absent.
func (s Sensor) Duration() int {
	v, _ := s.state.FloatAttr(AttrTimerDuration)
	return int(v)
}

// StartedBySlider reports whether the active cycle came from the slider.
func (s Sensor) StartedBySlider() bool {
	v, _ := s.state.StringAttr(AttrStartMethod)
	return v == startMethodSlider
}

// Watchdog returns the backend's operational warning, "" when none.
func (s Sensor) Watchdog() string {
	v, _ := s.state.StringAttr(AttrWatchdog)
	return v
}

// ShowSeconds reports the backend's display-precision flag.
func (s Sensor) ShowSeconds() bool {
	return s.state.BoolAttr(AttrShowSeconds)
}

// Title returns the best display label: instance_title, then
// friendly_name, then the entity id.
func (s Sensor) Title() string {
	if v, ok := s.state.StringAttr(AttrInstanceTitle); ok && v != "" {
		return v
	}
	if v, ok := s.state.StringAttr(AttrFriendlyName); ok && v != "" {
		return v
	}
	return s.EntityID()
}

// DailySeconds parses the sensor's state value: seconds of accumulated
// daily runtime. Malformed values degrade to 0.
func (s Sensor) DailySeconds() float64 {
	if s.state == nil {
		return 0
	}
	v, err := strconv.ParseFloat(s.state.State, 64)
	if err != nil {
		return 0
	}
	return v
}

// HasInstanceLink reports whether the sensor carries both attributes a
// valid instance sensor must have.
func (s Sensor) HasInstanceLink() bool {
	_, hasEntry := s.EntryID()
	_, hasSwitch := s.SwitchEntityID()
	return hasEntry && hasSwitch
}
