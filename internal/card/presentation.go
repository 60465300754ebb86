package card

import (
	"fmt"

	"timercard/internal/ha"
)

// ButtonState is one preset duration's render state.
type ButtonState struct {
	Minutes  int  `json:"minutes"`
	Active   bool `json:"active"`
	Disabled bool `json:"disabled"`
}

// RenderState is everything the host needs to draw the card. It is plain
// data: every anticipated failure path is modeled here as a placeholder
// or warning rather than an error.
type RenderState struct {
	Title string `json:"title,omitempty"`

	// Placeholder, when set, replaces the controls entirely.
	Placeholder        string `json:"placeholder,omitempty"`
	PlaceholderWarning bool   `json:"placeholder_warning,omitempty"`

	Resolved bool   `json:"resolved"`
	SwitchID string `json:"switch_id,omitempty"`
	SensorID string `json:"sensor_id,omitempty"`

	IsOn          bool `json:"is_on"`
	IsTimerActive bool `json:"is_timer_active"`
	IsManualOn    bool `json:"is_manual_on"`

	CountdownDisplay string        `json:"countdown_display"`
	DailyUsage       string        `json:"daily_usage,omitempty"`
	ShowSeconds      bool          `json:"show_seconds"`
	Buttons          []ButtonState `json:"buttons"`

	SliderValue int `json:"slider_value"`
	SliderMax   int `json:"slider_max"`

	OrphanedTimer    bool   `json:"orphaned_timer,omitempty"`
	OrphanedDuration int    `json:"orphaned_duration,omitempty"`
	WatchdogMessage  string `json:"watchdog_message,omitempty"`

	ValidationMessages []string `json:"validation_messages,omitempty"`
}

// DeriveInput carries the resolved inputs for one derivation pass.
type DeriveInput struct {
	SwitchState        *ha.State
	SensorState        *ha.State
	Buttons            []int
	Config             Config
	CountdownDisplay   string
	SliderValue        int
	ValidationMessages []string
}

// Derive is the pure mapping from hub state to render state for a
// resolved card. Callers guarantee SwitchState and SensorState are the
// validated pair from the resolver.
func Derive(in DeriveInput) RenderState {
	sensor := NewSensor(in.SensorState)
	cfg := in.Config.Normalized()

	// Display precision is backend-owned; the config flag is the
	// fallback for older backends that do not publish the attribute.
	showSeconds := sensor.ShowSeconds() || cfg.ShowSeconds

	// The switch can vanish between resolution and a countdown tick; the
	// render degrades to off instead of failing.
	isOn := in.SwitchState != nil && in.SwitchState.State == "on"
	switchID := ""
	if in.SwitchState != nil {
		switchID = in.SwitchState.EntityID
	} else if id, ok := sensor.SwitchEntityID(); ok {
		switchID = id
	}
	isTimerActive := sensor.TimerActive()
	isManualOn := isOn && !isTimerActive
	activeDuration := sensor.Duration()
	bySlider := sensor.StartedBySlider()

	buttons := make([]ButtonState, 0, len(in.Buttons))
	anyMatch := false
	for _, minutes := range in.Buttons {
		active := isTimerActive && activeDuration == minutes && !bySlider
		if active {
			anyMatch = true
		}
		buttons = append(buttons, ButtonState{
			Minutes:  minutes,
			Active:   active,
			Disabled: isManualOn || (isTimerActive && !active),
		})
	}

	// A running duration with no matching control is surfaced, not
	// silently shown as nothing-active. Slider-started cycles have no
	// button by design and are exempt.
	orphaned := isTimerActive && !bySlider && !anyMatch

	countdown := in.CountdownDisplay
	if countdown == "" {
		countdown = zeroCountdown(showSeconds)
	}

	state := RenderState{
		Title:              cfg.CardTitle,
		Resolved:           true,
		SwitchID:           switchID,
		SensorID:           sensor.EntityID(),
		IsOn:               isOn,
		IsTimerActive:      isTimerActive,
		IsManualOn:         isManualOn,
		CountdownDisplay:   countdown,
		ShowSeconds:        showSeconds,
		Buttons:            buttons,
		SliderValue:        in.SliderValue,
		SliderMax:          cfg.SliderMax,
		OrphanedTimer:      orphaned,
		WatchdogMessage:    sensor.Watchdog(),
		ValidationMessages: in.ValidationMessages,
	}
	if orphaned {
		state.OrphanedDuration = activeDuration
	}
	if cfg.ShowUsage() {
		state.DailyUsage = formatUsage(sensor.DailySeconds(), showSeconds)
	}
	return state
}

// DerivePlaceholder builds the render state for a card that cannot show
// controls: no hub snapshot, or an unresolved configuration. The message
// ladder distinguishes a missing instance, a broken switch link, and the
// nothing-configured prompt.
func DerivePlaceholder(snap ha.Snapshot, cfg Config, validationMessages []string) RenderState {
	state := RenderState{
		Title:              cfg.CardTitle,
		ValidationMessages: validationMessages,
	}

	if snap == nil {
		state.Placeholder = "Hub connection not available. Card cannot load."
		state.PlaceholderWarning = true
		return state
	}

	switch {
	case cfg.TimerInstanceID != "":
		sensor := findInstanceSensor(snap, cfg.TimerInstanceID)
		if !sensor.Exists() {
			state.Placeholder = fmt.Sprintf(
				"Timer instance '%s' not found. Please select a valid instance in the card editor.",
				cfg.TimerInstanceID)
			state.PlaceholderWarning = true
			return state
		}
		switchID, ok := sensor.SwitchEntityID()
		if !ok || !snap.Has(switchID) {
			state.Placeholder = fmt.Sprintf(
				"Timer instance '%s' is linked to missing or invalid switch '%s'. Please check the instance configuration.",
				cfg.TimerInstanceID, switchID)
			state.PlaceholderWarning = true
			return state
		}
		state.Placeholder = "Loading timer card. Please wait..."

	case cfg.SensorEntity != "":
		sensor := NewSensor(snap.Get(cfg.SensorEntity))
		if !sensor.Exists() {
			state.Placeholder = fmt.Sprintf(
				"Configured sensor '%s' not found. Please select a valid instance in the card editor.",
				cfg.SensorEntity)
			state.PlaceholderWarning = true
			return state
		}
		switchID, ok := sensor.SwitchEntityID()
		if !ok || !snap.Has(switchID) {
			state.Placeholder = fmt.Sprintf(
				"Configured sensor '%s' is invalid or its linked switch '%s' is missing. Please select a valid instance.",
				cfg.SensorEntity, switchID)
			state.PlaceholderWarning = true
			return state
		}
		state.Placeholder = "Loading timer card. Please wait..."

	default:
		state.Placeholder = "Select a timer instance in the card editor to link this card."
	}

	return state
}

// findInstanceSensor locates the runtime sensor for an instance id, for
// placeholder diagnostics only; resolution proper lives in the resolver.
func findInstanceSensor(snap ha.Snapshot, instanceID string) Sensor {
	for _, st := range snap.Sensors() {
		sensor := NewSensor(st)
		if entryID, ok := sensor.EntryID(); ok && entryID == instanceID {
			return sensor
		}
	}
	return Sensor{}
}
