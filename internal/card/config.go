package card

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TypeName is the fixed type discriminator cards register under.
const TypeName = "timer-card"

// Button duration bounds in minutes.
const (
	minButtonMinutes = 1
	maxButtonMinutes = 1000
)

// defaultSliderMax is used when the configured slider bound is absent or
// out of range.
const defaultSliderMax = 120

// defaultTimerButtons is the preset grid new cards start with.
var defaultTimerButtons = []int{15, 30, 60, 90, 120, 150}

// DefaultTimerButtons returns a copy of the default preset durations.
func DefaultTimerButtons() []int {
	out := make([]int, len(defaultTimerButtons))
	copy(out, defaultTimerButtons)
	return out
}

// Config is one card's user-authored configuration. TimerButtons is kept
// raw (as decoded from YAML/JSON) so validation can report exactly what
// the user wrote; use ValidateButtons to normalize it.
type Config struct {
	Type            string `yaml:"type" json:"type"`
	TimerInstanceID string `yaml:"timer_instance_id,omitempty" json:"timer_instance_id,omitempty"`

	// Legacy direct entity references, used when no instance id resolves.
	SensorEntity string `yaml:"sensor_entity,omitempty" json:"sensor_entity,omitempty"`
	SwitchEntity string `yaml:"switch_entity,omitempty" json:"switch_entity,omitempty"`

	TimerButtons       any    `yaml:"timer_buttons,omitempty" json:"timer_buttons,omitempty"`
	CardTitle          string `yaml:"card_title,omitempty" json:"card_title,omitempty"`
	NotificationTarget string `yaml:"notification_target,omitempty" json:"notification_target,omitempty"`
	ShowSeconds        bool   `yaml:"show_seconds,omitempty" json:"show_seconds,omitempty"`

	// Presentation-only overrides.
	PowerButtonIcon string `yaml:"power_button_icon,omitempty" json:"power_button_icon,omitempty"`
	ActiveColor     string `yaml:"active_color,omitempty" json:"active_color,omitempty"`
	SliderMax       int    `yaml:"slider_max,omitempty" json:"slider_max,omitempty"`
	ShowDailyUsage  *bool  `yaml:"show_daily_usage,omitempty" json:"show_daily_usage,omitempty"`
}

// Normalized applies defaults without touching the raw button list.
func (c Config) Normalized() Config {
	if c.Type == "" {
		c.Type = "custom:" + TypeName
	}
	if c.SliderMax <= 0 || c.SliderMax > maxButtonMinutes {
		c.SliderMax = defaultSliderMax
	}
	return c
}

// ShowUsage reports whether the daily-usage line is enabled (default on).
func (c Config) ShowUsage() bool {
	return c.ShowDailyUsage == nil || *c.ShowDailyUsage
}

// ValidateButtons normalizes a raw button-duration list into a sorted,
// deduplicated set of integers in [1, 1000], collecting human-readable
// warnings for everything it rejects. Invalid entries are dropped and
// reported, never coerced into range. A nil input yields an empty list
// with no messages; any other non-sequence input yields an empty list
// plus a type-mismatch message.
func ValidateButtons(input any) ([]int, []string) {
	if input == nil {
		return []int{}, nil
	}

	raw, ok := asSlice(input)
	if !ok {
		return []int{}, []string{
			fmt.Sprintf("Invalid timer_buttons configuration. Expected a list, got %T.", input),
		}
	}

	var (
		buttons    []int
		invalid    []string
		duplicates []int
		seen       = make(map[int]bool)
		dupSeen    = make(map[int]bool)
	)

	for _, val := range raw {
		num, ok := coerceButton(val)
		if !ok || num < minButtonMinutes || num > maxButtonMinutes {
			invalid = append(invalid, fmt.Sprintf("%v", val))
			continue
		}
		if seen[num] {
			if !dupSeen[num] {
				duplicates = append(duplicates, num)
				dupSeen[num] = true
			}
			continue
		}
		seen[num] = true
		buttons = append(buttons, num)
	}

	var messages []string
	if len(invalid) > 0 {
		messages = append(messages, fmt.Sprintf(
			"Invalid timer values ignored: %s. Only positive integers up to 1000 are allowed.",
			strings.Join(invalid, ", ")))
	}
	if len(duplicates) > 0 {
		messages = append(messages, fmt.Sprintf(
			"Duplicate timer values were removed: %s.", joinInts(duplicates)))
	}

	sort.Ints(buttons)
	if buttons == nil {
		buttons = []int{}
	}
	return buttons, messages
}

// asSlice widens the slice shapes YAML/JSON decoding and Go callers
// produce into a single []any.
func asSlice(input any) ([]any, bool) {
	switch v := input.(type) {
	case []any:
		return v, true
	case []int:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []float64:
		out := make([]any, len(v))
		for i, n := range v {
			out[i] = n
		}
		return out, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// coerceButton converts one raw list element to an integer minute count.
// Fractional numbers and unparseable strings are rejected, not rounded.
func coerceButton(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
