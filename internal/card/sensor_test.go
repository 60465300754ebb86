package card

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSensorNilStateIsAbsent(t *testing.T) {
	s := NewSensor(nil)

	assert.False(t, s.Exists())
	assert.Empty(t, s.EntityID())
	_, ok := s.EntryID()
	assert.False(t, ok)
	assert.False(t, s.TimerActive())
	_, ok = s.FinishesAt()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Duration())
	assert.Equal(t, 0.0, s.DailySeconds())
	assert.False(t, s.HasInstanceLink())
}

func TestSensorFinishesAt(t *testing.T) {
	finish := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{name: "valid rfc3339", value: finish.Format(time.RFC3339), ok: true},
		{name: "empty string", value: "", ok: false},
		{name: "malformed", value: "tomorrow-ish", ok: false},
		{name: "wrong type", value: 12345, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSensor(sensorState("sensor.timer", "0", map[string]any{
				AttrFinishesAt: tt.value,
			}))
			got, ok := s.FinishesAt()
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, got.Equal(finish))
			}
		})
	}
}

func TestSensorTimerActive(t *testing.T) {
	active := NewSensor(sensorState("sensor.timer", "0", map[string]any{
		AttrTimerState: "active",
	}))
	assert.True(t, active.TimerActive())

	idle := NewSensor(sensorState("sensor.timer", "0", map[string]any{
		AttrTimerState: "idle",
	}))
	assert.False(t, idle.TimerActive())
}

func TestSensorDailySeconds(t *testing.T) {
	tests := []struct {
		state    string
		expected float64
	}{
		{state: "3725.5", expected: 3725.5},
		{state: "0", expected: 0},
		{state: "unavailable", expected: 0},
		{state: "", expected: 0},
	}

	for _, tt := range tests {
		s := NewSensor(sensorState("sensor.timer", tt.state, nil))
		assert.Equal(t, tt.expected, s.DailySeconds(), tt.state)
	}
}

func TestSensorTitleFallbacks(t *testing.T) {
	titled := NewSensor(sensorState("sensor.timer", "0", map[string]any{
		AttrInstanceTitle: "Bathroom Heater",
		AttrFriendlyName:  "Timer Sensor",
	}))
	assert.Equal(t, "Bathroom Heater", titled.Title())

	friendly := NewSensor(sensorState("sensor.timer", "0", map[string]any{
		AttrFriendlyName: "Timer Sensor",
	}))
	assert.Equal(t, "Timer Sensor", friendly.Title())

	bare := NewSensor(sensorState("sensor.timer", "0", nil))
	assert.Equal(t, "sensor.timer", bare.Title())
}
