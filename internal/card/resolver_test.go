package card

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timercard/internal/ha"
)

func sensorState(entityID, value string, attrs map[string]any) *ha.State {
	return &ha.State{EntityID: entityID, State: value, Attributes: attrs}
}

func instanceSensor(entityID, entryID, switchID string) *ha.State {
	return sensorState(entityID, "0", map[string]any{
		AttrEntryID:        entryID,
		AttrSwitchEntityID: switchID,
	})
}

func TestResolveEntities_ByInstanceID(t *testing.T) {
	snap := ha.Snapshot{
		"sensor.timer_a": instanceSensor("sensor.timer_a", "abc", "switch.heater"),
		"sensor.timer_b": instanceSensor("sensor.timer_b", "def", "switch.boiler"),
		"switch.heater":  {EntityID: "switch.heater", State: "off"},
		"switch.boiler":  {EntityID: "switch.boiler", State: "off"},
	}

	res := ResolveEntities(snap, Config{TimerInstanceID: "abc"}, zap.NewNop())

	assert.True(t, res.Valid)
	assert.Equal(t, "switch.heater", res.SwitchID)
	assert.Equal(t, "sensor.timer_a", res.SensorID)
}

func TestResolveEntities_LegacySensorEntity(t *testing.T) {
	snap := ha.Snapshot{
		"sensor.boiler_runtime": instanceSensor("sensor.boiler_runtime", "xyz", "switch.boiler"),
		"switch.boiler":         {EntityID: "switch.boiler", State: "on"},
	}

	res := ResolveEntities(snap, Config{SensorEntity: "sensor.boiler_runtime"}, zap.NewNop())

	assert.True(t, res.Valid)
	assert.Equal(t, "switch.boiler", res.SwitchID)
	assert.Equal(t, "sensor.boiler_runtime", res.SensorID)
}

func TestResolveEntities_InstanceTakesPrecedenceOverSensor(t *testing.T) {
	snap := ha.Snapshot{
		"sensor.by_instance": instanceSensor("sensor.by_instance", "abc", "switch.a"),
		"sensor.by_config":   instanceSensor("sensor.by_config", "def", "switch.b"),
		"switch.a":           {EntityID: "switch.a", State: "off"},
		"switch.b":           {EntityID: "switch.b", State: "off"},
	}

	res := ResolveEntities(snap, Config{
		TimerInstanceID: "abc",
		SensorEntity:    "sensor.by_config",
	}, zap.NewNop())

	assert.Equal(t, "sensor.by_instance", res.SensorID)
}

func TestResolveEntities_AutoDetect(t *testing.T) {
	snap := ha.Snapshot{
		"sensor.humidity":  sensorState("sensor.humidity", "40", nil),
		"sensor.timer_z":   instanceSensor("sensor.timer_z", "zzz", "switch.z"),
		"sensor.timer_a":   instanceSensor("sensor.timer_a", "aaa", "switch.a"),
		"switch.a":         {EntityID: "switch.a", State: "off"},
		"switch.z":         {EntityID: "switch.z", State: "off"},
		"light.unrelated":  {EntityID: "light.unrelated", State: "on"},
	}

	res := ResolveEntities(snap, Config{}, zap.NewNop())

	require.True(t, res.Valid)
	// Scans are in entity-id order, so the first instance sensor wins.
	assert.Equal(t, "sensor.timer_a", res.SensorID)
	assert.Equal(t, "switch.a", res.SwitchID)
}

func TestResolveEntities_BrokenLinkFallsThrough(t *testing.T) {
	// The configured instance links to a switch that is not in the
	// snapshot. Resolution must not bind the broken pair; it falls
	// through and finds the healthy auto-detectable instance.
	snap := ha.Snapshot{
		"sensor.broken":  instanceSensor("sensor.broken", "abc", "switch.gone"),
		"sensor.healthy": instanceSensor("sensor.healthy", "def", "switch.ok"),
		"switch.ok":      {EntityID: "switch.ok", State: "off"},
	}

	res := ResolveEntities(snap, Config{TimerInstanceID: "abc"}, zap.NewNop())

	require.True(t, res.Valid)
	assert.Equal(t, "sensor.healthy", res.SensorID)
	assert.Equal(t, "switch.ok", res.SwitchID)
}

func TestResolveEntities_Unresolved(t *testing.T) {
	tests := []struct {
		name string
		snap ha.Snapshot
		cfg  Config
	}{
		{
			name: "nil snapshot",
			snap: nil,
			cfg:  Config{TimerInstanceID: "abc"},
		},
		{
			name: "empty snapshot",
			snap: ha.Snapshot{},
			cfg:  Config{},
		},
		{
			name: "only broken candidates",
			snap: ha.Snapshot{
				"sensor.broken": instanceSensor("sensor.broken", "abc", "switch.gone"),
			},
			cfg: Config{TimerInstanceID: "abc"},
		},
		{
			name: "sensor without link attributes",
			snap: ha.Snapshot{
				"sensor.plain": sensorState("sensor.plain", "0", nil),
			},
			cfg: Config{SensorEntity: "sensor.plain"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ResolveEntities(tt.snap, tt.cfg, zap.NewNop())
			assert.Equal(t, Resolution{}, res, "unresolved must leave both ids empty")
		})
	}
}

func TestDiscoverInstances(t *testing.T) {
	snap := ha.Snapshot{
		"sensor.timer_b": sensorState("sensor.timer_b", "0", map[string]any{
			AttrEntryID:        "bbb",
			AttrSwitchEntityID: "switch.b",
			AttrInstanceTitle:  "Boiler",
		}),
		"sensor.timer_a":  instanceSensor("sensor.timer_a", "aaa", "switch.a"),
		"sensor.humidity": sensorState("sensor.humidity", "40", nil),
	}

	instances := DiscoverInstances(snap)

	require.Len(t, instances, 2)
	assert.Equal(t, "aaa", instances[0].EntryID)
	assert.Equal(t, "bbb", instances[1].EntryID)
	assert.Equal(t, "Boiler", instances[1].Title)
	assert.Equal(t, "sensor.timer_a", instances[0].Title, "untitled instances fall back to the entity id")
}
