package card

import (
	"go.uber.org/zap"

	"timercard/internal/ha"
)

// Resolution is the outcome of entity resolution: a validated
// switch/sensor pair, or unresolved (both ids empty, Valid false).
type Resolution struct {
	SwitchID string
	SensorID string
	Valid    bool
}

// Equal reports whether two resolutions bind the same entity pair.
// Callers use this to skip re-renders when a hub push changed nothing
// the card is bound to.
func (r Resolution) Equal(other Resolution) bool {
	return r == other
}

// ResolveEntities maps a card configuration onto a live switch/sensor
// pair in the given snapshot. Resolution order, first valid pair wins:
//
//  1. configured instance id: the sensor whose entry_id matches and that
//     carries a string switch_entity_id
//  2. legacy configured sensor entity with both link attributes
//  3. auto-detect: first sensor (by entity id) carrying both attributes
//
// A candidate is only valid if its linked switch exists in the snapshot;
// a broken candidate is logged and resolution falls through to the next
// step. When no step succeeds the result is unresolved.
func ResolveEntities(snap ha.Snapshot, cfg Config, logger *zap.Logger) Resolution {
	if snap == nil {
		return Resolution{}
	}

	if cfg.TimerInstanceID != "" {
		if res, ok := resolveByInstance(snap, cfg.TimerInstanceID, logger); ok {
			return res
		}
	}

	if cfg.SensorEntity != "" {
		if res, ok := resolveBySensor(snap, cfg.SensorEntity, logger); ok {
			return res
		}
	}

	if res, ok := autoDetect(snap, logger); ok {
		return res
	}

	return Resolution{}
}

func resolveByInstance(snap ha.Snapshot, instanceID string, logger *zap.Logger) (Resolution, bool) {
	for _, st := range snap.Sensors() {
		sensor := NewSensor(st)
		entryID, ok := sensor.EntryID()
		if !ok || entryID != instanceID {
			continue
		}
		switchID, ok := sensor.SwitchEntityID()
		if !ok {
			continue
		}
		if !snap.Has(switchID) {
			logger.Warn("Configured instance links to a missing switch",
				zap.String("instance_id", instanceID),
				zap.String("sensor", sensor.EntityID()),
				zap.String("switch", switchID))
			return Resolution{}, false
		}
		return Resolution{SwitchID: switchID, SensorID: sensor.EntityID(), Valid: true}, true
	}

	logger.Warn("Configured instance has no matching runtime sensor",
		zap.String("instance_id", instanceID))
	return Resolution{}, false
}

func resolveBySensor(snap ha.Snapshot, sensorID string, logger *zap.Logger) (Resolution, bool) {
	sensor := NewSensor(snap.Get(sensorID))
	if !sensor.Exists() || !sensor.HasInstanceLink() {
		logger.Warn("Configured sensor entity not found or missing link attributes",
			zap.String("sensor", sensorID))
		return Resolution{}, false
	}

	switchID, _ := sensor.SwitchEntityID()
	if !snap.Has(switchID) {
		logger.Warn("Configured sensor links to a missing switch",
			zap.String("sensor", sensorID),
			zap.String("switch", switchID))
		return Resolution{}, false
	}

	logger.Info("Using manually configured sensor entity",
		zap.String("sensor", sensorID),
		zap.String("switch", switchID))
	return Resolution{SwitchID: switchID, SensorID: sensorID, Valid: true}, true
}

func autoDetect(snap ha.Snapshot, logger *zap.Logger) (Resolution, bool) {
	for _, st := range snap.Sensors() {
		sensor := NewSensor(st)
		if !sensor.HasInstanceLink() {
			continue
		}
		switchID, _ := sensor.SwitchEntityID()
		if !snap.Has(switchID) {
			logger.Warn("Auto-detected sensor links to a missing switch",
				zap.String("sensor", sensor.EntityID()),
				zap.String("switch", switchID))
			continue
		}
		logger.Info("Auto-detected instance",
			zap.String("sensor", sensor.EntityID()),
			zap.String("switch", switchID))
		return Resolution{SwitchID: switchID, SensorID: sensor.EntityID(), Valid: true}, true
	}
	return Resolution{}, false
}

// Instance describes one discovered backend deployment, for the editor's
// instance picker.
type Instance struct {
	EntryID  string
	SensorID string
	SwitchID string
	Title    string
}

// DiscoverInstances scans the snapshot for every sensor carrying both
// instance-link attributes, in ascending entity-id order.
func DiscoverInstances(snap ha.Snapshot) []Instance {
	var out []Instance
	for _, st := range snap.Sensors() {
		sensor := NewSensor(st)
		entryID, ok := sensor.EntryID()
		if !ok {
			continue
		}
		switchID, ok := sensor.SwitchEntityID()
		if !ok {
			continue
		}
		out = append(out, Instance{
			EntryID:  entryID,
			SensorID: sensor.EntityID(),
			SwitchID: switchID,
			Title:    sensor.Title(),
		})
	}
	return out
}
