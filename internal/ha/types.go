package ha

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Message is the base WebSocket frame exchanged with Home Assistant.
type Message struct {
	ID      int             `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
	Event   *Event          `json:"event,omitempty"`
}

// Error is an error payload returned by Home Assistant.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthMessage is the authentication request frame.
type AuthMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token,omitempty"`
}

// Event is an event frame pushed by Home Assistant.
type Event struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Origin    string          `json:"origin"`
	TimeFired time.Time       `json:"time_fired"`
}

// StateChangedEvent is the payload of a state_changed event.
type StateChangedEvent struct {
	EntityID string `json:"entity_id"`
	NewState *State `json:"new_state"`
	OldState *State `json:"old_state"`
}

// State is one entity's state in the hub's state store.
type State struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastChanged time.Time      `json:"last_changed"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Domain returns the entity id's domain prefix ("sensor.x" -> "sensor").
func (s *State) Domain() string {
	if i := strings.IndexByte(s.EntityID, '.'); i > 0 {
		return s.EntityID[:i]
	}
	return s.EntityID
}

// StringAttr returns a string attribute, reporting whether it is present
// and actually a string.
func (s *State) StringAttr(name string) (string, bool) {
	if s == nil || s.Attributes == nil {
		return "", false
	}
	v, ok := s.Attributes[name].(string)
	return v, ok
}

// FloatAttr returns a numeric attribute. JSON numbers arrive as float64;
// integer-typed values from tests are accepted too.
func (s *State) FloatAttr(name string) (float64, bool) {
	if s == nil || s.Attributes == nil {
		return 0, false
	}
	switch v := s.Attributes[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// BoolAttr returns a boolean attribute, false when absent or mistyped.
func (s *State) BoolAttr(name string) bool {
	if s == nil || s.Attributes == nil {
		return false
	}
	v, _ := s.Attributes[name].(bool)
	return v
}

// Snapshot is a point-in-time copy of the hub's entity-id -> state map.
// It is read-only shared data: the card never mutates it.
type Snapshot map[string]*State

// Get looks up an entity, nil when absent.
func (s Snapshot) Get(entityID string) *State {
	if s == nil {
		return nil
	}
	return s[entityID]
}

// Has reports whether an entity exists in the snapshot.
func (s Snapshot) Has(entityID string) bool {
	return s.Get(entityID) != nil
}

// Sensors returns all sensor-domain entities in ascending entity-id order,
// so "first match" scans are deterministic.
func (s Snapshot) Sensors() []*State {
	var out []*State
	for id, st := range s {
		if strings.HasPrefix(id, "sensor.") {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// CallServiceRequest is a call_service command frame.
type CallServiceRequest struct {
	ID          int            `json:"id"`
	Type        string         `json:"type"`
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	ServiceData map[string]any `json:"service_data,omitempty"`
}

// GetStatesRequest is a get_states command frame.
type GetStatesRequest struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// SubscribeEventsRequest is a subscribe_events command frame.
type SubscribeEventsRequest struct {
	ID        int    `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type,omitempty"`
}

// StateChangeHandler receives every state_changed push. oldState is nil
// for newly created entities, newState is nil for removed ones.
type StateChangeHandler func(entityID string, oldState, newState *State)

// Subscription is an active push subscription.
type Subscription interface {
	Unsubscribe() error
}
