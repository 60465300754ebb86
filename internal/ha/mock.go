package ha

import (
	"fmt"
	"sync"
	"time"
)

// MockClient implements HubClient for tests. Tests seed entity states
// with SetState/RemoveEntity and observe outbound traffic through the
// recorded service calls.
type MockClient struct {
	states   map[string]*State
	statesMu sync.RWMutex

	subscribers []subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int

	connected bool
	connMu    sync.RWMutex

	serviceCalls []ServiceCall
	callsMu      sync.Mutex

	// CallServiceErr, when set, is returned by every CallService.
	CallServiceErr error
}

// ServiceCall records one outbound service call.
type ServiceCall struct {
	Domain  string
	Service string
	Data    map[string]any
	Time    time.Time
}

// NewMockClient creates an empty mock hub.
func NewMockClient() *MockClient {
	return &MockClient{
		states:       make(map[string]*State),
		serviceCalls: make([]ServiceCall, 0),
	}
}

// Connect marks the mock connected.
func (m *MockClient) Connect() error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	if m.connected {
		return fmt.Errorf("already connected")
	}
	m.connected = true
	return nil
}

// Disconnect marks the mock disconnected and drops subscriptions.
func (m *MockClient) Disconnect() error {
	m.connMu.Lock()
	m.connected = false
	m.connMu.Unlock()

	m.subsMu.Lock()
	m.subscribers = nil
	m.subsMu.Unlock()
	return nil
}

// IsConnected reports the mock connection flag.
func (m *MockClient) IsConnected() bool {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return m.connected
}

// States returns a copy of the seeded states.
func (m *MockClient) States() Snapshot {
	m.statesMu.RLock()
	defer m.statesMu.RUnlock()

	snap := make(Snapshot, len(m.states))
	for id, st := range m.states {
		snap[id] = st
	}
	return snap
}

// Refresh is a no-op on the mock.
func (m *MockClient) Refresh() error {
	return nil
}

// CallService records the call and returns CallServiceErr if set.
func (m *MockClient) CallService(domain, service string, data map[string]any) error {
	m.callsMu.Lock()
	m.serviceCalls = append(m.serviceCalls, ServiceCall{
		Domain:  domain,
		Service: service,
		Data:    data,
		Time:    time.Now(),
	})
	m.callsMu.Unlock()

	return m.CallServiceErr
}

// SubscribeStateChanges registers a handler for all pushed changes.
func (m *MockClient) SubscribeStateChanges(handler StateChangeHandler) (Subscription, error) {
	m.subsMu.Lock()
	subID := m.nextSubID
	m.nextSubID++
	m.subscribers = append(m.subscribers, subscriberEntry{subID: subID, handler: handler})
	m.subsMu.Unlock()

	return &mockSubscription{subID: subID, mock: m}, nil
}

type mockSubscription struct {
	subID int
	mock  *MockClient
}

func (s *mockSubscription) Unsubscribe() error {
	s.mock.subsMu.Lock()
	defer s.mock.subsMu.Unlock()

	for i, entry := range s.mock.subscribers {
		if entry.subID == s.subID {
			s.mock.subscribers = append(s.mock.subscribers[:i], s.mock.subscribers[i+1:]...)
			break
		}
	}
	return nil
}

// SetState seeds or replaces an entity state and pushes the change to
// subscribers, like a state_changed event would.
func (m *MockClient) SetState(entityID, stateValue string, attributes map[string]any) {
	now := time.Now()

	m.statesMu.Lock()
	oldState := m.states[entityID]
	newState := &State{
		EntityID:    entityID,
		State:       stateValue,
		Attributes:  attributes,
		LastChanged: now,
		LastUpdated: now,
	}
	m.states[entityID] = newState
	m.statesMu.Unlock()

	m.notifySubscribers(entityID, oldState, newState)
}

// RemoveEntity deletes an entity and pushes a removal event (nil new
// state) to subscribers.
func (m *MockClient) RemoveEntity(entityID string) {
	m.statesMu.Lock()
	oldState := m.states[entityID]
	delete(m.states, entityID)
	m.statesMu.Unlock()

	if oldState != nil {
		m.notifySubscribers(entityID, oldState, nil)
	}
}

// ServiceCalls returns a copy of all recorded calls.
func (m *MockClient) ServiceCalls() []ServiceCall {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()

	calls := make([]ServiceCall, len(m.serviceCalls))
	copy(calls, m.serviceCalls)
	return calls
}

// CallsTo returns recorded calls matching a domain/service pair.
func (m *MockClient) CallsTo(domain, service string) []ServiceCall {
	var out []ServiceCall
	for _, call := range m.ServiceCalls() {
		if call.Domain == domain && call.Service == service {
			out = append(out, call)
		}
	}
	return out
}

// ClearServiceCalls drops the recorded call history.
func (m *MockClient) ClearServiceCalls() {
	m.callsMu.Lock()
	defer m.callsMu.Unlock()
	m.serviceCalls = m.serviceCalls[:0]
}

func (m *MockClient) notifySubscribers(entityID string, oldState, newState *State) {
	m.subsMu.RLock()
	entries := append([]subscriberEntry(nil), m.subscribers...)
	m.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(entityID, oldState, newState)
	}
}
