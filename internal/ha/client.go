package ha

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HubClient is the hub's state/service bus as the card components see it:
// a readable snapshot of entity state, a remote service-call surface, and
// push notifications for state changes.
type HubClient interface {
	Connect() error
	Disconnect() error
	IsConnected() bool
	// States returns the freshest known snapshot of all entity states.
	States() Snapshot
	// Refresh re-reads all states from the hub into the local snapshot.
	Refresh() error
	CallService(domain, service string, data map[string]any) error
	// SubscribeStateChanges registers a handler for every state_changed
	// push. Handlers run after the internal snapshot has been updated,
	// so reading States() inside a handler never observes stale data
	// for the changed entity.
	SubscribeStateChanges(handler StateChangeHandler) (Subscription, error)
}

// subscriberEntry holds a handler with its unique subscription id.
type subscriberEntry struct {
	subID   int
	handler StateChangeHandler
}

// Client implements HubClient over the Home Assistant WebSocket API.
type Client struct {
	url    string
	token  string
	logger *zap.Logger

	conn      *websocket.Conn
	connected bool
	connMu    sync.RWMutex
	writeMu   sync.Mutex // protects websocket writes

	msgID   int
	msgIDMu sync.Mutex

	pending   map[int]chan Message
	pendingMu sync.Mutex

	states   map[string]*State
	statesMu sync.RWMutex

	subscribers []subscriberEntry
	subsMu      sync.RWMutex
	nextSubID   int

	ctx       context.Context
	cancel    context.CancelFunc
	reconnect bool
}

// NewClient creates a hub client for the given WebSocket URL and token.
func NewClient(url, token string, logger *zap.Logger) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		url:       url,
		token:     token,
		logger:    logger,
		pending:   make(map[int]chan Message),
		states:    make(map[string]*State),
		ctx:       ctx,
		cancel:    cancel,
		reconnect: true,
	}
}

// Connect dials the hub, authenticates, subscribes to state_changed
// events and primes the local snapshot.
func (c *Client) Connect() error {
	c.connMu.Lock()

	if c.connected {
		c.connMu.Unlock()
		return fmt.Errorf("already connected")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		c.connMu.Unlock()
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	c.conn = conn

	if err := c.authenticate(); err != nil {
		c.conn.Close()
		c.connMu.Unlock()
		return err
	}

	if c.cancel != nil {
		c.cancel()
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.connected = true
	c.reconnect = true
	c.logger.Info("Connected to hub")

	go c.receiveMessages()

	// Release the lock before issuing requests that wait on the receiver.
	c.connMu.Unlock()

	if err := c.subscribeToStateChanges(); err != nil {
		c.logger.Warn("Failed to subscribe to state changes", zap.Error(err))
	}
	if err := c.Refresh(); err != nil {
		c.logger.Warn("Failed to prime state snapshot", zap.Error(err))
	}

	return nil
}

// authenticate runs the auth_required/auth/auth_ok handshake.
// Caller holds connMu.
func (c *Client) authenticate() error {
	var authRequired Message
	if err := c.conn.ReadJSON(&authRequired); err != nil {
		return fmt.Errorf("failed to read auth_required: %w", err)
	}
	if authRequired.Type != "auth_required" {
		return fmt.Errorf("expected auth_required, got %s", authRequired.Type)
	}

	c.writeMu.Lock()
	err := c.conn.WriteJSON(AuthMessage{Type: "auth", AccessToken: c.token})
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send auth: %w", err)
	}

	var authResponse Message
	if err := c.conn.ReadJSON(&authResponse); err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}
	if authResponse.Type == "auth_invalid" {
		return fmt.Errorf("authentication failed: invalid token")
	}
	if authResponse.Type != "auth_ok" {
		return fmt.Errorf("expected auth_ok, got %s", authResponse.Type)
	}
	return nil
}

// Disconnect closes the connection and drops all subscriptions.
func (c *Client) Disconnect() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if !c.connected {
		return nil
	}

	c.reconnect = false
	c.cancel()
	c.connected = false

	if c.conn != nil {
		c.writeMu.Lock()
		c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()

		c.conn.Close()
		c.conn = nil
	}

	c.subsMu.Lock()
	c.subscribers = nil
	c.subsMu.Unlock()

	c.logger.Info("Disconnected from hub")
	return nil
}

// IsConnected reports whether the client is currently connected.
func (c *Client) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// States returns a copy of the current snapshot.
func (c *Client) States() Snapshot {
	c.statesMu.RLock()
	defer c.statesMu.RUnlock()

	snap := make(Snapshot, len(c.states))
	for id, st := range c.states {
		snap[id] = st
	}
	return snap
}

// Refresh re-reads all entity states from the hub.
func (c *Client) Refresh() error {
	req := &GetStatesRequest{
		ID:   c.nextMsgID(),
		Type: "get_states",
	}

	resp, err := c.sendMessage(req, req.ID)
	if err != nil {
		return err
	}

	var states []*State
	if err := json.Unmarshal(resp.Result, &states); err != nil {
		return fmt.Errorf("failed to unmarshal states: %w", err)
	}

	c.statesMu.Lock()
	c.states = make(map[string]*State, len(states))
	for _, st := range states {
		c.states[st.EntityID] = st
	}
	c.statesMu.Unlock()

	c.logger.Debug("State snapshot refreshed", zap.Int("entities", len(states)))
	return nil
}

// CallService invokes a hub service. The call is synchronous up to the
// hub's acknowledgement; the resulting state change arrives later via
// the push channel.
func (c *Client) CallService(domain, service string, data map[string]any) error {
	req := &CallServiceRequest{
		ID:          c.nextMsgID(),
		Type:        "call_service",
		Domain:      domain,
		Service:     service,
		ServiceData: data,
	}

	_, err := c.sendMessage(req, req.ID)
	return err
}

// SubscribeStateChanges registers a handler for all state_changed pushes.
func (c *Client) SubscribeStateChanges(handler StateChangeHandler) (Subscription, error) {
	c.subsMu.Lock()
	subID := c.nextSubID
	c.nextSubID++
	c.subscribers = append(c.subscribers, subscriberEntry{subID: subID, handler: handler})
	c.subsMu.Unlock()

	return &clientSubscription{subID: subID, client: c}, nil
}

type clientSubscription struct {
	subID  int
	client *Client
}

func (s *clientSubscription) Unsubscribe() error {
	s.client.subsMu.Lock()
	defer s.client.subsMu.Unlock()

	for i, entry := range s.client.subscribers {
		if entry.subID == s.subID {
			s.client.subscribers = append(s.client.subscribers[:i], s.client.subscribers[i+1:]...)
			break
		}
	}
	return nil
}

// nextMsgID returns the next command id.
func (c *Client) nextMsgID() int {
	c.msgIDMu.Lock()
	defer c.msgIDMu.Unlock()
	c.msgID++
	return c.msgID
}

// sendMessage sends a command frame and waits for its response.
func (c *Client) sendMessage(msg any, msgID int) (*Message, error) {
	c.connMu.RLock()
	if !c.connected {
		c.connMu.RUnlock()
		return nil, fmt.Errorf("not connected")
	}
	c.connMu.RUnlock()

	respChan := make(chan Message, 1)
	c.pendingMu.Lock()
	c.pending[msgID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msgID)
		c.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	select {
	case resp := <-respChan:
		if resp.Success != nil && !*resp.Success {
			if resp.Error != nil {
				return nil, fmt.Errorf("hub error: %s - %s", resp.Error.Code, resp.Error.Message)
			}
			return nil, fmt.Errorf("request failed")
		}
		return &resp, nil
	case <-time.After(10 * time.Second):
		return nil, fmt.Errorf("timeout waiting for response")
	case <-c.ctx.Done():
		return nil, fmt.Errorf("client disconnected")
	}
}

// receiveMessages reads incoming frames until the connection drops.
func (c *Client) receiveMessages() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.logger.Error("Failed to read message", zap.Error(err))
			c.handleDisconnect()
			return
		}

		if msg.Type == "event" {
			c.handleEvent(&msg)
			continue
		}

		if msg.ID > 0 {
			c.pendingMu.Lock()
			if ch, ok := c.pending[msg.ID]; ok {
				select {
				case ch <- msg:
				default:
					c.logger.Warn("Response channel full", zap.Int("msg_id", msg.ID))
				}
			}
			c.pendingMu.Unlock()
		}
	}
}

// handleEvent applies a state_changed push to the snapshot and notifies
// subscribers.
func (c *Client) handleEvent(msg *Message) {
	if msg.Event == nil || msg.Event.EventType != "state_changed" {
		return
	}

	var eventData StateChangedEvent
	if err := json.Unmarshal(msg.Event.Data, &eventData); err != nil {
		c.logger.Error("Failed to unmarshal state_changed event", zap.Error(err))
		return
	}

	c.statesMu.Lock()
	if eventData.NewState != nil {
		c.states[eventData.EntityID] = eventData.NewState
	} else {
		delete(c.states, eventData.EntityID)
	}
	c.statesMu.Unlock()

	c.subsMu.RLock()
	entries := append([]subscriberEntry(nil), c.subscribers...)
	c.subsMu.RUnlock()

	for _, entry := range entries {
		entry.handler(eventData.EntityID, eventData.OldState, eventData.NewState)
	}
}

// handleDisconnect marks the client disconnected and, unless Disconnect
// was requested, starts reconnecting with exponential backoff.
func (c *Client) handleDisconnect() {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	c.logger.Warn("Connection lost")

	if !c.reconnect {
		return
	}

	go c.attemptReconnect()
}

func (c *Client) attemptReconnect() {
	backoff := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(backoff):
		}

		c.logger.Info("Attempting to reconnect...")

		if err := c.Connect(); err != nil {
			c.logger.Error("Reconnection failed", zap.Error(err))
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.logger.Info("Reconnected successfully")
		return
	}
}

// subscribeToStateChanges subscribes to all state_changed events.
func (c *Client) subscribeToStateChanges() error {
	req := &SubscribeEventsRequest{
		ID:        c.nextMsgID(),
		Type:      "subscribe_events",
		EventType: "state_changed",
	}

	_, err := c.sendMessage(req, req.ID)
	return err
}
