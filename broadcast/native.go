package broadcast

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/model"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connection is one live WebSocket subscriber.
type connection struct {
	conn   *websocket.Conn
	send   chan Message
	sub    Subscription
	subMu  sync.RWMutex
	logger zerolog.Logger
}

func (c *connection) setSubscription(sub Subscription) {
	c.subMu.Lock()
	c.sub = sub
	c.subMu.Unlock()
}

func (c *connection) subscription() Subscription {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return c.sub
}

// NativeManager is the in-process WebSocket broadcast backend.
type NativeManager struct {
	mu          sync.RWMutex
	byTenant    map[string]map[*connection]bool
	logger      zerolog.Logger
}

// NewNativeManager creates a native WebSocket broadcast backend.
func NewNativeManager(logger zerolog.Logger) *NativeManager {
	return &NativeManager{
		byTenant: make(map[string]map[*connection]bool),
		logger:   logger.With().Str("component", "broadcast-native").Logger(),
	}
}

// ServeWS upgrades r to a WebSocket and registers the connection under
// tenantID until it disconnects.
func (m *NativeManager) ServeWS(w http.ResponseWriter, r *http.Request, tenantID string) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &connection{
		conn:   wsConn,
		send:   make(chan Message, 64),
		logger: m.logger,
		sub:    Subscription{TenantID: tenantID},
	}

	m.register(tenantID, c)
	defer m.unregister(tenantID, c)

	go c.writeLoop()
	c.readLoop(tenantID)
}

func (m *NativeManager) register(tenantID string, c *connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byTenant[tenantID] == nil {
		m.byTenant[tenantID] = make(map[*connection]bool)
	}
	m.byTenant[tenantID][c] = true
}

func (m *NativeManager) unregister(tenantID string, c *connection) {
	m.mu.Lock()
	if conns, ok := m.byTenant[tenantID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(m.byTenant, tenantID)
		}
	}
	m.mu.Unlock()
	close(c.send)
	c.conn.Close()
}

// snapshot returns the current connection list for tenantID without
// holding the registry lock during delivery, so a slow subscriber never
// blocks registration/unregistration of others.
func (m *NativeManager) snapshot(tenantID string) []*connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conns := m.byTenant[tenantID]
	out := make([]*connection, 0, len(conns))
	for c := range conns {
		out = append(out, c)
	}
	return out
}

func (c *connection) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(Message{Type: "ping"}); err != nil {
				return
			}
		}
	}
}

type clientMessage struct {
	Action   string              `json:"action"`
	Channels []string            `json:"channels"`
	Filters  SubscriptionFilters `json:"filters"`
	Token    string              `json:"token,omitempty"`
}

func (c *connection) readLoop(tenantID string) {
	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Action {
		case "subscribe":
			sub := Subscription{TenantID: tenantID, Filters: msg.Filters}
			for _, ch := range msg.Channels {
				switch ch {
				case "events":
					sub.Channels.Events = true
				case "agents":
					sub.Channels.Agents = true
				}
			}
			c.setSubscription(sub)
		case "unsubscribe":
			c.setSubscription(Subscription{TenantID: tenantID})
		case "ping":
			select {
			case c.send <- Message{Type: TypePong}:
			default:
			}
		}
	}
}

func (m *NativeManager) deliver(tenantID string, filter func(Subscription) bool, msg Message) {
	for _, c := range m.snapshot(tenantID) {
		sub := c.subscription()
		if !filter(sub) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			m.logger.Warn().Str("tenant_id", tenantID).Msg("subscriber send buffer full, dropping message")
		}
	}
}

// BroadcastEvent delivers event.new to subscriptions with the events
// channel enabled whose filters match e.
func (m *NativeManager) BroadcastEvent(tenantID string, e model.Event) {
	m.deliver(tenantID, func(sub Subscription) bool {
		return sub.Channels.Events && sub.Filters.Matches(e)
	}, Message{Type: TypeEventNew, Data: e})
}

// BroadcastAgentStatusChanged delivers agent.status_changed to
// subscriptions with the agents channel enabled.
func (m *NativeManager) BroadcastAgentStatusChanged(tenantID, agentID, previousStatus, newStatus string) {
	m.deliver(tenantID, func(sub Subscription) bool { return sub.Channels.Agents }, Message{
		Type: TypeAgentStatusChanged,
		Data: StatusChangedData{AgentID: agentID, PreviousStatus: previousStatus, NewStatus: newStatus},
	})
}

// BroadcastAgentStuck delivers agent.stuck to subscriptions with the
// agents channel enabled.
func (m *NativeManager) BroadcastAgentStuck(tenantID, agentID string, lastHeartbeat time.Time, stuckThresholdSeconds int) {
	m.deliver(tenantID, func(sub Subscription) bool { return sub.Channels.Agents }, Message{
		Type: TypeAgentStuck,
		Data: StuckData{AgentID: agentID, LastHeartbeat: lastHeartbeat.UTC().Format(time.RFC3339Nano), StuckThresholdSeconds: stuckThresholdSeconds},
	})
}

// ClearStuck delivers agent.stuck_cleared to subscriptions with the agents
// channel enabled.
func (m *NativeManager) ClearStuck(tenantID, agentID string) {
	m.deliver(tenantID, func(sub Subscription) bool { return sub.Channels.Agents }, Message{
		Type: TypeAgentStuckCleared,
		Data: map[string]string{"agent_id": agentID},
	})
}
