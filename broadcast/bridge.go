package broadcast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/model"
)

// KeyResolver looks up an API key's tenant, the only storage dependency the
// bridge needs (it never touches events directly).
type KeyResolver interface {
	LookupAPIKey(rawKey string) (*model.APIKey, bool)
}

// bridgeConn is one registered external connectionId.
type bridgeConn struct {
	tenantID string
	keyID    string
	sub      Subscription
}

// Bridge is the HTTP-callback broadcast backend used when a separate
// gateway process terminates WebSockets and relays client traffic over
// POST /ws/connect, /ws/disconnect, /ws/message.
type Bridge struct {
	mu            sync.RWMutex
	connections   map[string]*bridgeConn   // connectionId → conn
	byTenant      map[string][]string      // tenantId → []connectionId

	resolver    KeyResolver
	gatewayBase string
	client      *http.Client
	logger      zerolog.Logger
}

// NewBridge creates an HTTP-bridge broadcast backend pointed at an external
// WebSocket gateway's management endpoint.
func NewBridge(resolver KeyResolver, gatewayBase string, logger zerolog.Logger) *Bridge {
	return &Bridge{
		connections: make(map[string]*bridgeConn),
		byTenant:    make(map[string][]string),
		resolver:    resolver,
		gatewayBase: gatewayBase,
		client:      &http.Client{Timeout: 5 * time.Second},
		logger:      logger.With().Str("component", "broadcast-bridge").Logger(),
	}
}

// Connect handles POST /ws/connect.
func (b *Bridge) Connect(w http.ResponseWriter, r *http.Request) {
	connID := r.Header.Get("connectionId")
	token := r.URL.Query().Get("token")
	if connID == "" || token == "" {
		http.Error(w, "connectionId header and token query param are required", http.StatusBadRequest)
		return
	}

	key, ok := b.resolver.LookupAPIKey(token)
	if !ok {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	b.registerLocked(connID, key)
	w.WriteHeader(http.StatusOK)
}

func (b *Bridge) registerLocked(connID string, key *model.APIKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connections[connID] = &bridgeConn{tenantID: key.TenantID, keyID: key.KeyID, sub: Subscription{TenantID: key.TenantID}}
	b.byTenant[key.TenantID] = append(b.byTenant[key.TenantID], connID)
}

// Disconnect handles POST /ws/disconnect.
func (b *Bridge) Disconnect(w http.ResponseWriter, r *http.Request) {
	connID := r.Header.Get("connectionId")
	b.unregister(connID)
	w.WriteHeader(http.StatusOK)
}

func (b *Bridge) unregister(connID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.connections[connID]
	if !ok {
		return
	}
	delete(b.connections, connID)
	ids := b.byTenant[c.tenantID]
	for i, id := range ids {
		if id == connID {
			b.byTenant[c.tenantID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}

type bridgeClientMessage struct {
	Action   string              `json:"action"`
	Channels []string            `json:"channels"`
	Filters  SubscriptionFilters `json:"filters"`
	Token    string              `json:"token,omitempty"`
}

// Message handles POST /ws/message. Every call first runs a defensive
// re-registration: if connectionId is unknown (e.g. after a server
// restart) and the body carries a token, it re-authenticates and
// re-registers before dispatching the action.
func (b *Bridge) Message(w http.ResponseWriter, r *http.Request) {
	connID := r.Header.Get("connectionId")
	if connID == "" {
		http.Error(w, "connectionId header is required", http.StatusBadRequest)
		return
	}

	var msg bridgeClientMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	b.mu.RLock()
	_, known := b.connections[connID]
	b.mu.RUnlock()

	if !known {
		if msg.Token == "" {
			http.Error(w, "unknown connection and no token to re-register", http.StatusUnauthorized)
			return
		}
		key, ok := b.resolver.LookupAPIKey(msg.Token)
		if !ok {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		b.registerLocked(connID, key)
	}

	switch msg.Action {
	case "subscribe":
		b.mu.Lock()
		if c, ok := b.connections[connID]; ok {
			sub := Subscription{TenantID: c.tenantID, Filters: msg.Filters}
			for _, ch := range msg.Channels {
				switch ch {
				case "events":
					sub.Channels.Events = true
				case "agents":
					sub.Channels.Agents = true
				}
			}
			c.sub = sub
		}
		b.mu.Unlock()
	case "unsubscribe":
		b.mu.Lock()
		if c, ok := b.connections[connID]; ok {
			c.sub = Subscription{TenantID: c.tenantID}
		}
		b.mu.Unlock()
	case "ping":
		b.sendTo(connID, Message{Type: TypePong})
	}

	w.WriteHeader(http.StatusOK)
}

// sendTo posts msg to the gateway's per-connection management endpoint. A
// "gone" response (410) unregisters the connection — it means the gateway
// already dropped the client.
func (b *Bridge) sendTo(connID string, msg Message) {
	body, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error().Err(err).Msg("marshal bridge message")
		return
	}

	url := fmt.Sprintf("%s/@connections/%s", b.gatewayBase, connID)
	resp, err := b.client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		b.logger.Error().Err(err).Str("connection_id", connID).Msg("bridge outbound send failed")
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusGone {
		b.unregister(connID)
		return
	}
	if resp.StatusCode >= 400 {
		b.logger.Error().Int("status", resp.StatusCode).Str("connection_id", connID).Msg("bridge outbound send rejected")
	}
}

func (b *Bridge) snapshot(tenantID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := b.byTenant[tenantID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func (b *Bridge) connSub(connID string) (Subscription, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.connections[connID]
	if !ok {
		return Subscription{}, false
	}
	return c.sub, true
}

func (b *Bridge) deliver(tenantID string, filter func(Subscription) bool, msg Message) {
	for _, connID := range b.snapshot(tenantID) {
		sub, ok := b.connSub(connID)
		if !ok || !filter(sub) {
			continue
		}
		go b.sendTo(connID, msg)
	}
}

// BroadcastEvent implements Bus.
func (b *Bridge) BroadcastEvent(tenantID string, e model.Event) {
	b.deliver(tenantID, func(sub Subscription) bool {
		return sub.Channels.Events && sub.Filters.Matches(e)
	}, Message{Type: TypeEventNew, Data: e})
}

// BroadcastAgentStatusChanged implements Bus.
func (b *Bridge) BroadcastAgentStatusChanged(tenantID, agentID, previousStatus, newStatus string) {
	b.deliver(tenantID, func(sub Subscription) bool { return sub.Channels.Agents }, Message{
		Type: TypeAgentStatusChanged,
		Data: StatusChangedData{AgentID: agentID, PreviousStatus: previousStatus, NewStatus: newStatus},
	})
}

// BroadcastAgentStuck implements Bus.
func (b *Bridge) BroadcastAgentStuck(tenantID, agentID string, lastHeartbeat time.Time, stuckThresholdSeconds int) {
	b.deliver(tenantID, func(sub Subscription) bool { return sub.Channels.Agents }, Message{
		Type: TypeAgentStuck,
		Data: StuckData{AgentID: agentID, LastHeartbeat: lastHeartbeat.UTC().Format(time.RFC3339Nano), StuckThresholdSeconds: stuckThresholdSeconds},
	})
}

// ClearStuck implements Bus.
func (b *Bridge) ClearStuck(tenantID, agentID string) {
	b.deliver(tenantID, func(sub Subscription) bool { return sub.Channels.Agents }, Message{
		Type: TypeAgentStuckCleared,
		Data: map[string]string{"agent_id": agentID},
	})
}

// RegisterRoutes mounts /ws/connect, /ws/disconnect, /ws/message.
func (b *Bridge) RegisterRoutes(r chi.Router) {
	r.Post("/ws/connect", b.Connect)
	r.Post("/ws/disconnect", b.Disconnect)
	r.Post("/ws/message", b.Message)
}
