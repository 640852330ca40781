package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"qaforum/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Max connections per signed-in user
	maxConnsPerUser = 12
	// Max total connections, anonymous viewers included
	maxTotalConns = 10000
	// Max explicit group subscriptions per connection
	maxGroupsPerClient = 64
)

var (
	ErrServerConnLimit = errors.New("server connection limit reached")
	ErrUserConnLimit   = errors.New("user connection limit reached")
	ErrHubClosed       = errors.New("hub is shut down")
	ErrForbiddenGroup  = errors.New("cannot subscribe to another user's group")
	ErrTooManyGroups   = errors.New("group subscription limit reached")
)

// Hub tracks local websocket clients and their group memberships.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	groups     map[Group]map[*Client]struct{}
	totalConns int
	closed     bool
	log        *observability.WSLogger
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		conns:  make(map[uint]map[*Client]struct{}),
		groups: make(map[Group]map[*Client]struct{}),
		log:    observability.NewWSLogger("broadcast hub"),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "broadcast hub" }

// Register adds a connection. Signed-in users join their personal group
// automatically; userID 0 registers an anonymous viewer.
func (h *Hub) Register(userID uint, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, ErrServerConnLimit
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}
	if userID != 0 && len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, ErrUserConnLimit
	}

	client := NewClient(h, conn, userID)
	client.IncomingHandler = h.handleInbound
	m[client] = struct{}{}
	h.totalConns++
	if userID != 0 {
		h.joinLocked(client, UserGroup(userID))
	}
	total := h.totalConns
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.log.LogConnect(context.Background(), userID, total)
	return client, nil
}

// UnregisterClient removes a client from every group and closes its send
// buffer. Calling it twice is harmless.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	if removed {
		for g := range client.groups {
			h.leaveLocked(client, g)
		}
	}
	h.mu.Unlock()

	if removed {
		client.close()
		observability.WebSocketConnectionsTotal.Dec()
		h.log.LogDisconnect(context.Background(), client.UserID, "unregistered")
	}
}

// Subscribe adds client to group. Every client already receives AllGroup,
// so subscribing to it is a no-op.
func (h *Hub) Subscribe(client *Client, g Group) error {
	if g == AllGroup {
		return nil
	}
	if owner, ok := g.UserID(); ok && owner != client.UserID {
		return ErrForbiddenGroup
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[client.UserID][client]; !ok {
		return ErrHubClosed
	}
	if _, already := client.groups[g]; already {
		return nil
	}
	if len(client.groups) >= maxGroupsPerClient {
		return ErrTooManyGroups
	}
	h.joinLocked(client, g)
	return nil
}

// Unsubscribe removes client from group. A user cannot leave their own
// personal group.
func (h *Hub) Unsubscribe(client *Client, g Group) {
	if owner, ok := g.UserID(); ok && owner == client.UserID {
		return
	}
	h.mu.Lock()
	h.leaveLocked(client, g)
	h.mu.Unlock()
}

func (h *Hub) joinLocked(client *Client, g Group) {
	members, ok := h.groups[g]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[g] = members
	}
	members[client] = struct{}{}
	client.groups[g] = struct{}{}
	observability.WebSocketGroupSubscriptions.WithLabelValues(g.Kind()).Inc()
}

func (h *Hub) leaveLocked(client *Client, g Group) {
	members, ok := h.groups[g]
	if !ok {
		return
	}
	if _, member := members[client]; !member {
		return
	}
	delete(members, client)
	delete(client.groups, g)
	if len(members) == 0 {
		delete(h.groups, g)
	}
	observability.WebSocketGroupSubscriptions.WithLabelValues(g.Kind()).Dec()
}

// Deliver fans data out to every local member of group and returns the
// number of clients whose buffer accepted it.
func (h *Hub) Deliver(g Group, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	if g == AllGroup {
		for _, clients := range h.conns {
			for c := range clients {
				if c.TrySend(data) {
					delivered++
				}
			}
		}
		return delivered
	}
	for c := range h.groups[g] {
		if c.TrySend(data) {
			delivered++
		}
	}
	return delivered
}

// Members returns the number of local clients in group.
func (h *Hub) Members(g Group) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if g == AllGroup {
		return h.totalConns
	}
	return len(h.groups[g])
}

// Groups returns the groups a client currently belongs to.
func (h *Hub) Groups(client *Client) []Group {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Group, 0, len(client.groups))
	for g := range client.groups {
		out = append(out, g)
	}
	return out
}

// StartWiring subscribes to the Redis group channels and delivers every
// remote event to local members.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartPatternSubscriber(ctx, func(g Group, payload []byte) {
		h.Deliver(g, payload)
	})
}

// Shutdown gracefully closes all websocket connections.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	clients := make([]*Client, 0, h.totalConns)
	for _, userConns := range h.conns {
		for client := range userConns {
			clients = append(clients, client)
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.groups = make(map[Group]map[*Client]struct{})
	h.totalConns = 0
	h.mu.Unlock()

	// WritePump sends the close frame once Send is closed.
	for _, client := range clients {
		client.close()
		observability.WebSocketConnectionsTotal.Dec()
	}
	observability.WebSocketGroupSubscriptions.Reset()
	h.log.LogLifecycle(ctx, "shutdown", slog.Int("closed_connections", len(clients)))
	return nil
}

type inboundFrame struct {
	Action string `json:"action"`
	Group  string `json:"group"`
}

type controlFrame struct {
	Event string `json:"event"`
	Group Group  `json:"group,omitempty"`
	Error string `json:"error,omitempty"`
}

func (h *Hub) handleInbound(client *Client, raw []byte) {
	ctx := context.Background()

	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		client.SendJSON(ctx, controlFrame{Event: "error", Error: "malformed frame"})
		return
	}

	switch frame.Action {
	case "ping":
		client.SendJSON(ctx, controlFrame{Event: "pong"})
		return
	case "subscribe", "unsubscribe":
	default:
		client.SendJSON(ctx, controlFrame{Event: "error", Error: "unknown action"})
		return
	}

	g, err := ParseGroup(frame.Group)
	if err != nil {
		client.SendJSON(ctx, controlFrame{Event: "error", Error: err.Error()})
		return
	}

	if frame.Action == "unsubscribe" {
		h.Unsubscribe(client, g)
		h.log.LogSubscription(ctx, client.UserID, string(g), "leave")
		client.SendJSON(ctx, controlFrame{Event: "unsubscribed", Group: g})
		return
	}

	if err := h.Subscribe(client, g); err != nil {
		client.SendJSON(ctx, controlFrame{Event: "error", Group: g, Error: err.Error()})
		return
	}
	h.log.LogSubscription(ctx, client.UserID, string(g), "join")
	client.SendJSON(ctx, controlFrame{Event: "subscribed", Group: g})
}
