package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/iotsim/internal/automation"
	"github.com/nerrad567/iotsim/internal/device"
	"github.com/nerrad567/iotsim/internal/infrastructure/config"
	"github.com/nerrad567/iotsim/internal/infrastructure/logging"
)

// Message types exchanged with dashboard clients.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypeSnapshot    = "snapshot"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// Channels a client can subscribe to.
const (
	// ChannelDeviceStateChanged carries every device change.
	ChannelDeviceStateChanged = "device.state_changed"

	// ChannelSimulationPass carries one summary per pass or request.
	ChannelSimulationPass = "simulation.pass"

	// ChannelDevicePrefix + device id carries the changes of one device.
	ChannelDevicePrefix = "device:"
)

// wsSendBufferSize is the per-client outbound message buffer size.
const wsSendBufferSize = 256

// WSMessage is the envelope for every message in either direction.
type WSMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	EventType string          `json:"event_type,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// StateChangedEvent is the payload of device.state_changed and device:<id> events.
type StateChangedEvent struct {
	PassID string          `json:"pass_id"`
	Source device.Source   `json:"source"`
	Device device.Snapshot `json:"device"`
	Delta  *device.Delta   `json:"delta,omitempty"`
}

// PassEvent is the payload of simulation.pass events.
type PassEvent struct {
	PassID  string        `json:"pass_id"`
	Source  device.Source `json:"source"`
	Devices []string      `json:"devices"`
}

// Hub tracks dashboard connections and fans device changes out to them.
// It is an automation.Listener.
type Hub struct {
	cfg       config.WebSocketConfig
	logger    *logging.Logger
	snapshots func() []device.Snapshot

	mu      sync.RWMutex
	clients map[*WSClient]struct{}

	dropped atomic.Uint64
}

// WSClient is one connected dashboard.
type WSClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu            sync.RWMutex
	subscriptions map[string]struct{}
	closed        bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// CORS middleware has already filtered the origin.
		return true
	},
}

// NewHub creates a hub. snapshots answers "snapshot" requests.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger, snapshots func() []device.Snapshot) *Hub {
	return &Hub{
		cfg:       cfg,
		logger:    logger,
		snapshots: snapshots,
		clients:   make(map[*WSClient]struct{}),
	}
}

// Run blocks until ctx is done, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*WSClient]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
		if c.conn != nil {
			c.conn.Close()
		}
	}
}

// Register adds a client.
func (h *Hub) Register(c *WSClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "clients", n)
}

// Unregister removes a client and closes its send channel once.
func (h *Hub) Unregister(c *WSClient) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	h.logger.Debug("websocket client disconnected", "clients", n)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were discarded because a client was slow.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// OnChange implements automation.Listener. Each change goes to the
// all-devices channel and to its device channel; the batch as a whole is
// summarised on simulation.pass.
func (h *Hub) OnChange(_ context.Context, changes []automation.Change) {
	if len(changes) == 0 {
		return
	}

	ids := make([]string, 0, len(changes))
	for _, c := range changes {
		ev := StateChangedEvent{
			PassID: c.PassID,
			Source: c.Source,
			Device: c.Snapshot,
			Delta:  c.Delta,
		}
		h.Broadcast(ChannelDeviceStateChanged, ev)
		h.Broadcast(ChannelDevicePrefix+c.Snapshot.ID, ev)
		ids = append(ids, c.Snapshot.ID)
	}

	h.Broadcast(ChannelSimulationPass, PassEvent{
		PassID:  changes[0].PassID,
		Source:  changes[0].Source,
		Devices: ids,
	})
}

// Broadcast sends an event to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeMessage(WSTypeEvent, "", channel, payload)
	if err != nil {
		h.logger.Error("encoding websocket event", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	recipients := make([]*WSClient, 0, len(h.clients))
	for c := range h.clients {
		recipients = append(recipients, c)
	}
	h.mu.RUnlock()

	for _, c := range recipients {
		if c.isSubscribed(channel) {
			c.enqueue(data)
		}
	}
}

// handleWebSocket upgrades the connection and starts the client pumps.
//
// Clients receive nothing until they subscribe, either with a message
//
//	{"type": "subscribe", "id": "1", "payload": {"channels": ["device.state_changed"]}}
//
// or up front with ?channels=a,b. {"type": "snapshot"} returns the current
// state of every device.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	c.subscribe(splitChannels(r.URL.Query().Get("channels")))

	s.hub.Register(c)

	go c.writePump()
	go c.readPump()
}

func splitChannels(raw string) []string {
	var out []string
	for _, ch := range strings.Split(raw, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

func (c *WSClient) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	keepalive := time.Duration(cfg.PingInterval+cfg.PongTimeout) * time.Second
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	//nolint:errcheck // a failed deadline surfaces as a read error
	c.conn.SetReadDeadline(time.Now().Add(keepalive))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(keepalive))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		// Browsers may not answer protocol pings; any message counts as alive.
		//nolint:errcheck // a failed deadline surfaces as a read error
		c.conn.SetReadDeadline(time.Now().Add(keepalive))
		c.handleMessage(data)
	}
}

func (c *WSClient) writePump() {
	cfg := c.hub.cfg
	writeWait := time.Duration(cfg.PongTimeout) * time.Second
	ticker := time.NewTicker(time.Duration(cfg.PingInterval) * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			//nolint:errcheck // a failed deadline surfaces as a write error
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				//nolint:errcheck // connection is going away
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			//nolint:errcheck // a failed deadline surfaces as a write error
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(WSTypeError, "", map[string]string{"message": "invalid JSON message"})
		return
	}

	switch msg.Type {
	case WSTypeSubscribe, WSTypeUnsubscribe:
		var sub WSSubscribePayload
		if err := json.Unmarshal(msg.Payload, &sub); err != nil || len(sub.Channels) == 0 {
			c.reply(WSTypeError, msg.ID, map[string]string{"message": "payload must list channels"})
			return
		}
		if msg.Type == WSTypeSubscribe {
			c.subscribe(sub.Channels)
			c.reply(WSTypeResponse, msg.ID, map[string]any{"subscribed": sub.Channels})
		} else {
			c.unsubscribe(sub.Channels)
			c.reply(WSTypeResponse, msg.ID, map[string]any{"unsubscribed": sub.Channels})
		}

	case WSTypeSnapshot:
		c.reply(WSTypeResponse, msg.ID, map[string]any{"devices": c.hub.snapshots()})

	case WSTypePing:
		c.reply(WSTypePong, msg.ID, nil)

	default:
		c.reply(WSTypeError, msg.ID, map[string]string{"message": "unknown message type: " + msg.Type})
	}
}

func (c *WSClient) subscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
}

func (c *WSClient) unsubscribe(channels []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) reply(msgType, id string, payload any) {
	data, err := encodeMessage(msgType, id, "", payload)
	if err != nil {
		c.hub.logger.Error("encoding websocket reply", "type", msgType, "error", err)
		return
	}
	c.enqueue(data)
}

// enqueue queues data without blocking. Closed clients and full buffers
// drop the message.
func (c *WSClient) enqueue(data []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.dropped.Add(1)
	}
}

// close closes the send channel once, which stops writePump.
func (c *WSClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func encodeMessage(msgType, id, eventType string, payload any) ([]byte, error) {
	msg := WSMessage{
		Type:      msgType,
		ID:        id,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}
	return json.Marshal(msg)
}
