package bus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/metrics"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// sendBuffer is sized for a few seconds of 60Hz frames. A client that
	// cannot drain it gets frames dropped, and after maxConsecutiveDrops
	// in a row the connection is closed.
	sendBuffer          = 256
	maxConsecutiveDrops = 240
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handlers are the inbound callbacks a Hub dispatches client messages to.
// Nil entries reject the corresponding event.
type Handlers struct {
	// JoinSync returns the catch-up event sent to a client right after it
	// joins a room. Empty event means the room has no live state yet.
	JoinSync    func(room string) (event string, payload any)
	PlayerInput func(room, direction string) error
	AgentHello  func(address string, pubKey []byte) error
	AgentAction func(act AgentAction) error
}

type client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]struct{}

	drops  int
	closed bool
}

// Hub fans session events out to websocket spectators grouped by room and
// feeds client input back through Handlers. It implements Bus.
type Hub struct {
	logger   log.Logger
	handlers Handlers

	mu    sync.RWMutex
	rooms map[string]map[*client]struct{}
	conns map[*client]struct{}
}

func NewHub(logger log.Logger, handlers Handlers) *Hub {
	return &Hub{
		logger:   logger.With("module", "gateway"),
		handlers: handlers,
		rooms:    make(map[string]map[*client]struct{}),
		conns:    make(map[*client]struct{}),
	}
}

type outboundMsg struct {
	Room    string `json:"room,omitempty"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

type inboundMsg struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type roomPayload struct {
	Room string `json:"room"`
}

type inputPayload struct {
	Room      string `json:"room"`
	Direction string `json:"direction"`
}

type helloPayload struct {
	Address string `json:"agentAddress"`
	PubKey  []byte `json:"pubKey"`
}

// Broadcast sends an event to every client in a room. Full clients lose the
// frame rather than stalling the caller.
func (h *Hub) Broadcast(room, event string, payload any) {
	raw, err := json.Marshal(outboundMsg{Room: room, Event: event, Payload: payload})
	if err != nil {
		h.logger.Error("marshal broadcast", "room", room, "event", event, "err", err)
		return
	}

	var evict []*client
	h.mu.Lock()
	for c := range h.rooms[room] {
		select {
		case c.send <- raw:
			c.drops = 0
		default:
			c.drops++
			if c.drops >= maxConsecutiveDrops {
				evict = append(evict, c)
			}
		}
	}
	h.mu.Unlock()

	for _, c := range evict {
		h.logger.Info("dropping slow spectator", "room", room)
		h.remove(c)
	}
}

// Stats reports connected clients and live rooms, for gauges.
func (h *Hub) Stats() (clients, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns), len(h.rooms)
}

// ServeWS upgrades a gin request and runs the connection until the peer
// goes away.
func (h *Hub) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "err", err)
		return
	}
	cl := &client{
		hub:   h,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		rooms: make(map[string]struct{}),
	}
	h.mu.Lock()
	h.conns[cl] = struct{}{}
	h.mu.Unlock()
	metrics.SpectatorClients.Inc()
	h.logger.Debug("spectator connected", "remote", conn.RemoteAddr().String())

	go cl.writePump()
	cl.readPump()
}

// remove detaches a client from every room and closes its send channel.
func (h *Hub) remove(cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cl.closed {
		return
	}
	cl.closed = true
	for room := range cl.rooms {
		set := h.rooms[room]
		delete(set, cl)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.conns, cl)
	close(cl.send)
	metrics.SpectatorClients.Dec()
}

func (h *Hub) join(cl *client, room string) error {
	if _, _, err := ParseRoom(room); err != nil {
		return err
	}
	h.mu.Lock()
	if cl.closed {
		h.mu.Unlock()
		return nil
	}
	set, ok := h.rooms[room]
	if !ok {
		set = make(map[*client]struct{})
		h.rooms[room] = set
	}
	set[cl] = struct{}{}
	cl.rooms[room] = struct{}{}
	h.mu.Unlock()

	if h.handlers.JoinSync != nil {
		if event, payload := h.handlers.JoinSync(room); event != "" {
			cl.enqueue(outboundMsg{Room: room, Event: event, Payload: payload})
		}
	}
	return nil
}

func (h *Hub) leave(cl *client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := cl.rooms[room]; !ok {
		return
	}
	delete(cl.rooms, room)
	set := h.rooms[room]
	delete(set, cl)
	if len(set) == 0 {
		delete(h.rooms, room)
	}
}

// enqueue sends one message to a single client, dropping it if the client
// is backed up.
func (cl *client) enqueue(msg outboundMsg) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return
	}
	cl.hub.mu.RLock()
	defer cl.hub.mu.RUnlock()
	if cl.closed {
		return
	}
	select {
	case cl.send <- raw:
	default:
	}
}

func (cl *client) fail(detail string) {
	cl.enqueue(outboundMsg{Event: "error", Payload: map[string]string{"message": detail}})
}

func (cl *client) readPump() {
	defer func() {
		cl.hub.remove(cl)
		cl.conn.Close()
		cl.hub.logger.Debug("spectator disconnected", "remote", cl.conn.RemoteAddr().String())
	}()
	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		cl.dispatch(raw)
	}
}

func (cl *client) dispatch(raw []byte) {
	var msg inboundMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		cl.fail("malformed message")
		return
	}
	h := cl.hub
	switch msg.Event {
	case "join":
		var p roomPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			cl.fail("malformed join")
			return
		}
		if err := h.join(cl, p.Room); err != nil {
			cl.fail(err.Error())
		}
	case "leave":
		var p roomPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			cl.fail("malformed leave")
			return
		}
		h.leave(cl, p.Room)
	case "player_input":
		var p inputPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || h.handlers.PlayerInput == nil {
			cl.fail("malformed player_input")
			return
		}
		if err := h.handlers.PlayerInput(p.Room, p.Direction); err != nil {
			cl.fail(err.Error())
		}
	case "agent_hello":
		var p helloPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil || h.handlers.AgentHello == nil {
			cl.fail("malformed agent_hello")
			return
		}
		if err := h.handlers.AgentHello(p.Address, p.PubKey); err != nil {
			cl.fail(err.Error())
		}
	case "agent_action":
		var act AgentAction
		if err := json.Unmarshal(msg.Payload, &act); err != nil || h.handlers.AgentAction == nil {
			cl.fail("malformed agent_action")
			return
		}
		if err := h.handlers.AgentAction(act); err != nil {
			cl.fail(err.Error())
		}
	default:
		cl.fail("unknown event " + msg.Event)
	}
}

func (cl *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cl.conn.Close()
	}()
	for {
		select {
		case raw, ok := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				cl.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
