package bus

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func dialTestHub(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func wsSend(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	msg, _ := json.Marshal(inboundMsg{Event: event, Payload: raw})
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatalf("write %s: %v", event, err)
	}
}

func wsRead(t *testing.T, conn *websocket.Conn) outboundMsg {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg outboundMsg
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func TestHubDeliversRoomEvents(t *testing.T) {
	h := NewHub(log.NewNopLogger(), Handlers{
		JoinSync: func(room string) (string, any) {
			return "sync", map[string]string{"room": room}
		},
	})
	conn := dialTestHub(t, h)

	wsSend(t, conn, "join", roomPayload{Room: "match:9"})
	if msg := wsRead(t, conn); msg.Event != "sync" || msg.Room != "match:9" {
		t.Fatalf("after join got %+v", msg)
	}

	// Traffic for other rooms must not reach this client.
	h.Broadcast("match:8", "frame", map[string]int{"tick": 1})
	h.Broadcast("match:9", "frame", map[string]int{"tick": 2})
	msg := wsRead(t, conn)
	if msg.Event != "frame" || msg.Room != "match:9" {
		t.Fatalf("got %+v", msg)
	}

	wsSend(t, conn, "leave", roomPayload{Room: "match:9"})
	wsSend(t, conn, "join", roomPayload{Room: "lobby:main"})
	if msg := wsRead(t, conn); msg.Room != "lobby:main" {
		t.Fatalf("after rejoin got %+v", msg)
	}
	h.Broadcast("match:9", "frame", map[string]int{"tick": 3})
	h.Broadcast("lobby:main", "announce", nil)
	if msg := wsRead(t, conn); msg.Event != "announce" {
		t.Fatalf("after leave got %+v", msg)
	}
}

func TestHubRejectsBadRoom(t *testing.T) {
	h := NewHub(log.NewNopLogger(), Handlers{})
	conn := dialTestHub(t, h)

	wsSend(t, conn, "join", roomPayload{Room: "casino:1"})
	if msg := wsRead(t, conn); msg.Event != "error" {
		t.Fatalf("got %+v, want error", msg)
	}
	wsSend(t, conn, "explode", nil)
	if msg := wsRead(t, conn); msg.Event != "error" {
		t.Fatalf("got %+v, want error", msg)
	}
}

func TestHubDispatchesAgentTraffic(t *testing.T) {
	hello := make(chan string, 1)
	actions := make(chan AgentAction, 1)
	h := NewHub(log.NewNopLogger(), Handlers{
		AgentHello: func(address string, pubKey []byte) error {
			hello <- address
			return nil
		},
		AgentAction: func(act AgentAction) error {
			actions <- act
			return nil
		},
	})
	conn := dialTestHub(t, h)

	wsSend(t, conn, "agent_hello", helloPayload{Address: "0xabc", PubKey: []byte{1, 2, 3}})
	select {
	case addr := <-hello:
		if addr != "0xabc" {
			t.Fatalf("hello address = %q", addr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent_hello never dispatched")
	}

	wsSend(t, conn, "agent_action", AgentAction{MatchID: 3, Address: "0xabc", Direction: "up", Tick: 40})
	select {
	case act := <-actions:
		if act.MatchID != 3 || act.Direction != "up" || act.Tick != 40 {
			t.Fatalf("action = %+v", act)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("agent_action never dispatched")
	}
}
