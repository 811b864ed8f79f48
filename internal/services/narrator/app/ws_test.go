package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/websocket"
)

type wsTestFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type wsTestAckPayload struct {
	Result struct {
		Status     string `json:"status"`
		MessageID  string `json:"message_id"`
		SequenceID int64  `json:"sequence_id"`
	} `json:"result"`
}

type wsTestMessagePayload struct {
	Message struct {
		SequenceID int64  `json:"sequence_id"`
		Kind       string `json:"kind"`
		Body       string `json:"body"`
		Actor      struct {
			ParticipantID string `json:"participant_id"`
			Name          string `json:"name"`
		} `json:"actor"`
	} `json:"message"`
}

type wsTestErrorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func dialWSWithHandler(t *testing.T, handler http.Handler, path string) *websocket.Conn {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conn, err := dialWSWithServerURL(srv.URL, path)
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func dialWSWithServerURL(httpURL string, path string) (*websocket.Conn, error) {
	wsURL := "ws" + strings.TrimPrefix(httpURL, "http") + path
	return websocket.Dial(wsURL, "", httpURL)
}

func dialTable(t *testing.T, h *tableHarness) *websocket.Conn {
	t.Helper()
	return dialWSWithHandler(t, newHandler(h.hub, h.game), "/ws")
}

func roomBodies(t *testing.T, hub *roomHub) []string {
	t.Helper()
	room, err := hub.room(defaultCampaignID)
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	bodies := make([]string, 0, len(room.messages))
	for _, msg := range room.messages {
		bodies = append(bodies, msg.Body)
	}
	return bodies
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame map[string]any) {
	t.Helper()
	if err := json.NewEncoder(conn).Encode(frame); err != nil {
		t.Fatalf("encode frame: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wsTestFrame {
	t.Helper()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	var got wsTestFrame
	if err := json.NewDecoder(conn).Decode(&got); err != nil {
		t.Fatalf("decode server frame: %v", err)
	}
	return got
}

func decodeAckPayload(t *testing.T, payload json.RawMessage) wsTestAckPayload {
	t.Helper()
	var ack wsTestAckPayload
	if err := json.Unmarshal(payload, &ack); err != nil {
		t.Fatalf("decode ack payload: %v", err)
	}
	return ack
}

func decodeMessagePayload(t *testing.T, payload json.RawMessage) wsTestMessagePayload {
	t.Helper()
	var msg wsTestMessagePayload
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("decode message payload: %v", err)
	}
	return msg
}

func decodeErrorPayload(t *testing.T, payload json.RawMessage) wsTestErrorPayload {
	t.Helper()
	var got wsTestErrorPayload
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	return got
}

func joinCampaign(t *testing.T, conn *websocket.Conn, campaignID, playerID string) {
	t.Helper()
	writeFrame(t, conn, map[string]any{
		"type":       "chat.join",
		"request_id": "req-join-1",
		"payload": map[string]any{
			"campaign_id": campaignID,
			"player_id":   playerID,
			"name":        "Aria",
		},
	})
	got := readFrame(t, conn)
	if got.Type != "chat.joined" {
		t.Fatalf("frame type = %q, want %q", got.Type, "chat.joined")
	}
	welcome := readFrame(t, conn)
	if welcome.Type != "chat.message" {
		t.Fatalf("frame type = %q, want welcome message", welcome.Type)
	}
}

func sendBody(t *testing.T, conn *websocket.Conn, clientMessageID, body string) {
	t.Helper()
	writeFrame(t, conn, map[string]any{
		"type":       "chat.send",
		"request_id": "req-" + clientMessageID,
		"payload": map[string]any{
			"client_message_id": clientMessageID,
			"body":              body,
		},
	})
}

func TestWebSocketJoinReturnsJoinedFrame(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	conn := dialTable(t, h)

	writeFrame(t, conn, map[string]any{
		"type":       "chat.join",
		"request_id": "req-join-1",
		"payload":    map[string]any{"campaign_id": "default", "player_id": "p1"},
	})

	got := readFrame(t, conn)
	if got.Type != "chat.joined" || got.RequestID != "req-join-1" {
		t.Fatalf("frame = %+v", got)
	}
	if !strings.Contains(string(got.Payload), `"player_id":"p1"`) {
		t.Fatalf("joined payload = %s", string(got.Payload))
	}
	welcome := decodeMessagePayload(t, readFrame(t, conn).Payload)
	if welcome.Message.Kind != kindSystem || !strings.Contains(welcome.Message.Body, "Welcome p1") {
		t.Fatalf("welcome = %+v", welcome.Message)
	}
}

func TestWebSocketJoinUnknownCampaignReturnsNotFound(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	conn := dialTable(t, h)

	writeFrame(t, conn, map[string]any{
		"type":       "chat.join",
		"request_id": "req-join-1",
		"payload":    map[string]any{"campaign_id": "elsewhere", "player_id": "p1"},
	})

	got := readFrame(t, conn)
	if got.Type != "chat.error" {
		t.Fatalf("frame type = %q, want chat.error", got.Type)
	}
	if code := decodeErrorPayload(t, got.Payload).Error.Code; code != "NOT_FOUND" {
		t.Fatalf("error code = %q, want NOT_FOUND", code)
	}
}

func TestWebSocketJoinRequiresPlayerID(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	conn := dialTable(t, h)

	writeFrame(t, conn, map[string]any{
		"type":    "chat.join",
		"payload": map[string]any{"campaign_id": "default"},
	})

	got := readFrame(t, conn)
	if got.Type != "chat.error" {
		t.Fatalf("frame type = %q, want chat.error", got.Type)
	}
	if msg := decodeErrorPayload(t, got.Payload).Error.Message; msg != "player_id is required" {
		t.Fatalf("error message = %q", msg)
	}
}

func TestWebSocketSendBeforeJoinReturnsForbidden(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	conn := dialTable(t, h)

	sendBody(t, conn, "c1", "hello")

	got := readFrame(t, conn)
	if got.Type != "chat.error" {
		t.Fatalf("frame type = %q, want chat.error", got.Type)
	}
	if code := decodeErrorPayload(t, got.Payload).Error.Code; code != "FORBIDDEN" {
		t.Fatalf("error code = %q, want FORBIDDEN", code)
	}
}

func TestWebSocketSendNarratesReply(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	h.seedCharacter(t, "p1")
	conn := dialTable(t, h)
	joinCampaign(t, conn, "default", "p1")

	sendBody(t, conn, "c1", "I open the door")

	ack := readFrame(t, conn)
	if ack.Type != "chat.ack" || ack.RequestID != "req-c1" {
		t.Fatalf("frame = %+v, want ack", ack)
	}
	if status := decodeAckPayload(t, ack.Payload).Result.Status; status != "ok" {
		t.Fatalf("ack status = %q", status)
	}

	echo := decodeMessagePayload(t, readFrame(t, conn).Payload)
	if echo.Message.Body != "I open the door" || echo.Message.Actor.ParticipantID != "p1" {
		t.Fatalf("echo = %+v", echo.Message)
	}

	reply := decodeMessagePayload(t, readFrame(t, conn).Payload)
	if reply.Message.Kind != kindNarration || reply.Message.Body != "The door creaks open." {
		t.Fatalf("reply = %+v", reply.Message)
	}
	if reply.Message.SequenceID <= echo.Message.SequenceID {
		t.Fatalf("reply sequence = %d, want after %d", reply.Message.SequenceID, echo.Message.SequenceID)
	}
}

func TestWebSocketDuplicateSendIsAckedOnce(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	conn := dialTable(t, h)
	joinCampaign(t, conn, "default", "p1")

	sendBody(t, conn, "c1", "!roll 1d4")
	first := decodeAckPayload(t, readFrame(t, conn).Payload)
	_ = readFrame(t, conn) // echo
	_ = readFrame(t, conn) // roll result

	sendBody(t, conn, "c1", "!roll 1d4")
	second := decodeAckPayload(t, readFrame(t, conn).Payload)
	if second.Result.MessageID != first.Result.MessageID {
		t.Fatalf("duplicate message id = %q, want %q", second.Result.MessageID, first.Result.MessageID)
	}

	h.game.wait()
	rolls := 0
	for _, body := range roomBodies(t, h.hub) {
		if strings.HasPrefix(body, "Aria rolled") {
			rolls++
		}
	}
	if rolls != 1 {
		t.Fatalf("roll results = %d, want 1", rolls)
	}
}

func TestWebSocketSendValidatesBody(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	conn := dialTable(t, h)
	joinCampaign(t, conn, "default", "p1")

	sendBody(t, conn, "c1", strings.Repeat("a", maxMessageBodyRunes+1))
	got := readFrame(t, conn)
	if got.Type != "chat.error" {
		t.Fatalf("frame type = %q, want chat.error", got.Type)
	}
	if code := decodeErrorPayload(t, got.Payload).Error.Code; code != "INVALID_ARGUMENT" {
		t.Fatalf("error code = %q", code)
	}
}

func TestWebSocketFrameRateLimitClosesConnection(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	conn := dialTable(t, h)

	for i := 0; i <= maxFramesPerSecond; i++ {
		writeFrame(t, conn, map[string]any{"type": "chat.noop"})
	}

	var last wsTestFrame
	for i := 0; i <= maxFramesPerSecond; i++ {
		last = readFrame(t, conn)
	}
	if code := decodeErrorPayload(t, last.Payload).Error.Code; code != "RESOURCE_EXHAUSTED" {
		t.Fatalf("last error code = %q, want RESOURCE_EXHAUSTED", code)
	}
}

func TestNewHandlerUpEndpoint(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/up", nil)

	newHandler(newRoomHub(defaultCampaignID), h.game).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusOK)
	}
	if strings.TrimSpace(rr.Body.String()) != "OK" {
		t.Fatalf("body = %q, want OK", rr.Body.String())
	}
}

func TestNewHandlerWSEndpointRejectsPost(t *testing.T) {
	h := newTableHarness(t, Table{}, nil)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/ws", nil)

	newHandler(newRoomHub(defaultCampaignID), h.game).ServeHTTP(rr, req)

	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status code = %d, want %d", rr.Code, http.StatusMethodNotAllowed)
	}
}
