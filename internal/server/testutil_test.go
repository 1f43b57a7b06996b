package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"carioca/internal/game"
	"carioca/internal/game/carioca"
	"carioca/internal/session"
	"carioca/internal/storage"
)

// --- Test environment ---

type testEnv struct {
	ts  *httptest.Server
	mgr *session.Manager
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	reg := game.NewRegistry()
	reg.Register(carioca.Carioca{
		Rules:   carioca.DefaultRules(),
		NewRand: func() *rand.Rand { return rand.New(rand.NewSource(7)) },
	})
	mgr := session.NewManager(reg, store, zap.NewNop())
	t.Cleanup(mgr.Close)

	ts := httptest.NewServer(New(reg, mgr, zap.NewNop()))
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, mgr: mgr}
}

// --- Context helpers ---

func timeoutCtx(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// --- REST API helpers ---

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// createSessionViaAPI creates a carioca room and returns its code and the
// host's seat.
func createSessionViaAPI(t *testing.T, ts *httptest.Server, name string) (string, joinResponse) {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/sessions", createSessionRequest{Name: name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var result joinResponse
	decodeBody(t, resp, &result)
	return result.Code, result
}

func joinViaAPI(t *testing.T, ts *httptest.Server, code, name string) joinResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/sessions/"+code+"/players", joinSessionRequest{Name: name})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var result joinResponse
	decodeBody(t, resp, &result)
	return result
}

func startViaAPI(t *testing.T, ts *httptest.Server, code string, seat joinResponse) int {
	t.Helper()
	resp := postJSON(t, ts.URL+"/api/sessions/"+code+"/start", startSessionRequest{PlayerID: seat.PlayerID, Secret: seat.Secret})
	resp.Body.Close()
	return resp.StatusCode
}

// --- WebSocket helpers ---

func wsURL(ts *httptest.Server, code string) string {
	return strings.Replace(ts.URL, "http://", "ws://", 1) + "/api/sessions/" + code + "/ws"
}

func wsDial(t *testing.T, ts *httptest.Server, code string) *websocket.Conn {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, wsURL(ts, code), nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

// wsConnect reattaches seat and drains the joined and state messages
// addressed to it.
func wsConnect(t *testing.T, ts *httptest.Server, code string, seat joinResponse) *websocket.Conn {
	t.Helper()
	ctx, cancel := timeoutCtx(t)
	defer cancel()
	conn := wsDial(t, ts, code)
	if err := sendWS(ctx, conn, "join", joinPayload{PlayerID: seat.PlayerID, Secret: seat.Secret}); err != nil {
		t.Fatalf("send join: %v", err)
	}
	joined := readJoined(t, ctx, conn)
	if joined.PlayerID != seat.PlayerID {
		t.Fatalf("joined as %s, want %s", joined.PlayerID, seat.PlayerID)
	}
	readState(t, ctx, conn)
	return conn
}

// sendWS marshals and sends a typed WebSocket message.
func sendWS(ctx context.Context, conn *websocket.Conn, msgType string, payload any) error {
	p, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg, err := json.Marshal(WSMessage{Type: msgType, Payload: p})
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, msg)
}

func mustSendWS(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	if err := sendWS(ctx, conn, msgType, payload); err != nil {
		t.Fatalf("send %s: %v", msgType, err)
	}
}

// readWS reads and unmarshals a single WebSocket message.
func readWS(ctx context.Context, conn *websocket.Conn) (WSMessage, error) {
	_, data, err := conn.Read(ctx)
	if err != nil {
		return WSMessage{}, err
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return WSMessage{}, err
	}
	return msg, nil
}

// readType reads one message and fails unless it has the given type.
func readType(t *testing.T, ctx context.Context, conn *websocket.Conn, msgType string, v any) {
	t.Helper()
	msg, err := readWS(ctx, conn)
	if err != nil {
		t.Fatalf("read %s: %v", msgType, err)
	}
	if msg.Type != msgType {
		t.Fatalf("expected %s message, got %q: %s", msgType, msg.Type, string(msg.Payload))
	}
	if v != nil {
		if err := json.Unmarshal(msg.Payload, v); err != nil {
			t.Fatalf("unmarshal %s payload: %v", msgType, err)
		}
	}
}

// stateMsg is statePayload with the carioca view decoded.
type stateMsg struct {
	SessionInfo  session.Info        `json:"sessionInfo"`
	State        *carioca.PublicView `json:"state"`
	ValidActions []game.Action       `json:"validActions"`
	Results      []game.PlayerResult `json:"results"`
	Reactions    []session.Reaction  `json:"reactions"`
}

func readJoined(t *testing.T, ctx context.Context, conn *websocket.Conn) joinedPayload {
	t.Helper()
	var jp joinedPayload
	readType(t, ctx, conn, "joined", &jp)
	return jp
}

func readState(t *testing.T, ctx context.Context, conn *websocket.Conn) stateMsg {
	t.Helper()
	var sm stateMsg
	readType(t, ctx, conn, "state", &sm)
	return sm
}

func readHand(t *testing.T, ctx context.Context, conn *websocket.Conn) carioca.PrivateView {
	t.Helper()
	var pv carioca.PrivateView
	readType(t, ctx, conn, "hand", &pv)
	return pv
}

func readError(t *testing.T, ctx context.Context, conn *websocket.Conn) string {
	t.Helper()
	var ep errorPayload
	readType(t, ctx, conn, "error", &ep)
	return ep.Message
}

// --- Game helpers ---

func actionMsg(id string, a carioca.Action) actionPayload {
	return actionPayload{ActionID: id, Action: carioca.EncodeAction(a)}
}

// startGame starts a two-player room over websockets and drains the
// resulting state and hand messages.
func startGame(t *testing.T, ctx context.Context, host, guest *websocket.Conn) (hostHand, guestHand carioca.PrivateView) {
	t.Helper()
	mustSendWS(t, ctx, host, "start", struct{}{})
	readState(t, ctx, host)
	hostHand = readHand(t, ctx, host)
	readState(t, ctx, guest)
	guestHand = readHand(t, ctx, guest)
	return hostHand, guestHand
}

func findPlayer(players []session.PlayerInfo, id string) (session.PlayerInfo, bool) {
	for _, p := range players {
		if p.ID == id {
			return p, true
		}
	}
	return session.PlayerInfo{}, false
}
