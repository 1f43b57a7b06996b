package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"carioca/internal/game"
	"carioca/internal/session"
)

const (
	sendBuffer    = 64
	actionTimeout = 5 * time.Second
)

// WSMessage is the JSON envelope for WebSocket messages.
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// join either reattaches an existing seat (PlayerID and its Secret) or
// takes a new one (Name) while the session is still in the lobby.
type joinPayload struct {
	PlayerID string `json:"playerId"`
	Secret   string `json:"secret"`
	Name     string `json:"name"`
}

type joinedPayload struct {
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
	Secret   string `json:"secret"`
}

type actionPayload struct {
	ActionID string      `json:"actionId"`
	Action   game.Action `json:"action"`
}

type actionResultPayload struct {
	ActionID string `json:"actionId"`
	Message  string `json:"message,omitempty"`
}

type reactionPayload struct {
	Text string `json:"text"`
}

type statePayload struct {
	SessionInfo  session.Info        `json:"sessionInfo"`
	State        any                 `json:"state,omitempty"`
	ValidActions []game.Action       `json:"validActions"`
	Results      []game.PlayerResult `json:"results,omitempty"`
	Reactions    []session.Reaction  `json:"reactions"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	sess, ok := s.manager.Get(code)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin for dev
	})
	if err != nil {
		s.log.Warn("websocket accept", zap.String("session", sess.Code), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// First message must be a join
	_, data, err := conn.Read(ctx)
	if err != nil {
		return
	}
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "join" {
		sendWSError(ctx, conn, "first message must be a join")
		return
	}
	var join joinPayload
	if err := json.Unmarshal(msg.Payload, &join); err != nil {
		sendWSError(ctx, conn, "invalid join payload")
		return
	}

	playerID, secret := join.PlayerID, join.Secret
	send := make(chan []byte, sendBuffer)
	if playerID == "" {
		p, err := sess.Join(join.Name)
		if err != nil {
			sendWSError(ctx, conn, err.Error())
			return
		}
		playerID, secret = p.ID, p.Secret
	}
	if !sess.ConnectPlayer(playerID, secret, send) {
		sendWSError(ctx, conn, "invalid player credentials")
		return
	}
	log := s.log.With(zap.String("session", sess.Code), zap.String("player", playerID))
	log.Info("player connected")

	// Writer goroutine: send messages from the channel to the websocket
	go func() {
		for {
			select {
			case msg := <-send:
				if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
					cancel()
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	sendWSMsg(send, "joined", joinedPayload{Code: sess.Code, PlayerID: playerID, Secret: secret})
	// Notify all players about the roster change
	s.broadcastState(sess)

	// Reader loop: handle incoming messages
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: "invalid message"})
			continue
		}
		s.handleMessage(ctx, sess, playerID, send, msg)
	}

	// Player disconnected: keep the seat, allow reconnect
	if sess.Disconnect(playerID, send) {
		log.Info("player disconnected")
		s.broadcastState(sess)
	}
}

func (s *Server) handleMessage(ctx context.Context, sess *session.Session, playerID string, send chan []byte, msg WSMessage) {
	switch msg.Type {
	case "action":
		var ap actionPayload
		if err := json.Unmarshal(msg.Payload, &ap); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: "invalid action payload"})
			return
		}
		actx, cancel := context.WithTimeout(ctx, actionTimeout)
		err := sess.Submit(actx, playerID, ap.ActionID, ap.Action)
		cancel()
		if err != nil {
			sendWSMsg(send, "rejected", actionResultPayload{ActionID: ap.ActionID, Message: err.Error()})
			return
		}
		s.broadcastState(sess)
		sendWSMsg(send, "accepted", actionResultPayload{ActionID: ap.ActionID})

	case "start":
		if err := sess.Start(playerID); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: err.Error()})
			return
		}
		s.broadcastState(sess)

	case "reaction":
		var rp reactionPayload
		if err := json.Unmarshal(msg.Payload, &rp); err != nil {
			sendWSMsg(send, "error", errorPayload{Message: "invalid reaction payload"})
			return
		}
		reaction, err := sess.React(playerID, rp.Text)
		if err != nil {
			sendWSMsg(send, "error", errorPayload{Message: err.Error()})
			return
		}
		sess.Broadcast(encodeWSMsg("reaction", reaction))

	default:
		sendWSMsg(send, "error", errorPayload{Message: "unknown message type: " + msg.Type})
	}
}

// broadcastState sends every connected player the shared state, then their
// own hand.
func (s *Server) broadcastState(sess *session.Session) {
	for _, pid := range sess.PlayerIDs() {
		snap := sess.Snapshot(pid)
		sp := statePayload{
			SessionInfo:  snap.Session,
			State:        snap.Public,
			ValidActions: snap.ValidActions,
			Results:      snap.Results,
			Reactions:    snap.Reactions,
		}
		if sp.ValidActions == nil {
			sp.ValidActions = []game.Action{}
		}
		if sp.Reactions == nil {
			sp.Reactions = []session.Reaction{}
		}
		sess.SendTo(pid, encodeWSMsg("state", sp))
		if snap.Private != nil {
			sess.SendTo(pid, encodeWSMsg("hand", snap.Private))
		}
	}
}

func encodeWSMsg(msgType string, payload any) []byte {
	p, _ := json.Marshal(payload)
	msg, _ := json.Marshal(WSMessage{Type: msgType, Payload: p})
	return msg
}

func sendWSMsg(send chan []byte, msgType string, payload any) {
	select {
	case send <- encodeWSMsg(msgType, payload):
	default:
	}
}

func sendWSError(ctx context.Context, conn *websocket.Conn, message string) {
	conn.Write(ctx, websocket.MessageText, encodeWSMsg("error", errorPayload{Message: message}))
}
