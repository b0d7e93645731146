package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/match"
	"github.com/stemsi/signquest-backend/internal/middleware"
	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/realtime"
	"github.com/stemsi/signquest-backend/internal/response"
	"github.com/stemsi/signquest-backend/internal/service"
	"github.com/stemsi/signquest-backend/internal/sign"
	ws "github.com/stemsi/signquest-backend/internal/websocket"
)

var errNoAnswer = errors.New("answer or confidences required")

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams a multiplayer match to one player.
type WSHandler struct {
	roomService   *service.RoomService
	relayService  *service.RelayService
	signThreshold float32
	log           zerolog.Logger
	upgrader      websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	roomService *service.RoomService,
	relayService *service.RelayService,
	signThreshold float32,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		roomService:   roomService,
		relayService:  relayService,
		signThreshold: signThreshold,
		log:           log.With().Str("component", "ws_handler").Logger(),
		upgrader:      buildUpgrader(allowedOrigins),
	}
}

// matchConn is the state of one connected player.
type matchConn struct {
	conn    *websocket.Conn
	code    string
	player  string
	name    string
	tracker *match.Tracker
	out     chan interface{}
	log     zerolog.Logger
}

// MatchStream godoc
// WS /ws/v1/rooms/:code/stream?token=...
// Replays the room log into a fresh score tracker, then relays live messages,
// room changes and the player's own answer submissions.
func (h *WSHandler) MatchStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	code := c.Param("code")
	room, err := h.roomService.Get(c.Request.Context(), code)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if !room.IsHost(claims.UID) && room.JoinerID != claims.UID {
		response.FailCode(c, response.ErrNotInRoom)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mc := &matchConn{
		conn:    conn,
		code:    code,
		player:  claims.UID,
		name:    claims.DisplayName,
		tracker: match.NewTracker(claims.UID, &room),
		out:     make(chan interface{}, 32),
		log:     h.log.With().Str("room", code).Str("player", claims.UID).Logger(),
	}
	mc.log.Info().Msg("Player connected")

	backlog, err := h.relayService.History(ctx, code)
	if err != nil {
		mc.log.Error().Err(err).Msg("Load room history failed")
		ws.WriteError(conn, "history unavailable")
		return
	}
	for _, err := range mc.tracker.Replay(backlog) {
		mc.log.Warn().Err(err).Msg("Dropped malformed history entry")
	}
	lastID := realtime.StartID
	if len(backlog) > 0 {
		lastID = backlog[len(backlog)-1].ID
	}

	if err := ws.WriteTyped(conn, ws.StateEvent{Event: ws.EventState, State: mc.tracker.View()}); err != nil {
		return
	}

	events, err := h.roomService.Watch(ctx, code)
	if err != nil {
		mc.log.Warn().Err(err).Msg("Room watch unavailable")
	}
	msgs := h.relayService.ListenFrom(ctx, code, lastID)

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.writeLoop(ctx, cancel, mc, msgs, events)
	}()

	h.readLoop(ctx, mc)
	cancel()
	<-done
	mc.log.Info().Msg("Player disconnected")
}

// writeLoop owns every write on the connection.
func (h *WSHandler) writeLoop(
	ctx context.Context,
	cancel context.CancelFunc,
	mc *matchConn,
	msgs <-chan model.GameMessage,
	events <-chan model.RoomEvent,
) {
	ping := time.NewTicker(ws.PingPeriod)
	defer ping.Stop()
	defer mc.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case v := <-mc.out:
			if err := ws.WriteTyped(mc.conn, v); err != nil {
				cancel()
				return
			}

		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := ws.WriteTyped(mc.conn, ws.MessageEvent{Event: ws.EventMessage, Message: msg}); err != nil {
				cancel()
				return
			}
			changed, err := mc.tracker.Apply(msg)
			if err != nil {
				mc.log.Warn().Err(err).Str("message", msg.ID).Msg("Dropped malformed message")
				continue
			}
			if changed {
				if err := ws.WriteTyped(mc.conn, ws.StateEvent{Event: ws.EventState, State: mc.tracker.View()}); err != nil {
					cancel()
					return
				}
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := ws.WriteTyped(mc.conn, ws.RoomEvent{Event: ws.EventRoom, Kind: ev.Kind, Room: ev.Room}); err != nil {
				cancel()
				return
			}
			if ev.Kind == model.RoomRemoved {
				_ = mc.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed"),
					time.Now().Add(time.Second))
				cancel()
				return
			}

		case <-ping.C:
			if err := ws.WritePing(mc.conn); err != nil {
				cancel()
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(ctx context.Context, mc *matchConn) {
	ws.PrepareRead(mc.conn)

	for {
		data, err := ws.ReadRaw(mc.conn)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				mc.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				mc.log.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			mc.log.Warn().Err(err).Msg("Malformed frame")
			h.send(ctx, mc, ws.ErrorResponse{Event: ws.EventError, Error: "malformed frame"})
			continue
		}

		switch env.Action {
		case ws.ActionSubmitAnswer:
			h.handleSubmitAnswer(ctx, mc, data)
		case ws.ActionPing:
			h.send(ctx, mc, ws.PongResponse{Event: ws.EventPong})
		default:
			mc.log.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			h.send(ctx, mc, ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(env.Action)})
		}
	}
}

// handleSubmitAnswer credits the answer locally, then relays it to the room.
func (h *WSHandler) handleSubmitAnswer(ctx context.Context, mc *matchConn, data []byte) {
	var req ws.SubmitAnswerRequest
	if err := json.Unmarshal(data, &req); err != nil {
		mc.log.Warn().Err(err).Msg("Malformed submit_answer")
		h.send(ctx, mc, ws.ErrorResponse{Event: ws.EventError, Error: "malformed submit_answer"})
		return
	}

	letter, err := h.resolveAnswer(req)
	if err != nil {
		h.send(ctx, mc, ws.ErrorResponse{Event: ws.EventError, Error: err.Error()})
		return
	}

	mc.tracker.SubmitOwn(letter, req.IsCorrect)

	_, err = h.relayService.SubmitAnswer(ctx, mc.code, model.PlayerAnswer{
		PlayerID:       mc.player,
		PlayerName:     mc.name,
		Answer:         letter,
		IsCorrect:      req.IsCorrect,
		ResponseTimeMs: req.ResponseTimeMs,
		Timestamp:      time.Now().UnixMilli(),
	})
	if err != nil {
		mc.log.Error().Err(err).Msg("Relay answer failed")
		h.send(ctx, mc, ws.ErrorResponse{Event: ws.EventError, Error: "answer not delivered"})
	}

	h.send(ctx, mc, ws.StateEvent{Event: ws.EventState, State: mc.tracker.View()})
}

// resolveAnswer prefers the letter the client sent and otherwise reduces the
// classifier vector. An unrecognised vector yields an empty answer.
func (h *WSHandler) resolveAnswer(req ws.SubmitAnswerRequest) (string, error) {
	if letter := sign.Normalize(req.Answer); letter != "" {
		return letter, nil
	}
	if len(req.Confidences) == 0 {
		return "", errNoAnswer
	}
	pred, ok, err := sign.TopLetter(req.Confidences, h.signThreshold)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return pred.Letter, nil
}

func (h *WSHandler) send(ctx context.Context, mc *matchConn, v interface{}) {
	select {
	case mc.out <- v:
	case <-ctx.Done():
	}
}
