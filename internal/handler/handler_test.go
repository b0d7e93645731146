package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/signquest-backend/internal/config"
	"github.com/stemsi/signquest-backend/internal/middleware"
	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/realtime"
	"github.com/stemsi/signquest-backend/internal/repository"
	"github.com/stemsi/signquest-backend/internal/response"
	"github.com/stemsi/signquest-backend/internal/service"
	"github.com/stemsi/signquest-backend/internal/sign"
	"github.com/stemsi/signquest-backend/internal/validator"
	ws "github.com/stemsi/signquest-backend/internal/websocket"
)

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want response.ErrCode
	}{
		{service.ErrInvalidCredentials, response.ErrInvalidCredentials},
		{fmt.Errorf("load: %w", repository.ErrProfileNotFound), response.ErrNotFound},
		{repository.ErrDuplicateUsername, response.ErrConflict},
		{service.ErrRoomNotFound, response.ErrRoomNotFound},
		{service.ErrRoomFull, response.ErrRoomFull},
		{service.ErrRoomInactive, response.ErrRoomInactive},
		{service.ErrNotInRoom, response.ErrNotInRoom},
		{service.ErrNotRoomHost, response.ErrNotRoomHost},
		{errors.New("connection reset"), response.ErrInternal},
	}
	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.want {
			t.Errorf("errorCode(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

type matchFixture struct {
	engine *gin.Engine
	auth   *service.AuthService
	rooms  *service.RoomService
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	log := zerolog.Nop()
	auth := service.NewAuthService(&config.Config{JWTSecret: "test-secret", JWTExpiry: time.Hour})
	relay := service.NewRelayService(realtime.NewMessageLog(rdb, 100, 30*time.Minute, log))
	rooms := service.NewRoomService(realtime.NewRoomStore(rdb, log), relay, 30*time.Minute, log)

	rh := NewRoomHandler(rooms, relay, log)
	wh := NewWSHandler(rooms, relay, sign.DefaultThreshold, log, nil)

	r := gin.New()
	api := r.Group("/api/v1/rooms", middleware.RequireStudentJWT(auth))
	api.POST("", rh.CreateRoom)
	room := api.Group("/:code", middleware.RequireRoomCode("code"))
	room.GET("", rh.GetRoom)
	room.POST("/join", rh.JoinRoom)
	room.POST("/start", rh.StartGame)
	room.POST("/question", rh.ChangeQuestion)
	room.GET("/messages", rh.GetMessages)
	r.GET("/ws/v1/rooms/:code/stream", middleware.RequireStudentWSAuth(auth), middleware.RequireRoomCode("code"), wh.MatchStream)

	return &matchFixture{engine: r, auth: auth, rooms: rooms}
}

func (f *matchFixture) token(t *testing.T, uid, name string) string {
	t.Helper()
	tok, err := f.auth.GenerateStudentToken(uid, strings.ToLower(name), name)
	if err != nil {
		t.Fatalf("GenerateStudentToken() error = %v", err)
	}
	return tok
}

func (f *matchFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func errorCodeOf(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Error == nil {
		t.Fatalf("no error body in %s", w.Body.String())
	}
	return body.Error.Code
}

func TestRoomRoutes(t *testing.T) {
	f := newMatchFixture(t)
	host := f.token(t, "uid-host", "Mia")
	joiner := f.token(t, "uid-join", "Leo")

	w := f.do(t, http.MethodPost, "/api/v1/rooms", host, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Data model.CreateRoomResponse `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	code := created.Data.Room.Code
	if created.Data.PlayerID != "uid-host" || created.Data.Room.HostName != "Mia" {
		t.Fatalf("created = %+v", created.Data)
	}

	if w := f.do(t, http.MethodGet, "/api/v1/rooms/"+strings.ToLower(code), joiner, ""); w.Code != http.StatusOK {
		t.Fatalf("lower-case code lookup status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/rooms/BAD!", joiner, ""); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed code status = %d", w.Code)
	}
	if w := f.do(t, http.MethodGet, "/api/v1/rooms/ZZZZZ", joiner, ""); w.Code != http.StatusNotFound || errorCodeOf(t, w) != response.ErrRoomNotFound {
		t.Fatalf("missing room = %d %s", w.Code, w.Body.String())
	}

	if w := f.do(t, http.MethodPost, "/api/v1/rooms/"+code+"/join", joiner, ""); w.Code != http.StatusOK {
		t.Fatalf("join status = %d: %s", w.Code, w.Body.String())
	}
	third := f.token(t, "uid-3", "Zoe")
	if w := f.do(t, http.MethodPost, "/api/v1/rooms/"+code+"/join", third, ""); w.Code != http.StatusConflict || errorCodeOf(t, w) != response.ErrRoomFull {
		t.Fatalf("third join = %d %s", w.Code, w.Body.String())
	}

	if w := f.do(t, http.MethodPost, "/api/v1/rooms/"+code+"/start", joiner, ""); w.Code != http.StatusForbidden || errorCodeOf(t, w) != response.ErrNotRoomHost {
		t.Fatalf("joiner start = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodPost, "/api/v1/rooms/"+code+"/start", host, ""); w.Code != http.StatusOK {
		t.Fatalf("host start = %d %s", w.Code, w.Body.String())
	}
	if w := f.do(t, http.MethodPost, "/api/v1/rooms/"+code+"/question", host, `{"index":-1}`); w.Code != http.StatusBadRequest {
		t.Fatalf("negative index status = %d", w.Code)
	}
	if w := f.do(t, http.MethodPost, "/api/v1/rooms/"+code+"/question", host, `{"index":2}`); w.Code != http.StatusOK {
		t.Fatalf("question status = %d %s", w.Code, w.Body.String())
	}

	w = f.do(t, http.MethodGet, "/api/v1/rooms/"+code+"/messages", joiner, "")
	var log struct {
		Data struct {
			Messages []model.GameMessage `json:"messages"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &log); err != nil {
		t.Fatalf("decode messages: %v", err)
	}
	var types []model.MessageType
	for _, m := range log.Data.Messages {
		types = append(types, m.Type)
	}
	want := []model.MessageType{model.MessagePlayerJoined, model.MessageGameStart, model.MessageQuestionChange}
	if fmt.Sprint(types) != fmt.Sprint(want) {
		t.Fatalf("message types = %v, want %v", types, want)
	}

	if w := f.do(t, http.MethodPost, "/api/v1/rooms", "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create status = %d", w.Code)
	}
}

type streamEvent struct {
	Event string `json:"event"`
	State struct {
		MyScore       int `json:"my_score"`
		OpponentScore int `json:"opponent_score"`
	} `json:"state"`
	Kind string `json:"kind"`
}

func dial(t *testing.T, srv *httptest.Server, code, token string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/rooms/" + code + "/stream?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// waitFor reads events until match returns true or the deadline passes.
func waitFor(t *testing.T, conn *websocket.Conn, what string, match func(streamEvent) bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.SetReadDeadline(deadline)
	for {
		var ev streamEvent
		if err := conn.ReadJSON(&ev); err != nil {
			t.Fatalf("waiting for %s: %v", what, err)
		}
		if match(ev) {
			return
		}
	}
}

func TestMatchStream(t *testing.T) {
	f := newMatchFixture(t)
	ctx := t.Context()

	room, err := f.rooms.Create(ctx, "uid-host", "Mia")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.rooms.Join(ctx, room.Code, "uid-join", "Leo"); err != nil {
		t.Fatalf("Join() error = %v", err)
	}
	if _, err := f.rooms.Start(ctx, room.Code, "uid-host"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	srv := httptest.NewServer(f.engine)
	defer srv.Close()

	stranger := f.token(t, "uid-x", "Zed")
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/rooms/" + room.Code + "/stream?token=" + stranger
	if _, resp, err := websocket.DefaultDialer.Dial(u, nil); err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger dial should be refused with 403")
	}

	host := dial(t, srv, room.Code, f.token(t, "uid-host", "Mia"))
	waitFor(t, host, "host initial state", func(ev streamEvent) bool { return ev.Event == "state" })
	joiner := dial(t, srv, room.Code, f.token(t, "uid-join", "Leo"))
	waitFor(t, joiner, "joiner initial state", func(ev streamEvent) bool { return ev.Event == "state" })

	if err := joiner.WriteJSON(map[string]interface{}{"action": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	waitFor(t, joiner, "pong", func(ev streamEvent) bool { return ev.Event == "pong" })

	if err := joiner.WriteJSON(map[string]interface{}{
		"action": "submit_answer", "answer": "b", "is_correct": true, "response_time_ms": 900,
	}); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	waitFor(t, joiner, "own credit", func(ev streamEvent) bool {
		return ev.Event == "state" && ev.State.MyScore == 10
	})
	waitFor(t, host, "opponent credit", func(ev streamEvent) bool {
		return ev.Event == "state" && ev.State.OpponentScore == 10
	})

	// A malformed frame is reported but keeps the connection open.
	if err := joiner.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write garbage: %v", err)
	}
	waitFor(t, joiner, "error event", func(ev streamEvent) bool { return ev.Event == "error" })

	if err := f.rooms.Leave(ctx, room.Code, "uid-host", "Mia"); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	waitFor(t, joiner, "room removal", func(ev streamEvent) bool {
		return ev.Event == "room" && ev.Kind == string(model.RoomRemoved)
	})
}

func TestResolveAnswer(t *testing.T) {
	h := &WSHandler{signThreshold: sign.DefaultThreshold}

	vec := make([]float32, 26)
	vec[2] = 0.9
	tests := []struct {
		name    string
		req     string
		want    string
		wantErr bool
	}{
		{"letter wins", `{"answer":" c ","confidences":[]}`, "C", false},
		{"vector", fmt.Sprintf(`{"confidences":%s}`, mustJSON(vec)), "C", false},
		{"weak vector", fmt.Sprintf(`{"confidences":%s}`, mustJSON(make([]float32, 26))), "", false},
		{"short vector", `{"confidences":[0.9]}`, "", true},
		{"nothing", `{}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req ws.SubmitAnswerRequest
			if err := json.Unmarshal([]byte(tt.req), &req); err != nil {
				t.Fatal(err)
			}
			got, err := h.resolveAnswer(req)
			if (err != nil) != tt.wantErr || got != tt.want {
				t.Fatalf("resolveAnswer() = %q, %v", got, err)
			}
		})
	}
}

func mustJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
