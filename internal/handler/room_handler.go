package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/middleware"
	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/response"
	"github.com/stemsi/signquest-backend/internal/service"
	"github.com/stemsi/signquest-backend/internal/validator"
)

// RoomHandler handles multiplayer room lifecycle endpoints. The player id is
// always the caller's student uid.
type RoomHandler struct {
	roomService  *service.RoomService
	relayService *service.RelayService
	log          zerolog.Logger
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(roomService *service.RoomService, relayService *service.RelayService, log zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		roomService:  roomService,
		relayService: relayService,
		log:          log.With().Str("component", "room_handler").Logger(),
	}
}

// CreateRoom godoc
// POST /api/v1/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	room, err := h.roomService.Create(c.Request.Context(), claims.UID, claims.DisplayName)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, model.CreateRoomResponse{Room: room, PlayerID: claims.UID})
}

// GetRoom godoc
// GET /api/v1/rooms/:code
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.roomService.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"room": room})
}

// JoinRoom godoc
// POST /api/v1/rooms/:code/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	room, err := h.roomService.Join(c.Request.Context(), c.Param("code"), claims.UID, claims.DisplayName)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"room": room, "player_id": claims.UID})
}

// LeaveRoom godoc
// POST /api/v1/rooms/:code/leave
// The host leaving deletes the room.
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.roomService.Leave(c.Request.Context(), c.Param("code"), claims.UID, claims.DisplayName); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// StartGame godoc
// POST /api/v1/rooms/:code/start
func (h *RoomHandler) StartGame(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	room, err := h.roomService.Start(c.Request.Context(), c.Param("code"), claims.UID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"room": room})
}

// EndGame godoc
// POST /api/v1/rooms/:code/end
func (h *RoomHandler) EndGame(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	room, err := h.roomService.End(c.Request.Context(), c.Param("code"), claims.UID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"room": room})
}

// ChangeQuestion godoc
// POST /api/v1/rooms/:code/question
func (h *RoomHandler) ChangeQuestion(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.QuestionChangeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	room, err := h.roomService.NextQuestion(c.Request.Context(), c.Param("code"), claims.UID, req.Index)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"room": room})
}

// GetMessages godoc
// GET /api/v1/rooms/:code/messages
// Returns the room's event log in ascending order.
func (h *RoomHandler) GetMessages(c *gin.Context) {
	ctx := c.Request.Context()
	code := c.Param("code")
	if _, err := h.roomService.Get(ctx, code); err != nil {
		fail(c, h.log, err)
		return
	}

	msgs, err := h.relayService.History(ctx, code)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if msgs == nil {
		msgs = []model.GameMessage{}
	}

	response.Success(c, http.StatusOK, gin.H{"messages": msgs})
}

// TrimMessages godoc
// POST /api/v1/rooms/:code/messages/trim
// Drops all but the newest log entries. Host only.
func (h *RoomHandler) TrimMessages(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	ctx := c.Request.Context()
	code := c.Param("code")
	room, err := h.roomService.Get(ctx, code)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if !room.IsHost(claims.UID) {
		response.FailCode(c, response.ErrNotRoomHost)
		return
	}

	removed, err := h.relayService.Trim(ctx, code)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"removed": removed})
}
