package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/middleware"
	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/response"
	"github.com/stemsi/signquest-backend/internal/service"
	"github.com/stemsi/signquest-backend/internal/sign"
	"github.com/stemsi/signquest-backend/internal/validator"
)

// StudentHandler handles the signed-in student's own progress endpoints.
type StudentHandler struct {
	profileService  *service.ProfileService
	progressService *service.ProgressService
	signThreshold   float32
	log             zerolog.Logger
}

// NewStudentHandler creates a new StudentHandler.
func NewStudentHandler(
	profileService *service.ProfileService,
	progressService *service.ProgressService,
	signThreshold float32,
	log zerolog.Logger,
) *StudentHandler {
	return &StudentHandler{
		profileService:  profileService,
		progressService: progressService,
		signThreshold:   signThreshold,
		log:             log.With().Str("component", "student_handler").Logger(),
	}
}

// GetProfile godoc
// GET /api/v1/student/profile
func (h *StudentHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	profile, err := h.profileService.Get(c.Request.Context(), claims.Username)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"profile": profile})
}

// SubmitProgress godoc
// POST /api/v1/student/progress
// Folds one completed session into the student's profile and returns what it earned.
func (h *StudentHandler) SubmitProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SessionResult
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	update, err := h.progressService.UpdateProgress(c.Request.Context(), claims.Username, req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, update)
}

// GetAchievements godoc
// GET /api/v1/student/achievements
// Returns the full catalogue with the student's unlocked flags.
func (h *StudentHandler) GetAchievements(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	catalog, err := h.profileService.Achievements(c.Request.Context(), claims.Username)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"achievements": catalog})
}

// GetHistory godoc
// GET /api/v1/student/history?limit=20
func (h *StudentHandler) GetHistory(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	sessions, err := h.profileService.History(c.Request.Context(), claims.UID, limit)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	if sessions == nil {
		sessions = []model.SessionRecord{}
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": sessions})
}

// GetLeaderboard godoc
// GET /api/v1/student/leaderboard?limit=10
func (h *StudentHandler) GetLeaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	entries, err := h.profileService.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"leaderboard": entries})
}

// CheckSign godoc
// POST /api/v1/student/signs/check
// Reduces a classifier confidence vector to its top letter and compares it
// with the target.
func (h *StudentHandler) CheckSign(c *gin.Context) {
	var req model.SignCheckRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	pred, ok, err := sign.TopLetter(req.Confidences, h.signThreshold)
	if err != nil {
		if errors.Is(err, sign.ErrVectorLength) {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{"confidences": err.Error()})
			return
		}
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, model.SignCheckResponse{
		Letter:     pred.Letter,
		Confidence: pred.Confidence,
		Recognized: ok,
		Matched:    ok && pred.Letter == sign.Normalize(req.Target),
	})
}
