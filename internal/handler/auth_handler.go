package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/model"
	"github.com/stemsi/signquest-backend/internal/response"
	"github.com/stemsi/signquest-backend/internal/service"
	"github.com/stemsi/signquest-backend/internal/validator"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService     *service.AuthService
	profileService  *service.ProfileService
	progressService *service.ProgressService
	teacherService  *service.TeacherService
	log             zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	authService *service.AuthService,
	profileService *service.ProfileService,
	progressService *service.ProgressService,
	teacherService *service.TeacherService,
	log zerolog.Logger,
) *AuthHandler {
	return &AuthHandler{
		authService:     authService,
		profileService:  profileService,
		progressService: progressService,
		teacherService:  teacherService,
		log:             log.With().Str("component", "auth_handler").Logger(),
	}
}

// StudentRegister godoc
// POST /api/v1/auth/student/register
// Creates a student account with zero progress.
func (h *AuthHandler) StudentRegister(c *gin.Context) {
	var req model.RegisterStudentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	profile, err := h.profileService.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"profile": profile})
}

// StudentLogin godoc
// POST /api/v1/auth/student/login
// Validates username + password, advances the login streak and returns a JWT.
func (h *AuthHandler) StudentLogin(c *gin.Context) {
	var req model.StudentLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ctx := c.Request.Context()
	profile, err := h.profileService.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	profile, err = h.progressService.RecordLogin(ctx, profile.Username)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	token, err := h.authService.GenerateStudentToken(profile.UID, profile.Username, profile.DisplayName)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, model.StudentLoginResponse{Token: token, Profile: profile})
}

// TeacherLogin godoc
// POST /api/v1/auth/teacher/login
// Validates email + password, returns a teacher JWT.
func (h *AuthHandler) TeacherLogin(c *gin.Context) {
	var req model.TeacherLoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	teacher, err := h.teacherService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	token, err := h.authService.GenerateTeacherToken(teacher.ID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, model.TeacherLoginResponse{Token: token, Teacher: *teacher})
}
