package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/middleware"
	"github.com/stemsi/signquest-backend/internal/response"
	"github.com/stemsi/signquest-backend/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TeacherHandler handles class management for the signed-in teacher.
type TeacherHandler struct {
	teacherService *service.TeacherService
	log            zerolog.Logger
}

// NewTeacherHandler creates a new TeacherHandler.
func NewTeacherHandler(teacherService *service.TeacherService, log zerolog.Logger) *TeacherHandler {
	return &TeacherHandler{
		teacherService: teacherService,
		log:            log.With().Str("component", "teacher_handler").Logger(),
	}
}

// ListStudents godoc
// GET /api/v1/teacher/students
func (h *TeacherHandler) ListStudents(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	students, err := h.teacherService.ListStudents(c.Request.Context(), claims.TeacherID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"students": students})
}

// RemoveStudent godoc
// DELETE /api/v1/teacher/students/:username
func (h *TeacherHandler) RemoveStudent(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	if err := h.teacherService.RemoveStudent(c.Request.Context(), claims.TeacherID, c.Param("username")); err != nil {
		fail(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{})
}

// ExportProgress godoc
// GET /api/v1/teacher/students/export
// Streams the class progress workbook as an attachment.
func (h *TeacherHandler) ExportProgress(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var buf bytes.Buffer
	if err := h.teacherService.ExportProgress(c.Request.Context(), claims.TeacherID, &buf); err != nil {
		fail(c, h.log, err)
		return
	}

	filename := fmt.Sprintf("class-progress-%s.xlsx", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
