package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Response is the standardized API response envelope.
type Response struct {
	Data       interface{} `json:"data"`
	Error      *ErrorBody  `json:"error,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Metadata   Metadata    `json:"metadata"`
}

// ErrorBody represents a structured error response.
type ErrorBody struct {
	Code    ErrCode           `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Pagination holds pagination information.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Metadata includes request tracing and timing.
type Metadata struct {
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// statusByCode is the default HTTP status for codes sent through FailCode.
var statusByCode = map[ErrCode]int{
	ErrInvalidCredentials: http.StatusUnauthorized,
	ErrTokenRequired:      http.StatusUnauthorized,
	ErrTokenInvalid:       http.StatusUnauthorized,
	ErrForbidden:          http.StatusForbidden,
	ErrStudentAccessOnly:  http.StatusForbidden,
	ErrTeacherAccessOnly:  http.StatusForbidden,
	ErrNotInRoom:          http.StatusForbidden,
	ErrNotRoomHost:        http.StatusForbidden,
	ErrValidation:         http.StatusBadRequest,
	ErrInvalidID:          http.StatusBadRequest,
	ErrInvalidPayload:     http.StatusBadRequest,
	ErrNotFound:           http.StatusNotFound,
	ErrRoomNotFound:       http.StatusNotFound,
	ErrConflict:           http.StatusConflict,
	ErrRoomFull:           http.StatusConflict,
	ErrRoomInactive:       http.StatusConflict,
	ErrRateLimitExceeded:  http.StatusTooManyRequests,
}

// StatusFor returns the default HTTP status of code.
func StatusFor(code ErrCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Success sends a successful JSON response with the given status code and data.
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{Data: data, Metadata: buildMetadata(c)})
}

// SuccessWithPagination sends a successful response with pagination metadata.
func SuccessWithPagination(c *gin.Context, statusCode int, data interface{}, pagination *Pagination) {
	c.JSON(statusCode, Response{Data: data, Pagination: pagination, Metadata: buildMetadata(c)})
}

// Fail sends an error response with an explicit status.
func Fail(c *gin.Context, statusCode int, code ErrCode) {
	c.JSON(statusCode, errorResponse(c, code, nil))
}

// FailCode sends an error response using the code's default status.
func FailCode(c *gin.Context, code ErrCode) {
	Fail(c, StatusFor(code), code)
}

// FailWithFields sends an error response with field-level validation details.
func FailWithFields(c *gin.Context, statusCode int, code ErrCode, fields map[string]string) {
	c.JSON(statusCode, errorResponse(c, code, fields))
}

// AbortFail aborts the middleware chain and sends an error response.
func AbortFail(c *gin.Context, statusCode int, code ErrCode) {
	c.AbortWithStatusJSON(statusCode, errorResponse(c, code, nil))
}

func errorResponse(c *gin.Context, code ErrCode, fields map[string]string) Response {
	return Response{
		Error:    &ErrorBody{Code: code, Message: GetMessage(code), Fields: fields},
		Metadata: buildMetadata(c),
	}
}

func buildMetadata(c *gin.Context) Metadata {
	id := c.GetString(ContextKeyRequestID)
	if id == "" {
		id = uuid.New().String()
	}
	return Metadata{
		RequestID: id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
