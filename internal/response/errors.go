package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrTeacherAccessOnly ErrCode = "TEACHER_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Multiplayer ───────────────────────────────────────────────────
	ErrRoomNotFound ErrCode = "ROOM_NOT_FOUND"
	ErrRoomFull     ErrCode = "ROOM_FULL"
	ErrRoomInactive ErrCode = "ROOM_INACTIVE"
	ErrNotInRoom    ErrCode = "NOT_IN_ROOM"
	ErrNotRoomHost  ErrCode = "NOT_ROOM_HOST"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrInvalidCredentials: "Username or password is incorrect.",
	ErrTokenRequired:      "Authentication token is required.",
	ErrTokenInvalid:       "Authentication token is invalid or expired.",

	ErrForbidden:         "You do not have access to this resource.",
	ErrStudentAccessOnly: "This resource is for students only.",
	ErrTeacherAccessOnly: "This resource is for teachers only.",

	ErrValidation:     "Validation failed. Please check your input.",
	ErrInvalidID:      "Invalid ID format.",
	ErrInvalidPayload: "Invalid request payload.",

	ErrNotFound: "Resource not found.",
	ErrConflict: "Resource already exists.",

	ErrRoomNotFound: "Room not found.",
	ErrRoomFull:     "Room is full.",
	ErrRoomInactive: "Room is no longer active.",
	ErrNotInRoom:    "You are not a player in this room.",
	ErrNotRoomHost:  "Only the host can do that.",

	ErrRateLimitExceeded: "Too many requests. Please try again later.",

	ErrInternal: "Internal server error.",
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "An unexpected error occurred."
}
