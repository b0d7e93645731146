package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/signquest-backend/internal/repository"
	"github.com/stemsi/signquest-backend/internal/response"
	"github.com/stemsi/signquest-backend/internal/service"
)

// errorCode maps a service or store error to its API code. Anything
// unrecognised is a transient failure and reported as internal.
func errorCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return response.ErrInvalidCredentials
	case errors.Is(err, repository.ErrProfileNotFound),
		errors.Is(err, repository.ErrTeacherNotFound):
		return response.ErrNotFound
	case errors.Is(err, repository.ErrDuplicateUsername),
		errors.Is(err, repository.ErrDuplicateEmail):
		return response.ErrConflict
	case errors.Is(err, service.ErrRoomNotFound):
		return response.ErrRoomNotFound
	case errors.Is(err, service.ErrRoomFull):
		return response.ErrRoomFull
	case errors.Is(err, service.ErrRoomInactive):
		return response.ErrRoomInactive
	case errors.Is(err, service.ErrNotInRoom):
		return response.ErrNotInRoom
	case errors.Is(err, service.ErrNotRoomHost):
		return response.ErrNotRoomHost
	default:
		return response.ErrInternal
	}
}

// fail writes err as an API error, logging the ones that are not the
// caller's fault.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	code := errorCode(err)
	if code == response.ErrInternal {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
	}
	response.FailCode(c, code)
}
