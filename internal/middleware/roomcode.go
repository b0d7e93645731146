package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/signquest-backend/internal/response"
	"github.com/stemsi/signquest-backend/internal/validator"
)

// RequireRoomCode upper-cases the room code path param in place and rejects
// anything that is not a well-formed code before it reaches Redis key builders.
func RequireRoomCode(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		code := strings.ToUpper(strings.TrimSpace(c.Param(param)))
		if !validator.IsRoomCode(code) {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		for i := range c.Params {
			if c.Params[i].Key == param {
				c.Params[i].Value = code
			}
		}
		c.Next()
	}
}
