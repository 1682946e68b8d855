package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"luna-backend/internal/middleware"
)

// resolveUserID reconciles a client-supplied userId with the verified token, if any.
// Without a token the supplied value is used as is. It writes a 403 and returns false
// when the two disagree.
func resolveUserID(c *gin.Context, supplied string) (string, bool) {
	authed := c.GetString(middleware.UserIDKey)
	switch {
	case authed == "":
		return supplied, true
	case supplied == "" || supplied == authed:
		return authed, true
	default:
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "userId does not match the authenticated user"})
		return "", false
	}
}
