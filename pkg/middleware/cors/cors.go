package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const allowedHeaders = "Content-Type, X-Requested-With, X-Request-ID, Sec-WebSocket-Protocol"

// New returns a CORS middleware for the portal client. An empty origin list
// allows every origin; the portal carries no credentials, so no
// Allow-Credentials header is sent.
func New(allowedOrigins []string) gin.HandlerFunc {
	originSet := OriginSet(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(originSet) == 0:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && Allowed(originSet, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "600")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Allowed reports whether origin is in the set. The websocket upgrader uses it
// as its CheckOrigin policy.
func Allowed(originSet map[string]struct{}, origin string) bool {
	if len(originSet) == 0 {
		return true
	}
	_, ok := originSet[strings.TrimRight(origin, "/")]
	return ok
}

// OriginSet normalises a list of origins for Allowed.
func OriginSet(origins []string) map[string]struct{} {
	set := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		set[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return set
}
