package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Access int

const (
	// Gated routes require basic auth. It is the zero value so a route missing
	// from the policy is never public by accident.
	Gated Access = iota
	Public
)

// RoutePolicy maps gin route patterns (c.FullPath()) to their access level.
// Keying on the registered pattern rather than the raw request path keeps the
// table in step with route registration.
type RoutePolicy map[string]Access

type BasicCredentials struct {
	Username string
	Password string
}

const challenge = `Basic realm="Login Required"`

// AccessGate enforces policy. Unmatched requests (including 404s) are gated.
// Empty configured credentials reject every gated request.
func AccessGate(policy RoutePolicy, creds BasicCredentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		if policy[c.FullPath()] == Public {
			c.Next()
			return
		}

		username, password, ok := c.Request.BasicAuth()
		if !ok || !creds.matches(username, password) {
			slog.WarnContext(c.Request.Context(), "access denied",
				"path", c.Request.URL.Path,
				"credentials_present", ok)
			c.Header("WWW-Authenticate", challenge)
			c.String(http.StatusUnauthorized, "Authentication Required")
			c.Abort()
			return
		}

		c.Next()
	}
}

func (b BasicCredentials) matches(username, password string) bool {
	if b.Username == "" || b.Password == "" {
		return false
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(b.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(b.Password)) == 1
	return userOK && passOK
}
