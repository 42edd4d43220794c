package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"careerhub/internal/pkg/jwtutil"
	"careerhub/internal/transport/http/response"
)

const ContextUserIDKey = "user_id"

const msgInvalidToken = "invalid or missing token"

// Result is the outcome of authenticating a request. When Authenticated is
// false, Status and Message describe the response to send.
type Result struct {
	Authenticated bool
	UserID        uint
	Status        int
	Message       string
}

type Authenticator struct {
	secret     string
	cookieName string
}

func NewAuthenticator(secret, cookieName string) *Authenticator {
	return &Authenticator{secret: secret, cookieName: cookieName}
}

// Authenticate verifies the bearer token of r. The session cookie is only
// consulted when no Authorization header is sent.
func (a *Authenticator) Authenticate(r *http.Request) Result {
	token, ok := a.extractToken(r)
	if !ok {
		return unauthenticated()
	}

	claims, err := jwtutil.ParseToken(a.secret, token)
	if err != nil {
		return unauthenticated()
	}
	return Result{Authenticated: true, UserID: claims.UserID, Status: http.StatusOK}
}

func (a *Authenticator) extractToken(r *http.Request) (string, bool) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if authHeader != "" {
		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			return "", false
		}
		token = strings.TrimSpace(token)
		return token, token != ""
	}

	if a.cookieName == "" {
		return "", false
	}
	cookie, err := r.Cookie(a.cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func unauthenticated() Result {
	return Result{Status: http.StatusUnauthorized, Message: msgInvalidToken}
}

func AuthJWT(auth *Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res := auth.Authenticate(c.Request)
		if !res.Authenticated {
			response.Abort(c, res.Status, response.CodeUnauthorized, res.Message)
			return
		}

		c.Set(ContextUserIDKey, res.UserID)
		c.Next()
	}
}

// UserIDFromContext returns the identity stored by AuthJWT.
func UserIDFromContext(c *gin.Context) (uint, bool) {
	v, exists := c.Get(ContextUserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok && id != 0
}
