package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Decision struct {
	Redirect bool
	Location string
}

// GuardPaths names the pages the route guard knows about.
type GuardPaths struct {
	CookieName    string
	LoginPath     string
	DashboardPath string
}

var DefaultGuardPaths = GuardPaths{
	CookieName:    "token",
	LoginPath:     "/login",
	DashboardPath: "/dashboard",
}

// DecideRedirect sends holders of a session cookie away from the login page.
// Only the presence of the cookie is checked, not its signature.
func DecideRedirect(path string, sessionCookiePresent bool) Decision {
	return DefaultGuardPaths.Decide(path, sessionCookiePresent)
}

func (p GuardPaths) Decide(path string, sessionCookiePresent bool) Decision {
	if sessionCookiePresent && path == p.LoginPath {
		return Decision{Redirect: true, Location: p.DashboardPath}
	}
	return Decision{}
}

func RouteGuard(paths GuardPaths) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Cookie(paths.CookieName)
		decision := paths.Decide(c.Request.URL.Path, err == nil && cookie != "")
		if decision.Redirect {
			c.Redirect(http.StatusTemporaryRedirect, decision.Location)
			c.Abort()
			return
		}
		c.Next()
	}
}
