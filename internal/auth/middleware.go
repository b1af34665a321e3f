package auth

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"exam-service/common/httputil"

	"github.com/gin-gonic/gin"
)

type contextKey string

// IdentityKey is the context key for the authenticated caller
const IdentityKey contextKey = "identity"

const (
	CookieName = "token"
	LoginPath  = "/login"
)

// Identity is the caller resolved from the access token.
type Identity struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

// GetIdentity extracts the caller from context
func GetIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok
}

// AuthMiddleware validates the JWT cookie and stores the Identity on the request context.
// Anonymous callers are redirected to the login page.
func AuthMiddleware(issuer *TokenIssuer, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, err := c.Request.Cookie(CookieName)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "no auth cookie found", "path", c.Request.URL.Path)
			httputil.RedirectWithNotice(c, LoginPath, "Unauthorized access.")
			return
		}

		claims, err := issuer.Parse(cookie.Value)
		if err != nil {
			logger.WarnContext(c.Request.Context(), "invalid token", "error", err)
			ClearAuthCookie(c.Writer)
			httputil.RedirectWithNotice(c, LoginPath, "Session expired. Please log in again.")
			return
		}

		ctx := WithIdentity(c.Request.Context(), Identity{Username: claims.Username, Role: claims.Role})
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole lets through only callers whose role is one of roles.
func RequireRole(logger *slog.Logger, roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		id, ok := GetIdentity(c.Request.Context())
		if !ok || !allowed[id.Role] {
			logger.WarnContext(c.Request.Context(), "role not permitted",
				"path", c.Request.URL.Path, "role", id.Role)
			httputil.RedirectWithNotice(c, LoginPath, "Unauthorized access.")
			return
		}
		c.Next()
	}
}

// SetAuthCookie sets JWT token in secure HttpOnly cookie
func SetAuthCookie(w http.ResponseWriter, token string, maxAge int) {
	sameSite := http.SameSiteStrictMode
	env := os.Getenv("ENV")
	if env == "development" || env == "local" || env == "" {
		sameSite = http.SameSiteLaxMode
	}

	// Secure cookies require HTTPS
	secure := env == "production" || env == "prod"

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   secure,
		SameSite: sameSite,
		Path:     "/",
		MaxAge:   maxAge,
	})
}

// ClearAuthCookie removes the auth cookie
func ClearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
