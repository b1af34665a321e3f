package httputil

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

const flashCookie = "flash"

// RespondWithError writes an error response in JSON format
func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// RespondWithNotice writes a user-facing notice without treating it as a failure
func RespondWithNotice(c *gin.Context, code int, message string, extra gin.H) {
	body := gin.H{"notice": message}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(code, body)
}

// RedirectWithNotice stores message as a flash notice and sends the client to location
func RedirectWithNotice(c *gin.Context, location, message string) {
	SetFlash(c.Writer, message)
	c.Redirect(http.StatusSeeOther, location)
	c.Abort()
}

// SetFlash stores a one-shot notice shown on the next page the client loads
func SetFlash(w http.ResponseWriter, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(message),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   60,
	})
}

// PopFlash returns the pending notice, if any, and clears it
func PopFlash(c *gin.Context) string {
	cookie, err := c.Request.Cookie(flashCookie)
	if err != nil {
		return ""
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:   flashCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	message, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		return ""
	}
	return message
}
