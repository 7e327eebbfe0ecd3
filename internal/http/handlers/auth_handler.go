package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tradeflow/internal/auth"
	"tradeflow/internal/users"
)

// LoginHandler exchanges an SSO subject for a portal token. It is only mounted in
// development, where no identity provider sits in front of the API.
func LoginHandler(svc *users.Service, j auth.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			OktaID string `json:"okta_id" binding:"required"`
		}
		if !bindJSON(c, &input, false) {
			return
		}

		user, err := svc.SignIn(c.Request.Context(), input.OktaID)
		if err != nil {
			writeError(c, err)
			return
		}

		token, expiresAt, err := j.Sign(auth.Claims{UserID: user.ID, Email: user.Email})
		if err != nil {
			writeError(c, err)
			return
		}

		c.SetCookie(auth.CookieName, token, int(time.Until(expiresAt).Seconds()), "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{
			"token":      token,
			"expires_at": expiresAt,
			"user":       user,
		})
	}
}

func LogoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetCookie(auth.CookieName, "", -1, "/", "", false, true)
		c.Status(http.StatusNoContent)
	}
}
