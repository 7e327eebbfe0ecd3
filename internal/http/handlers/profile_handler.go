package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeflow/internal/auth"
	"tradeflow/internal/rbac"
)

// MeHandler returns the authenticated user with the effective permission keys.
func MeHandler(res *rbac.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := auth.ActorID(c)
		user, err := res.Actor(c.Request.Context(), actorID)
		if err != nil {
			writeError(c, err)
			return
		}
		set, err := res.Effective(c.Request.Context(), actorID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"user":        user,
			"permissions": set.Keys(),
		})
	}
}
