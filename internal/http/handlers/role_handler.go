package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeflow/internal/auth"
	"tradeflow/internal/users"
)

func ListRoles(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		roles, err := svc.Roles(c.Request.Context(), auth.ActorID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"roles": roles})
	}
}

// AssignRole moves a user to another role.
func AssignRole(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input struct {
			Role string `json:"role" binding:"required"`
		}
		if !bindJSON(c, &input, false) {
			return
		}
		user, err := svc.ChangeRole(c.Request.Context(), auth.ActorID(c), id, input.Role)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
