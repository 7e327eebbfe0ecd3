package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeflow/internal/auth"
	"tradeflow/internal/users"
)

// ListUsers returns portal users; ?active=true hides deactivated accounts.
func ListUsers(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), auth.ActorID(c), queryBool(c, "active"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": list})
	}
}

func CreateUser(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in users.NewUser
		if !bindJSON(c, &in, false) {
			return
		}
		user, err := svc.Create(c.Request.Context(), auth.ActorID(c), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

func ActivateUser(svc *users.Service) gin.HandlerFunc {
	return setActive(svc, true)
}

func DeactivateUser(svc *users.Service) gin.HandlerFunc {
	return setActive(svc, false)
}

func setActive(svc *users.Service, active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		user, err := svc.SetActive(c.Request.Context(), auth.ActorID(c), id, active)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

func ListOverrides(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		list, err := svc.Overrides(c.Request.Context(), auth.ActorID(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"overrides": list})
	}
}

func GrantOverride(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var g users.Grant
		if !bindJSON(c, &g, false) {
			return
		}
		override, err := svc.GrantOverride(c.Request.Context(), auth.ActorID(c), id, g)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"override": override})
	}
}

func RevokeOverride(svc *users.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "overrideID")
		if !ok {
			return
		}
		if err := svc.RevokeOverride(c.Request.Context(), auth.ActorID(c), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
