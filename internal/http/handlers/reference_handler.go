package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tradeflow/internal/auth"
	"tradeflow/internal/reference"
	"tradeflow/internal/store"
)

// ListSecurities searches by ticker or name with ?q; ?unresolved=true returns only
// temporary securities still waiting for an IVP identifier.
func ListSecurities(svc *reference.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.SecurityFilter{
			Query:          strings.TrimSpace(c.Query("q")),
			UnresolvedOnly: queryBool(c, "unresolved"),
		}
		limit, ok := queryInt64(c, "limit")
		if !ok {
			return
		}
		f.Limit = int(limit)
		list, err := svc.Securities(c.Request.Context(), auth.ActorID(c), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"securities": list})
	}
}

func GetSecurity(svc *reference.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		sec, err := svc.Security(c.Request.Context(), auth.ActorID(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"security": sec})
	}
}

func CreateTemporarySecurity(svc *reference.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in reference.TemporarySecurity
		if !bindJSON(c, &in, false) {
			return
		}
		sec, err := svc.CreateTemporarySecurity(c.Request.Context(), auth.ActorID(c), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"security": sec})
	}
}

func ResolveSecurity(svc *reference.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var r reference.Resolution
		if !bindJSON(c, &r, false) {
			return
		}
		sec, err := svc.ResolveSecurity(c.Request.Context(), auth.ActorID(c), id, r)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"security": sec})
	}
}

func ListFunds(svc *reference.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		funds, err := svc.Funds(c.Request.Context(), auth.ActorID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"funds": funds})
	}
}

func ListStrategies(svc *reference.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := svc.Strategies(c.Request.Context(), auth.ActorID(c))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"strategies": list})
	}
}
