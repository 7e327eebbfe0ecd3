package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tradeflow/internal/audit"
	"tradeflow/internal/auth"
	"tradeflow/internal/rbac"
	"tradeflow/internal/store"
)

func ListAudit(st *store.Store, res *rbac.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.AuditFilter{
			Table: strings.TrimSpace(c.Query("table")),
			Query: strings.TrimSpace(c.Query("q")),
		}
		if limitStr := c.Query("limit"); limitStr != "" {
			if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
				f.Limit = parsed
			}
		}
		var ok bool
		if f.AfterID, ok = queryInt64(c, "after_id"); !ok {
			return
		}
		if f.RecordID, ok = queryInt64(c, "record_id"); !ok {
			return
		}
		if f.UserID, ok = queryInt64(c, "user_id"); !ok {
			return
		}

		page, err := audit.List(c.Request.Context(), st, res, auth.ActorID(c), f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"logs":        page.Entries,
			"next_cursor": page.NextCursor,
		})
	}
}
