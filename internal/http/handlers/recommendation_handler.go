package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeflow/internal/auth"
	"tradeflow/internal/models"
	"tradeflow/internal/store"
	"tradeflow/internal/workflow"
)

// ListRecommendations supports ?analyst_id, ?security_id, ?status, ?drafts,
// ?after_id and ?limit. Results are newest first; next_cursor is set when the
// page is full.
func ListRecommendations(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		f := store.RecommendationFilter{
			Status:    models.RecommendationStatus(c.Query("status")),
			DraftOnly: queryBool(c, "drafts"),
		}
		var ok bool
		if f.AnalystID, ok = queryInt64(c, "analyst_id"); !ok {
			return
		}
		if f.SecurityID, ok = queryInt64(c, "security_id"); !ok {
			return
		}
		if f.AfterID, ok = queryInt64(c, "after_id"); !ok {
			return
		}
		limit, ok := queryInt64(c, "limit")
		if !ok {
			return
		}
		f.Limit = int(limit)

		recs, err := svc.List(c.Request.Context(), auth.ActorID(c), f)
		if err != nil {
			writeError(c, err)
			return
		}
		var next *int64
		if f.Limit > 0 && len(recs) == f.Limit {
			id := recs[len(recs)-1].ID
			next = &id
		}
		c.JSON(http.StatusOK, gin.H{"recommendations": recs, "next_cursor": next})
	}
}

func CreateRecommendation(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in workflow.CreateInput
		if !bindJSON(c, &in, false) {
			return
		}
		rec, err := svc.Create(c.Request.Context(), auth.ActorID(c), in)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"recommendation": rec})
	}
}

func GetRecommendation(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		rec, err := svc.Get(c.Request.Context(), auth.ActorID(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recommendation": rec})
	}
}

func UpdateRecommendation(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var p workflow.Patch
		if !bindJSON(c, &p, false) {
			return
		}
		rec, err := svc.Update(c.Request.Context(), auth.ActorID(c), id, p)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recommendation": rec})
	}
}

// SubmitRecommendation proposes a draft. An optional {"fund_ids": [...]} body
// replaces the targeted funds first.
func SubmitRecommendation(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input struct {
			FundIDs []int64 `json:"fund_ids"`
		}
		if !bindJSON(c, &input, true) {
			return
		}
		rec, err := svc.Submit(c.Request.Context(), auth.ActorID(c), id, input.FundIDs)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recommendation": rec})
	}
}

func ApproveRecommendation(svc *workflow.Service) gin.HandlerFunc {
	return decide(svc.Approve)
}

func RejectRecommendation(svc *workflow.Service) gin.HandlerFunc {
	return decide(svc.Reject)
}

type decisionFunc func(ctx context.Context, actorID, id int64, d workflow.Decision) (*models.TradeRecommendation, error)

func decide(fn decisionFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var d workflow.Decision
		if !bindJSON(c, &d, true) {
			return
		}
		rec, err := fn(c.Request.Context(), auth.ActorID(c), id, d)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"recommendation": rec})
	}
}

func DeleteRecommendation(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		if err := svc.Delete(c.Request.Context(), auth.ActorID(c), id); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func RecommendationHistory(svc *workflow.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		rows, err := svc.History(c.Request.Context(), auth.ActorID(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"history": rows})
	}
}
