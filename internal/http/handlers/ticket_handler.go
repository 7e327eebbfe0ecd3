package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tradeflow/internal/auth"
	"tradeflow/internal/tickets"
)

// CreateTickets creates one ticket per entry of {"tickets": [...]} for an approved
// recommendation. The batch is all or nothing.
func CreateTickets(svc *tickets.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		recID, ok := idParam(c, "id")
		if !ok {
			return
		}
		var input struct {
			Tickets []tickets.Input `json:"tickets" binding:"required"`
		}
		if !bindJSON(c, &input, false) {
			return
		}
		created, err := svc.Create(c.Request.Context(), auth.ActorID(c), recID, input.Tickets)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"tickets": created})
	}
}

func ListTickets(svc *tickets.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		recID, ok := idParam(c, "id")
		if !ok {
			return
		}
		list, err := svc.ListByRecommendation(c.Request.Context(), auth.ActorID(c), recID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tickets": list})
	}
}

func GetTicket(svc *tickets.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		t, err := svc.Get(c.Request.Context(), auth.ActorID(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ticket": t})
	}
}

func UpdateTicket(svc *tickets.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var p tickets.Patch
		if !bindJSON(c, &p, false) {
			return
		}
		t, err := svc.Update(c.Request.Context(), auth.ActorID(c), id, p)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ticket": t})
	}
}

// SubmitTicket sends the ticket to CRD. A CRD failure is not an HTTP error: the
// ticket comes back in Error status with crd_error_message set.
func SubmitTicket(svc *tickets.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		t, err := svc.Submit(c.Request.Context(), auth.ActorID(c), id)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ticket": t})
	}
}

func ReportFill(svc *tickets.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var f tickets.Fill
		if !bindJSON(c, &f, false) {
			return
		}
		t, err := svc.ReportFill(c.Request.Context(), auth.ActorID(c), id, f)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ticket": t})
	}
}

func ReportRejection(svc *tickets.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var r tickets.Report
		if !bindJSON(c, &r, true) {
			return
		}
		t, err := svc.ReportRejection(c.Request.Context(), auth.ActorID(c), id, r)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ticket": t})
	}
}

func ReportError(svc *tickets.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var r tickets.Report
		if !bindJSON(c, &r, true) {
			return
		}
		t, err := svc.ReportError(c.Request.Context(), auth.ActorID(c), id, r)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ticket": t})
	}
}

func TicketHistory(svc *tickets.Service) gin.HandlerFunc {
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
