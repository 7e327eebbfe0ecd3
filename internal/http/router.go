package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradeflow/internal/auth"
	"tradeflow/internal/http/handlers"
	"tradeflow/internal/rbac"
	"tradeflow/internal/reference"
	"tradeflow/internal/store"
	"tradeflow/internal/tickets"
	"tradeflow/internal/users"
	"tradeflow/internal/workflow"
)

type Deps struct {
	Store           *store.Store
	Resolver        *rbac.Resolver
	JWT             auth.JWT
	Logger          *zap.Logger
	Recommendations *workflow.Service
	Tickets         *tickets.Service
	Reference       *reference.Service
	Users           *users.Service

	// DevLogin mounts POST /api/v1/auth/login, which trades an SSO subject for a
	// token without an identity provider.
	DevLogin bool
}

func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public routes
	if d.DevLogin {
		r.POST("/api/v1/auth/login", handlers.LoginHandler(d.Users, d.JWT))
	}
	r.POST("/api/v1/auth/logout", handlers.LogoutHandler())

	api := r.Group("/api/v1", auth.Middleware(d.JWT, d.Store))
	{
		// Current user info & permissions
		api.GET("/me", handlers.MeHandler(d.Resolver))

		// Recommendations
		api.GET("/recommendations", handlers.ListRecommendations(d.Recommendations))
		api.POST("/recommendations", handlers.CreateRecommendation(d.Recommendations))
		api.GET("/recommendations/:id", handlers.GetRecommendation(d.Recommendations))
		api.PATCH("/recommendations/:id", handlers.UpdateRecommendation(d.Recommendations))
		api.DELETE("/recommendations/:id", handlers.DeleteRecommendation(d.Recommendations))
		api.POST("/recommendations/:id/submit", handlers.SubmitRecommendation(d.Recommendations))
		api.POST("/recommendations/:id/approve", handlers.ApproveRecommendation(d.Recommendations))
		api.POST("/recommendations/:id/reject", handlers.RejectRecommendation(d.Recommendations))
		api.GET("/recommendations/:id/history", handlers.RecommendationHistory(d.Recommendations))

		// Tickets
		api.GET("/recommendations/:id/tickets", handlers.ListTickets(d.Tickets))
		api.POST("/recommendations/:id/tickets", handlers.CreateTickets(d.Tickets))
		api.GET("/tickets/:id", handlers.GetTicket(d.Tickets))
		api.PATCH("/tickets/:id", handlers.UpdateTicket(d.Tickets))
		api.POST("/tickets/:id/submit", handlers.SubmitTicket(d.Tickets))
		api.GET("/tickets/:id/history", handlers.TicketHistory(d.Tickets))

		// CRD callbacks
		api.POST("/tickets/:id/fill", handlers.ReportFill(d.Tickets))
		api.POST("/tickets/:id/reject", handlers.ReportRejection(d.Tickets))
		api.POST("/tickets/:id/error", handlers.ReportError(d.Tickets))

		// Reference data
		api.GET("/securities", handlers.ListSecurities(d.Reference))
		api.POST("/securities", handlers.CreateTemporarySecurity(d.Reference))
		api.GET("/securities/:id", handlers.GetSecurity(d.Reference))
		api.POST("/securities/:id/resolve", handlers.ResolveSecurity(d.Reference))
		api.GET("/funds", handlers.ListFunds(d.Reference))
		api.GET("/strategies", handlers.ListStrategies(d.Reference))

		// Users
		api.GET("/users", handlers.ListUsers(d.Users))
		api.POST("/users", handlers.CreateUser(d.Users))
		api.POST("/users/:id/activate", handlers.ActivateUser(d.Users))
		api.POST("/users/:id/deactivate", handlers.DeactivateUser(d.Users))
		api.POST("/users/:id/role", handlers.AssignRole(d.Users))
		api.GET("/users/:id/overrides", handlers.ListOverrides(d.Users))
		api.POST("/users/:id/overrides", handlers.GrantOverride(d.Users))
		api.DELETE("/overrides/:overrideID", handlers.RevokeOverride(d.Users))

		// Roles
		api.GET("/roles", handlers.ListRoles(d.Users))

		// Audit Trail
		api.GET("/audit", handlers.ListAudit(d.Store, d.Resolver))
	}

	return r
}
