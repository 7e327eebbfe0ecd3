package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tradeflow/internal/apperr"
	"tradeflow/internal/audit"
	"tradeflow/internal/models"
)

const (
	ClaimsKey = "claims"
	ActorKey  = "actor_id"

	CookieName      = "token"
	RequestIDHeader = "X-Request-ID"
)

// UserLoader is the slice of the store the middleware needs.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// Middleware validates the bearer token from either the Authorization header or a
// "token" cookie, checks that the user may still act and attaches the actor id and
// request metadata used by the audit trail.
func Middleware(j JWT, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := strings.TrimSpace(c.GetHeader("Authorization"))
		if tokenStr == "" {
			if cookie, err := c.Cookie(CookieName); err == nil {
				tokenStr = "Bearer " + cookie
			}
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "missing bearer token"})
			return
		}
		if !strings.HasPrefix(tokenStr, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid authorization header"})
			return
		}
		tokenStr = strings.TrimSpace(strings.TrimPrefix(tokenStr, "Bearer "))

		claims, err := j.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "invalid or expired token"})
			return
		}

		user, err := users.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "user not found"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": string(apperr.KindInternal), "message": "user lookup failed"})
			return
		}
		if !user.Usable(time.Now()) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": string(apperr.KindPermission), "message": "account inactive or locked"})
			return
		}

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)
		ctx := audit.WithRequest(c.Request.Context(), audit.RequestMeta{
			RequestID: requestID,
			SessionID: claims.ID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Request = c.Request.WithContext(ctx)

		c.Set(ClaimsKey, &claims)
		c.Set(ActorKey, user.ID)
		c.Next()
	}
}

// ActorID returns the authenticated user id set by Middleware, or 0.
func ActorID(c *gin.Context) int64 {
	return c.GetInt64(ActorKey)
}

func ClaimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil
	}
	cl, _ := v.(*Claims)
	return cl
}
