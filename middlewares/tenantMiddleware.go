package middlewares

import (
	"strconv"

	"github.com/AlecsRosa/kondomanager-sub000/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationMiddleware attaches a correlation id to every request context,
// taking the caller's header when present.
func CorrelationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Header("x-correlation-id", cid)
		c.Next()
	}
}

// TenantMiddleware propagates the condominium scope and the acting user
// from headers into the request context. Routes that need a tenant check
// for it themselves; routes that create the tenant run without it.
func TenantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if condominiumId := c.GetHeader("x-condominium-id"); condominiumId != "" {
			ctx = utils.SetCondominiumIdInContext(ctx, condominiumId)
		}
		if v := c.GetHeader("x-actor-id"); v != "" {
			if actorId, err := strconv.Atoi(v); err == nil {
				ctx = utils.SetActorIdInContext(ctx, actorId)
			}
		}
		if actorName := c.GetHeader("x-actor-name"); actorName != "" {
			ctx = utils.SetActorNameInContext(ctx, actorName)
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
