package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/infra"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// Health reports store, Redis and sheets breaker status. rdb and cb may be
// nil when those are not configured. Only the store is required for 200.
func Health(db *gorm.DB, rdb *redis.Client, cb *infra.CircuitBreaker) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		resp := dto.HealthResponse{Status: "ok", Version: Version}

		sqlDB, err := db.DB()
		resp.Database = err == nil && sqlDB.PingContext(ctx) == nil

		if rdb != nil {
			ok := rdb.Ping(ctx).Err() == nil
			resp.Redis = &ok
			if !ok {
				resp.Status = "degraded"
			}
		}
		if cb != nil {
			resp.Sheets = cb.State().String()
		}

		status := http.StatusOK
		if !resp.Database {
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, resp)
	}
}
