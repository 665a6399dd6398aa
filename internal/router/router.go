package router

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/bridge"
	"github.com/CT14090/meal-plan-verification/internal/config"
	"github.com/CT14090/meal-plan-verification/internal/handler"
	"github.com/CT14090/meal-plan-verification/internal/infra"
	"github.com/CT14090/meal-plan-verification/internal/middleware"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/scan"
	"github.com/CT14090/meal-plan-verification/internal/service"
)

// Deps is everything the HTTP surface needs. Redis and Breaker may be nil.
type Deps struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Breaker  *infra.CircuitBreaker
	Bridge   *bridge.Bridge
	Debounce *scan.Stations

	Resolver service.ResolverService
	Ledger   service.LedgerService
	Admin    service.AdminService
	Auth     service.AuthService
}

// New returns a configured Gin engine. ctx bounds the rate limiters'
// purge loops.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	apiLimiter := middleware.NewRateLimiter("api", 1000, time.Minute)
	loginLimiter := middleware.NewRateLimiter("login", 20, time.Minute)
	apiLimiter.StartPurge(ctx, 5*time.Minute)
	loginLimiter.StartPurge(ctx, 5*time.Minute)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOrigin))
	r.Use(middleware.ErrorHandler())
	r.Use(apiLimiter.Middleware())

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(d.Auth)
	scanH := handler.NewScanHandler(d.Resolver, d.Debounce, cfg.StationID)
	decisionsH := handler.NewDecisionsHandler(d.Ledger, cfg.StationID)
	posH := handler.NewPOSHandler(d.Bridge)
	adminH := handler.NewAdminHandler(d.Admin)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(d.DB, d.Redis, d.Breaker))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", loginLimiter.Middleware(), authH.Login)
	}

	// Point-of-sale terminal: reads the station slot without a token
	pos := r.Group("/v1/pos/:station")
	{
		pos.GET("/lookup", posH.Lookup)
		pos.DELETE("/lookup", posH.Clear)
	}

	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		station := v1.Group("", middleware.RequireRole(model.RoleCashier, model.RoleAdmin))
		{
			station.POST("/scan", scanH.Scan)
			station.POST("/lookup", scanH.Lookup)
			station.GET("/stations/:station/recent", scanH.Recent)
			station.POST("/decisions", decisionsH.Decide)
		}

		admin := v1.Group("/admin", middleware.RequireRole(model.RoleAdmin))
		{
			admin.POST("/students", adminH.AddStudent)
			admin.GET("/students", adminH.ListStudents)
			admin.GET("/students/export", adminH.ExportStudents)
			admin.PUT("/students/:id", adminH.UpdateStudent)
			admin.DELETE("/students/:id", adminH.DeactivateStudent)
			admin.GET("/transactions", adminH.ListTransactions)
			admin.GET("/stats/today", adminH.TodayStats)
			admin.POST("/reset", adminH.Reset)
			admin.POST("/rotate-key", adminH.RotateKey)
			admin.POST("/cashiers", authH.CreateCashier)
			admin.GET("/cashiers", authH.ListCashiers)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
