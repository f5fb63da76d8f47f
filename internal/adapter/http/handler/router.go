package handler

import (
	"net/http"

	"driver-settlement-engine/internal/adapter/http/middleware"
	"driver-settlement-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	OrderSvc       ports.OrderService
	ReportingSvc   ports.ReportingService
	LedgerSvc      ports.LedgerService
	DebtGate       ports.DebtGate
	SigSvc         ports.SignatureService
	NonceStore     ports.NonceStore
	WebhookAuth    middleware.WebhookAuthConfig
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	MetricsHandler http.Handler // nil = /metrics not exposed
	OpenAPI        []byte       // served under /swagger
	Currency       string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Deep check: pings the ledger store and Redis.
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	docs := NewDocsHandler(deps.OpenAPI)
	r.GET("/swagger", docs.UI)
	r.GET("/swagger/spec", docs.Spec)

	rules := middleware.DefaultRateLimitRules()

	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimiter == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	orderHandler := NewOrderHandler(deps.OrderSvc, deps.ReportingSvc)
	orders := v1.Group("/orders", rl("orders"))
	{
		orders.POST("", orderHandler.Create)
		orders.GET("/:id", orderHandler.Get)
		orders.GET("/:id/settlement", orderHandler.Settlement)
		orders.POST("/:id/transition", orderHandler.Transition)
		orders.POST("/:id/assign", orderHandler.Assign)
	}

	// --- HMAC-authenticated dispatch webhooks ---
	webhookAuth := middleware.WebhookAuth(deps.WebhookAuth, deps.SigSvc, deps.NonceStore, deps.Logger)
	eventHandler := NewEventHandler(deps.OrderSvc)
	events := v1.Group("/events", webhookAuth, rl("events"))
	{
		events.POST("/order-delivered", eventHandler.OrderDelivered)
	}

	driverHandler := NewDriverHandler(deps.ReportingSvc, deps.LedgerSvc, deps.DebtGate, deps.Currency)
	drivers := v1.Group("/drivers/:id")
	{
		drivers.GET("/wallet", rl("drivers"), driverHandler.GetWallet)
		drivers.GET("/wallet/verify", rl("drivers"), driverHandler.VerifyWallet)
		drivers.GET("/eligibility", rl("drivers"), driverHandler.Eligibility)
		drivers.GET("/stats", rl("drivers"), driverHandler.GetStats)
		drivers.GET("/entries", rl("drivers"), driverHandler.ListEntries)
		drivers.POST("/entries", rl("drivers_write"), driverHandler.PostEntry)
	}

	auditHandler := NewAuditHandler(deps.ReportingSvc)
	v1.GET("/audits", rl("audits"), auditHandler.List)

	return r
}
