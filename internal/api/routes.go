package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/middleware"
)

// Services are the core services behind the HTTP surface.
type Services struct {
	APIKeys  core.APIKeyService
	Activity core.ActivityService
	Alerts   core.AlertService
	Settings core.SettingsService
	Devices  core.DeviceService
	Notifier core.Notifier
	Mail     core.MailService
	Balance  core.BalanceService
	Scanner  core.ExpiringKeyScanner
	Jobs     JobRunner
}

// RouteConfig carries what the route table needs besides services.
type RouteConfig struct {
	Verifier       middleware.TokenVerifier
	SchedulerToken string
	// RateLimiter throttles the authenticated API; nil disables it.
	RateLimiter *middleware.RateLimiter
}

// SetupRoutes registers every route on router. Global middleware (logging,
// recovery, CORS, metrics) is applied by the caller.
func SetupRoutes(router *gin.Engine, svc Services, cfg RouteConfig, logger *zap.Logger) {
	authMW := middleware.AuthMiddleware(cfg.Verifier, logger)
	schedulerMW := middleware.RequireSchedulerToken(cfg.SchedulerToken)

	keyHandler := NewKeyHandler(svc.APIKeys, logger)
	activityHandler := NewActivityHandler(svc.Activity, logger)
	alertHandler := NewAlertHandler(svc.Alerts, logger)
	settingsHandler := NewSettingsHandler(svc.Settings, logger)
	deviceHandler := NewDeviceHandler(svc.Devices, logger)
	notificationHandler := NewNotificationHandler(svc.Notifier, logger)
	balanceHandler := NewBalanceHandler(svc.Balance, logger)
	smtpHandler := NewSMTPHandler(svc.Mail, logger)
	jobHandler := NewJobHandler(svc.Scanner, svc.Jobs, logger)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "CyberKey backend is healthy."})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	if cfg.RateLimiter != nil {
		apiGroup.Use(cfg.RateLimiter.Middleware())
	}

	apiGroup.POST("/check-expiring-keys", schedulerMW, jobHandler.CheckExpiringKeys)
	apiGroup.POST("/test-smtp", authMW, smtpHandler.TestSMTP)
	apiGroup.POST("/balance", authMW, balanceHandler.CheckBalance)
	apiGroup.POST("/anthropic/balance", authMW, balanceHandler.CheckCreditBalance)

	v1 := apiGroup.Group("/v1", authMW)
	{
		v1.POST("/notifications/send", notificationHandler.SendNotification)

		keys := v1.Group("/keys")
		{
			keys.POST("", keyHandler.CreateKey)
			keys.GET("", keyHandler.ListKeys)
			keys.GET("/:keyId", keyHandler.GetKey)
			keys.PUT("/:keyId", keyHandler.UpdateKey)
			keys.DELETE("/:keyId", keyHandler.DeleteKey)
			keys.PUT("/:keyId/balance", keyHandler.UpdateBalance)
			keys.POST("/:keyId/verify", keyHandler.VerifyKey)
		}

		v1.POST("/activity", activityHandler.LogActivity)
		v1.GET("/activity", activityHandler.ListActivity)

		v1.GET("/alerts", alertHandler.ListAlerts)
		v1.PATCH("/alerts/:alertId", alertHandler.UpdateAlertStatus)

		v1.GET("/settings", settingsHandler.GetSettings)
		v1.PUT("/settings", settingsHandler.UpdateSettings)
		v1.POST("/settings/reset", settingsHandler.ResetSettings)

		v1.POST("/devices", deviceHandler.RegisterDevice)
		v1.DELETE("/devices/:token", deviceHandler.UnregisterDevice)
	}

	internalGroup := router.Group("/internal", schedulerMW)
	{
		internalGroup.GET("/jobs", jobHandler.ListJobs)
		internalGroup.POST("/jobs/:name", jobHandler.RunJob)
	}

	logger.Info("API routes configured", zap.Int("routes", len(router.Routes())))
}
