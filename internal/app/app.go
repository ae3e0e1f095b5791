// Package app assembles the CyberKey services from configuration. The server
// and the one-shot job runner share it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cyberkey/cyberkey-backend/internal/api"
	"github.com/cyberkey/cyberkey-backend/internal/config"
	"github.com/cyberkey/cyberkey-backend/internal/core"
	"github.com/cyberkey/cyberkey-backend/internal/db"
	"github.com/cyberkey/cyberkey-backend/internal/events"
	"github.com/cyberkey/cyberkey-backend/internal/firebase"
	"github.com/cyberkey/cyberkey-backend/internal/middleware"
	"github.com/cyberkey/cyberkey-backend/internal/scheduler"
	"github.com/cyberkey/cyberkey-backend/pkg/cache"
	"github.com/cyberkey/cyberkey-backend/pkg/mailer"
	"github.com/cyberkey/cyberkey-backend/pkg/messagequeue"
)

// Job names accepted by the scheduler, POST /internal/jobs/:name and cmd/jobs.
const (
	JobScanExpiringKeys  = "scan-expiring-keys"
	JobEmailExpiringKeys = "email-expiring-keys"
	JobPurgeActivityLogs = "purge-activity-logs"
	JobSweepExpiredKeys  = "sweep-expired-keys"
)

const (
	smtpDialTimeout      = 15 * time.Second
	consumerRestartDelay = 5 * time.Second
)

// Backends are the external systems the services talk to.
type Backends struct {
	Repos    *db.Repositories
	Push     core.PushGateway
	Users    core.EmailResolver
	Verifier middleware.TokenVerifier
	Cache    cache.Cache
	Queue    messagequeue.MessageQueue
}

// App is the assembled application.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Backends Backends

	Services  api.Services
	Retention core.RetentionService
	Runner    *scheduler.Runner
	Consumer  *events.Consumer

	rateLimiter  *middleware.RateLimiter
	firebase     *firebase.Clients
	restartDelay time.Duration
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// New connects to Firebase, the cache and the queue, then assembles the app.
// Redis and RabbitMQ are optional; without them in-process stand-ins are used.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	clients, err := firebase.NewClients(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase: %w", err)
	}
	repos, err := db.NewFirestoreRepositories(clients.Firestore, logger)
	if err != nil {
		clients.Close()
		return nil, err
	}

	var c cache.Cache
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Address:  cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "cyberkey:",
		}, logger)
		if err != nil {
			clients.Close()
			return nil, err
		}
		c = rc
	} else {
		logger.Info("REDIS_ADDR not set, using in-process balance cache")
		c = cache.NewMemoryCache()
	}

	var q messagequeue.MessageQueue
	if cfg.AMQPURL != "" {
		mq, err := messagequeue.NewRabbitMQService(messagequeue.RabbitMQConfig{URL: cfg.AMQPURL}, logger)
		if err != nil {
			c.Close()
			clients.Close()
			return nil, err
		}
		q = mq
	} else {
		logger.Info("AMQP_URL not set, using in-process activity queue")
		q = messagequeue.NewMemoryQueue(0, logger)
	}

	a, err := Assemble(cfg, logger, Backends{
		Repos:    repos,
		Push:     firebase.NewPushGateway(clients.Messaging),
		Users:    firebase.NewUserDirectory(clients.Auth),
		Verifier: clients.Auth,
		Cache:    c,
		Queue:    q,
	})
	if err != nil {
		q.Close()
		c.Close()
		clients.Close()
		return nil, err
	}
	a.firebase = clients
	return a, nil
}

// Assemble builds services, jobs and the activity consumer on top of b.
func Assemble(cfg *config.Config, logger *zap.Logger, b Backends) (*App, error) {
	encryption, err := core.NewEncryptionService(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
	}

	sender := mailer.NewSMTPSender(smtpDialTimeout)
	publisher := events.NewPublisher(b.Queue, cfg.ActivityQueue)

	activity := core.NewActivityService(b.Repos.ActivityLogs, publisher, logger)
	notifier := core.NewDispatcher(b.Repos.DeviceTokens, b.Push, logger)
	scanner := core.NewExpiringKeyScanner(b.Repos.APIKeys, b.Repos.Settings, notifier, sender, b.Users, logger)
	monitor := core.NewActivityMonitor(b.Repos.ActivityLogs, b.Repos.Alerts, b.Users, sender, monitorConfig(cfg), logger)
	retention := core.NewRetentionService(b.Repos.APIKeys, b.Repos.ActivityLogs, cfg.ActivityRetention(), logger)

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Backends:  b,
		Retention: retention,
		Consumer:  events.NewConsumer(b.Queue, cfg.ActivityQueue, activity, monitor, logger),

		restartDelay: consumerRestartDelay,
	}
	a.Runner = scheduler.NewRunner(logger, a.jobs(scanner, retention)...)
	a.Services = api.Services{
		APIKeys:  core.NewAPIKeyService(b.Repos.APIKeys, encryption, activity, logger),
		Activity: activity,
		Alerts:   core.NewAlertService(b.Repos.Alerts, logger),
		Settings: core.NewSettingsService(b.Repos.Settings, activity, logger),
		Devices:  core.NewDeviceService(b.Repos.DeviceTokens),
		Notifier: notifier,
		Mail:     core.NewMailService(sender),
		Balance: core.NewBalanceService(core.BalanceConfig{
			BaseURL:  cfg.AnthropicAPIURL,
			CacheTTL: cfg.BalanceCacheTTL,
		}, b.Cache, logger),
		Scanner: scanner,
		Jobs:    a.Runner,
	}

	if cfg.RateLimitRPS > 0 {
		a.rateLimiter, err = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter: %w", err)
		}
	}
	return a, nil
}

func monitorConfig(cfg *config.Config) core.MonitorConfig {
	mc := core.MonitorConfig{AppURL: cfg.AppURL}
	if cfg.AlertSMTPConfigured() {
		mc.SMTP = &mailer.SMTPSettings{
			Host:      cfg.AlertSMTPHost,
			Port:      cfg.AlertSMTPPort,
			Secure:    cfg.AlertSMTPSecure,
			Username:  cfg.AlertSMTPUsername,
			Password:  cfg.AlertSMTPPassword,
			FromEmail: cfg.AlertSMTPFrom,
		}
	}
	return mc
}

// jobs lists the background jobs. With the scheduler disabled every job is
// registered for on-demand runs only.
func (a *App) jobs(scanner core.ExpiringKeyScanner, retention core.RetentionService) []scheduler.Job {
	every := func(d time.Duration) time.Duration {
		if !a.Config.SchedulerEnabled {
			return 0
		}
		return d
	}

	return []scheduler.Job{
		{
			Name:     JobScanExpiringKeys,
			Interval: every(a.Config.ExpiryScanInterval),
			Run: func(ctx context.Context) error {
				return scanner.Scan(ctx).Err
			},
		},
		{
			Name: JobEmailExpiringKeys,
			Run:  scanner.ScanAndEmail,
		},
		{
			Name:     JobPurgeActivityLogs,
			Interval: every(a.Config.ActivityRetentionInterval),
			Run: func(ctx context.Context) error {
				_, err := retention.PurgeActivityLogs(ctx)
				return err
			},
		},
		{
			Name:     JobSweepExpiredKeys,
			Interval: every(a.Config.ExpiredKeySweepInterval),
			Run: func(ctx context.Context) error {
				_, err := retention.SweepExpiredKeys(ctx)
				return err
			},
		},
	}
}

// Router builds the gin engine with global middleware and every route.
func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(middleware.RequestLogger(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.Metrics())
	router.Use(middleware.CORSMiddleware(a.Config.ClientURL))

	api.SetupRoutes(router, a.Services, api.RouteConfig{
		Verifier:       a.Backends.Verifier,
		SchedulerToken: a.Config.SchedulerToken,
		RateLimiter:    a.rateLimiter,
	}, a.Logger)
	return router
}

// Start launches the scheduled jobs and the activity consumer. Both stop when
// ctx is cancelled; Wait blocks until they have. A consumer that exits early,
// for example after the broker drops the connection, is restarted.
func (a *App) Start(ctx context.Context) {
	a.Runner.Start(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.runConsumer(ctx)
	}()
}

func (a *App) runConsumer(ctx context.Context) {
	for {
		err := a.Consumer.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		a.Logger.Error("Activity consumer exited, restarting",
			zap.Error(err),
			zap.Duration("delay", a.restartDelay))

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.restartDelay):
		}
	}
}

func (a *App) Wait() {
	a.Runner.Wait()
	a.wg.Wait()
}

// Close releases the queue, the cache and the Firebase clients.
func (a *App) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.Backends.Queue != nil {
			errs = append(errs, a.Backends.Queue.Close())
		}
		if a.Backends.Cache != nil {
			errs = append(errs, a.Backends.Cache.Close())
		}
		if a.firebase != nil {
			errs = append(errs, a.firebase.Close())
		}
	})
	return errors.Join(errs...)
}
