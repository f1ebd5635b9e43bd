package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/ajali/internal/config"
	"github.com/iliyamo/ajali/internal/database"
	"github.com/iliyamo/ajali/internal/handler"
	"github.com/iliyamo/ajali/internal/middleware"
	"github.com/iliyamo/ajali/internal/queue"
	"github.com/iliyamo/ajali/internal/repository"
	"github.com/iliyamo/ajali/internal/router"
	"github.com/iliyamo/ajali/internal/service"
	"github.com/iliyamo/ajali/internal/storage"
	"github.com/iliyamo/ajali/internal/utils"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	rl := config.LoadRateLimitConfig()

	logger := log.New("ajali")
	logger.SetLevel(logLevel(cfg.LogLevel))

	if cfg.MigrateOnStart {
		changed, err := database.MigrateUp(cfg.Database())
		if err != nil {
			logger.Fatalf("migrate: %v", err)
		}
		logger.Infof("migrations applied (changed=%t)", changed)
	}

	db, err := database.Open(cfg.Database())
	if err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer db.Close()

	files, err := storage.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes())
	if err != nil {
		logger.Fatalf("storage: %v", err)
	}

	var (
		notify    service.Notifier = queue.LogNotifier{Log: logger}
		publisher *queue.Publisher
	)
	if cfg.NotifyBackend == "rabbitmq" {
		publisher = queue.NewPublisher(cfg.RabbitMQURL, logger)
		notify = publisher
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	reports := repository.NewReportRepo(db)
	media := repository.NewMediaRepo(db)
	history := repository.NewHistoryRepo(db)

	issuer := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTTL(), cfg.RefreshTTL())
	identity, err := service.NewIdentityService(users, tokens, issuer, cfg.BcryptCost, notify, logger)
	if err != nil {
		logger.Fatalf("identity: %v", err)
	}
	reportSvc := service.NewReportService(reports, media, users, files, notify, logger)
	mediaSvc := service.NewMediaService(reports, media, files, logger)
	var policy service.TransitionPolicy = service.PermissivePolicy{}
	if cfg.StrictTransitions {
		policy = service.StrictPolicy{}
	}
	lifecycle := service.NewLifecycleEngine(reports, history, policy, notify, logger)

	e := echo.New()
	e.HideBanner = true
	e.Logger = logger
	e.Validator = handler.Validator{}
	e.HTTPErrorHandler = handler.ErrorHandler(logger)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	// Multipart envelopes carry a little more than the file itself.
	e.Use(echomw.BodyLimit(bodyLimit(cfg.MaxUploadMB + 1)))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			logger.Infof("%s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))

	limit := middleware.NewTokenBucket(rl, nil)
	if rl.Enabled {
		rdb := config.NewRedisClient()
		if rdb == nil {
			logger.Warnf("redis unreachable; rate limiting disabled")
		} else {
			defer rdb.Close()
			limit = middleware.NewTokenBucket(rl, rdb)
		}
	}

	router.RegisterRoutes(e, cfg.UploadDir, db.PingContext)
	router.RegisterAuth(e, handler.NewAuthHandler(identity), identity, limit)
	router.RegisterReports(e, handler.NewReportHandler(reportSvc), handler.NewMediaHandler(mediaSvc), identity)
	router.RegisterAdmin(e, handler.NewAdminHandler(reportSvc, lifecycle), identity)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.NotifyConsumerEnabled {
		consumer := queue.NewConsumer(cfg.RabbitMQURL, cfg.NotificationLogPath, logger)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("notification consumer: %v", err)
			}
		}()
	}

	addr := ":" + cfg.Port
	go func() {
		logger.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown: %v", err)
	}
	if publisher != nil {
		if err := publisher.Close(shutdownCtx); err != nil {
			logger.Warnf("notifications not flushed: %v", err)
		}
	}
}

func logLevel(s string) log.Lvl {
	switch s {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

func bodyLimit(mb int) string {
	return strconv.Itoa(mb) + "M"
}
