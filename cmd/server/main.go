package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/guesthouse-admin/internal/config"
	"github.com/iliyamo/guesthouse-admin/internal/database"
	"github.com/iliyamo/guesthouse-admin/internal/handler"
	"github.com/iliyamo/guesthouse-admin/internal/logger"
	"github.com/iliyamo/guesthouse-admin/internal/metrics"
	"github.com/iliyamo/guesthouse-admin/internal/middleware"
	"github.com/iliyamo/guesthouse-admin/internal/notify"
	"github.com/iliyamo/guesthouse-admin/internal/queue"
	"github.com/iliyamo/guesthouse-admin/internal/repository"
	"github.com/iliyamo/guesthouse-admin/internal/router"
	"github.com/iliyamo/guesthouse-admin/internal/service"
	"github.com/iliyamo/guesthouse-admin/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// the structured logger is not available yet
		panic("load config: " + err.Error())
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic("init logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	priv, pub, err := utils.ParseRSAKeys(cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM)
	if err != nil {
		log.Fatal("invalid JWT keys", zap.Error(err))
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	log.Info("database connection established", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))

	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("schema migrated")
	}

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting falls back to memory and caching is off")
	}

	m := metrics.New()

	var publisher queue.Publisher = queue.NewAMQPPublisher(cfg.Notify.AMQPURL, cfg.Notify.Queue)
	deps := service.NewDeps(service.Deps{
		Gateway:   database.NewGateway(db),
		Publisher: publisher,
		Metrics:   m,
		Log:       log,
		Loc:       cfg.Location(),
	})

	// ---- repositories ----
	guests := repository.NewGuestRepo(db)
	inout := repository.NewInOutRepo(db)
	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewTokenRepo(db)

	// ---- services ----
	guestSvc := service.NewGuestService(deps, guests, inout)
	inoutSvc := service.NewInOutService(deps, guests, inout)
	roomSvc := service.NewRoomService(deps, repository.NewRoomRepo(db), guests, inout)
	assignSvc := service.NewAssignmentService(deps, db, guests, service.ResourceSpecs)
	masterSvc := service.NewMasterService(deps, db, assignSvc, service.MasterSpecs)
	reportSvc := service.NewReportService(deps, repository.NewTableRepo(db), service.ResourceSpecs)
	authSvc := &service.AuthService{
		Deps: deps,
		AuthSettings: service.AuthSettings{
			PrivateKey:     priv,
			AccessTTL:      cfg.AccessTTL,
			RefreshTTLDays: cfg.RefreshTTLDays,
			RefreshLength:  cfg.RefreshTokenLength,
			Pepper:         cfg.RefreshTokenPepper,
			ResetTTL:       cfg.PasswordResetTTL,
			BcryptCost:     cfg.BcryptCost,
		},
		Users:  users,
		Roles:  roles,
		Tokens: tokens,
	}
	userSvc := &service.UserService{Deps: deps, Users: users, Roles: roles, Tokens: tokens, BcryptCost: cfg.BcryptCost}
	roleSvc := &service.RoleService{Deps: deps, Roles: roles, Users: users}

	if err := authSvc.EnsureAdmin(ctx, cfg.BootstrapAdminUser, cfg.BootstrapAdminPassword); err != nil {
		log.Fatal("bootstrap administrator failed", zap.Error(err))
	}

	// ---- background work ----
	sweeper := service.NewSweeper(deps, inout, assignSvc.Expiring()...)
	go sweeper.Run(ctx, cfg.SweepInterval)

	if cfg.Notify.ConsumerInline {
		consumer := notify.NewConsumer(cfg.Notify, notify.NewRouterFromConfig(ctx, cfg.Notify, log), log, m.ObserveNotification)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("notification consumer stopped", zap.Error(err))
			}
		}()
	}

	// ---- HTTP ----
	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestID())
	e.Use(logger.Middleware(log))
	e.Use(m.Middleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  corsOrigins(cfg.CORSOrigins),
		AllowHeaders:  []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, echo.HeaderXRequestID},
		ExposeHeaders: []string{echo.HeaderContentDisposition, echo.HeaderXRequestID},
	}))

	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc, log),
		Guests:      handler.NewGuestHandler(guestSvc, inoutSvc, log),
		Rooms:       handler.NewRoomHandler(roomSvc, log),
		Assignments: handler.NewAssignmentHandler(assignSvc, log),
		Masters:     handler.NewMasterHandler(masterSvc, log),
		Admin:       handler.NewAdminHandler(userSvc, roleSvc, log),
		Reports:     handler.NewReportHandler(reportSvc, log),
	}, router.Options{
		DB:        db,
		PublicKey: pub,
		Redis:     rdb,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Metrics:   m,
		Log:       log,
	})

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("timezone", cfg.TimeZone))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
	closeRedis(rdb)
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func closeRedis(rdb *redis.Client) {
	if rdb != nil {
		_ = rdb.Close()
	}
}
