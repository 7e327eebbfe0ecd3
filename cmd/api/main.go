package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tradeflow/internal/audit"
	"tradeflow/internal/auth"
	"tradeflow/internal/cache"
	"tradeflow/internal/config"
	cronrunner "tradeflow/internal/cron"
	"tradeflow/internal/db"
	"tradeflow/internal/execution"
	httpserver "tradeflow/internal/http"
	"tradeflow/internal/logger"
	"tradeflow/internal/rbac"
	"tradeflow/internal/reference"
	"tradeflow/internal/seed"
	"tradeflow/internal/store"
	"tradeflow/internal/tickets"
	"tradeflow/internal/users"
	"tradeflow/internal/workflow"
)

func main() {
	cfgPath := os.Getenv("TF_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	envOnly := false
	if raw := os.Getenv("TF_ENV_ONLY"); raw != "" {
		envOnly = strings.EqualFold(raw, "true") || raw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.AutoMigrate(dbConn.Gorm); err != nil {
		log.Fatal("auto-migrate failed", zap.Error(err))
	}
	if cfg.Seed.Enabled {
		admin := seed.Admin{OktaID: cfg.Seed.AdminOktaID, Email: cfg.Seed.AdminEmail, Name: cfg.Seed.AdminName}
		if err := seed.FirstSetup(dbConn.Gorm, admin, log); err != nil {
			log.Fatal("seed failed", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	permCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		log.Fatal("cache init failed", zap.Error(err))
	}
	if c, ok := permCache.(io.Closer); ok {
		defer c.Close()
	}

	crd, err := execution.New(cfg.CRD)
	if err != nil {
		log.Fatal("crd client init failed", zap.Error(err))
	}

	st := store.New(dbConn.Gorm)
	resolver := rbac.NewResolver(st, permCache, cfg.Cache.PermissionTTL, log)
	recorder := audit.NewRecorder()
	usersSvc := users.NewService(st, resolver, recorder, log)

	if cfg.Cron.Enabled {
		runner := cronrunner.New(log, ctx)
		if _, err := runner.Add(cfg.Cron.OverrideSweep, cronrunner.SweepOverrides(usersSvc, log)); err != nil {
			log.Fatal("cron schedule failed", zap.Error(err))
		}
		runner.Start()
		defer runner.Stop()
	}

	dev := strings.EqualFold(cfg.App.Env, "dev")
	if dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := httpserver.NewRouter(httpserver.Deps{
		Store:    st,
		Resolver: resolver,
		JWT: auth.JWT{
			Secret:   []byte(cfg.Auth.JWTSecret),
			Issuer:   cfg.Auth.Issuer,
			TokenTTL: cfg.Auth.TokenTTL,
		},
		Logger:          log,
		Recommendations: workflow.NewService(st, resolver, recorder, log),
		Tickets:         tickets.NewService(st, resolver, recorder, crd, log),
		Reference:       reference.NewService(st, resolver, recorder, log),
		Users:           usersSvc,
		DevLogin:        dev,
	})

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr), zap.String("crd_mode", cfg.CRD.Mode))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
