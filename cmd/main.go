package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"projecthub-service/internal/audit"
	"projecthub-service/internal/auth"
	"projecthub-service/internal/handler"
	"projecthub-service/internal/model"
	"projecthub-service/internal/quota"
	"projecthub-service/internal/repository"
	"projecthub-service/internal/server"
	"projecthub-service/pkg/config"
	"projecthub-service/pkg/database"
	"projecthub-service/pkg/jwtutil"
	"projecthub-service/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load("projecthub-service")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: cfg.ServiceName,
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting service", cfg.LogConfig()...)

	// Initialize database
	db, err := database.InitDB(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.MigrateModels(db, model.All()...); err != nil {
		log.Fatal("Failed to run database migrations", zap.Error(err))
	}

	plans := quota.DefaultPlans()
	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      cfg.JWT.SigningKey,
		ExpirationHours: cfg.JWT.ExpirationHours,
	})
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost)
	recorder := audit.NewRecorder(repository.NewAuditLogRepository(db))
	authService := auth.NewService(db, hasher, jwtUtil, recorder, plans)

	seedCtx, cancel := context.WithTimeout(context.Background(), cfg.DB.QueryTimeout)
	err = authService.EnsureSuperAdmin(seedCtx, cfg.Auth.SuperAdminEmail, cfg.Auth.SuperAdminPassword, cfg.Auth.SuperAdminFullName)
	cancel()
	if err != nil {
		log.Fatal("Failed to seed super admin", zap.Error(err))
	}

	h := handler.New(handler.Deps{
		DB:           db,
		Auth:         authService,
		Hasher:       hasher,
		Guard:        quota.NewGuard(plans),
		Recorder:     recorder,
		QueryTimeout: cfg.DB.QueryTimeout,
	})

	e := server.New(server.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		JWT:            jwtUtil,
		Handler:        h,
	})

	// Start server
	go func() {
		log.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
}
