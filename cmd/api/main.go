package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/adilbek/sisyphus/internal/config"
	"github.com/adilbek/sisyphus/internal/logger"
	"github.com/adilbek/sisyphus/internal/metrics"
	"github.com/adilbek/sisyphus/internal/scheduler"
	"github.com/adilbek/sisyphus/internal/server"
	"github.com/adilbek/sisyphus/internal/storage"
	"github.com/adilbek/sisyphus/internal/task"
	"github.com/adilbek/sisyphus/internal/user"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	zlog, err := logger.Init()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zlog.Sync()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := storage.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer dbPool.Close()

	redisClient, err := storage.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		zlog.Fatal("connect redis", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics.InitMetrics()

	authRepo := auth.NewRepository(dbPool)
	authService := auth.NewService(authRepo, cfg.Auth)

	var todayCache task.TodayCache
	if redisClient != nil {
		todayCache = task.NewRedisTodayCache(redisClient, cfg.Redis.TodayTTL)
	}
	taskRepo := task.NewRepository(dbPool)
	taskService := task.NewService(taskRepo, todayCache)

	userRepo := user.NewRepository(dbPool)
	userService := user.NewService(userRepo)

	sweepLock := scheduler.NewRedisLock(redisClient, cfg.Scheduler.LockTTL)
	var lock scheduler.Lock
	if sweepLock != nil {
		lock = sweepLock
	}
	sweeper := scheduler.NewSweeper(userService, taskService, lock, zlog, cfg.Scheduler)
	if err := sweeper.Start(); err != nil {
		zlog.Fatal("start reset sweep", zap.Error(err))
	}
	defer sweeper.Stop()

	router := server.NewRouter(server.Dependencies{
		Config:      cfg,
		DB:          dbPool,
		Redis:       redisClient,
		AuthService: authService,
		TaskService: taskService,
		UserService: userService,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zlog.Info("Sisyphus API listening", zap.String("addr", cfg.Server.Address()))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	zlog.Info("shutting down gracefully")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zlog.Error("shutdown", zap.Error(err))
	}
}
