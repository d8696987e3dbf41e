package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"medlocator/m/internal/api"
	"medlocator/m/internal/auth"
	"medlocator/m/internal/config"
	"medlocator/m/internal/database"
	"medlocator/m/internal/geofeed"
	"medlocator/m/internal/inventory"
	"medlocator/m/internal/logging"
	"medlocator/m/internal/migrations"
	"medlocator/m/internal/search"
	"medlocator/m/internal/seed"
	"medlocator/m/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, "medlocator")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	policy, err := auth.ParsePolicy(cfg.ApprovalPolicy)
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("failed to connect database", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	ctx := context.Background()
	s := store.New(db)
	if cfg.CatalogCSV != "" {
		if _, err := seed.LoadMedicinesFile(ctx, s, cfg.CatalogCSV, logger); err != nil {
			logger.Fatal("failed to seed catalog", zap.Error(err))
		}
	}

	gate := auth.NewGate(policy)
	authSvc := auth.NewService(s, auth.NewTokens(cfg.Secret, cfg.TokenTTL), gate, logger)
	if err := authSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatal("failed to create admin account", zap.Error(err))
	}

	var cache geofeed.Cache
	if cfg.RedisAddr != "" {
		rc, err := geofeed.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("redis unavailable, geo feed uncached", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			defer rc.Close()
			cache = rc
		}
	}
	feed := geofeed.New(s, cache, cfg.GeoFeedTTL, logger)

	inv := inventory.NewService(s, gate, logger)
	inv.SetObserver(feed)

	handler := api.New(api.Services{
		Auth:      authSvc,
		Inventory: inv,
		Search:    search.NewEngine(s, logger),
		Catalog:   s,
		Feed:      feed,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("pharmacy locator starting",
			zap.String("addr", srv.Addr),
			zap.String("driver", cfg.DatabaseDriver),
			zap.String("approval_policy", string(policy)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
