package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nurpe/procurement-ipc/internal/auth"
	"github.com/nurpe/procurement-ipc/internal/cache"
	"github.com/nurpe/procurement-ipc/internal/config"
	"github.com/nurpe/procurement-ipc/internal/db"
	"github.com/nurpe/procurement-ipc/internal/excel"
	httphandler "github.com/nurpe/procurement-ipc/internal/http"
	"github.com/nurpe/procurement-ipc/internal/http/middleware"
	"github.com/nurpe/procurement-ipc/internal/logger"
	"github.com/nurpe/procurement-ipc/internal/notify"
	"github.com/nurpe/procurement-ipc/internal/pdf"
	"github.com/nurpe/procurement-ipc/internal/repository"
	"github.com/nurpe/procurement-ipc/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	contractRepo := repository.NewContractRepository(database)
	ipcRepo := repository.NewIPCRepository(database)
	vendorRepo := repository.NewVendorRepository(database)

	var summaries service.SummaryCache = cache.NoopSummaryCache{}
	if cfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisSummaryCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.SummaryTTL,
		}, log)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, summary cache disabled")
		} else {
			defer redisCache.Close()
			summaries = redisCache
		}
	}

	dispatcher := notify.NewDispatcher(notify.LogSink{Log: log}, cfg.Notify.QueueSize, log)
	defer dispatcher.Close()

	contractService := service.NewContractService(contractRepo, vendorRepo, summaries, log)
	ipcService := service.NewIPCService(contractRepo, ipcRepo, vendorRepo, summaries, dispatcher, pdf.NewGenerator(), cfg, log)
	reportService := service.NewReportService(contractRepo, ipcRepo, vendorRepo, summaries, excel.NewGenerator(), cfg, log)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(contractService, ipcService, reportService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, httphandler.RouterOptions{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
		Log:            log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info().Str("addr", addr).Msg("starting ipc service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("ipc service stopped")
}
