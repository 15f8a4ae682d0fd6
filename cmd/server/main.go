package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"asyncops/internal/config"
	"asyncops/internal/handler"
	"asyncops/internal/logger"
	"asyncops/internal/model"
	"asyncops/internal/scheduler"

	"github.com/gin-gonic/gin"
)

func main() {
	configFile := flag.String("config", "", "config file path (e.g. etc/config-dev.yaml)")
	migrate := flag.Bool("migrate", true, "run schema migration on startup")
	flag.Parse()

	cfg := config.Load(*configFile)
	logger.Init(cfg.Log)
	db, err := cfg.OpenGormDB()
	if err != nil {
		slog.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	if *migrate {
		if err := model.Migrate(db); err != nil {
			slog.Error("migrate failed", "err", err)
			os.Exit(1)
		}
	}

	gin.SetMode(gin.ReleaseMode)
	svcs := handler.NewServices(db, cfg.Auth)
	r := handler.NewRouter(cfg.CORS, svcs)
	srv := &http.Server{Addr: cfg.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if cfg.Scheduler.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			scheduler.New(cfg.Scheduler, svcs.Summaries).Run(ctx)
		}()
	}

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "scheduler", cfg.Scheduler.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown", "err", err)
	}
	wg.Wait()
	slog.Info("server stopped")
}
