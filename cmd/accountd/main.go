package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/accountd/internal/config"
	"github.com/dropDatabas3/accountd/internal/http/server"
	"github.com/dropDatabas3/accountd/internal/observability/logger"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "ruta al YAML de configuración")
	flag.Parse()

	// .env es opcional
	envErr := godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.L().Fatal("config invalid", logger.Err(err))
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: cfg.App.Name, Version: version})
	defer func() { _ = logger.Sync() }()
	log := logger.L()
	if envErr != nil && !errors.Is(envErr, os.ErrNotExist) {
		log.Warn(".env not loaded", logger.Err(envErr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.ToContext(ctx, log)

	app, err := server.Build(ctx, cfg, server.Options{Version: version})
	if err != nil {
		log.Fatal("wiring failed", logger.Err(err))
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn("cleanup error", logger.Err(err))
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      app.Handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("accountd listening", logger.String("addr", cfg.Server.Addr), logger.String("env", cfg.App.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", logger.Err(err))
		os.Exit(1)
	}
}
