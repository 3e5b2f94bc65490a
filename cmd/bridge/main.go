// Package main is the entry point for the CDC bridge server.
//
// It loads configuration, connects the Kafka publisher with a fixed-interval
// retry (an unreachable broker at boot is fatal), builds the HTTP server with
// the core chassis, and serves the intake endpoints until a shutdown signal
// arrives. Graceful shutdown is handled via SIGINT/SIGTERM interception.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"graphbridge/internal/api/handlers"
	"graphbridge/internal/broker"
	"graphbridge/internal/config"
	"graphbridge/internal/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on
// error.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("cdc bridge starting",
		"service", cfg.Service,
		"kafka_bootstrap_servers", cfg.Kafka.BootstrapServers,
		"node_topic", cfg.Kafka.NodeTopic,
		"relationship_topic", cfg.Kafka.RelationshipTopic,
	)

	// Connect the publisher before serving any requests. No requests are
	// accepted until the broker is reachable or the retry budget is spent.
	publisher := broker.NewPublisher(cfg.Kafka, logger)
	if err := publisher.Connect(context.Background()); err != nil {
		return fmt.Errorf("connecting to kafka: %w", err)
	}
	defer publisher.Close()

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	cdcHandler := handlers.NewCDCHandler(publisher, cfg.Kafka, cfg.Service, srv.Validator, logger)
	srv.MountRoutes(cdcHandler.RegisterRoutes)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger configured for the given log
// level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
