package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"customs-backend/internal/app"
	"customs-backend/internal/config"
	"customs-backend/internal/db"
	"customs-backend/internal/router"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: config.yaml, prefers config.local.yaml)")
	flag.Parse()

	// Optional .env for local development; real deployments set env directly
	if err := godotenv.Load(); err == nil {
		logrus.Info("loaded environment from .env")
	}

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logrus.SetLevel(level)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	db.InitDB()

	container, err := app.InitializeContainer()
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize services")
	}
	defer container.Close()

	logger := logrus.StandardLogger()
	engine := router.SetupRouter(container, logger)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		logrus.WithField("addr", addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logrus.WithError(err).Error("forced shutdown")
	}
	logrus.Info("server stopped")
}
