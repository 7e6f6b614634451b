// Package main is the entry point for the Freeway gateway server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"freeway/cmd/freeway/docs"
	"freeway/config"
	"freeway/internal/app"
	"freeway/internal/logging"
	"freeway/internal/version"

	// Import provider packages to trigger their init() registration
	_ "freeway/internal/providers/cohere"
	_ "freeway/internal/providers/gemini"
	_ "freeway/internal/providers/groq"
	_ "freeway/internal/providers/huggingface"
	_ "freeway/internal/providers/mistral"
	_ "freeway/internal/providers/openai"
	_ "freeway/internal/providers/openrouter"
)

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		// logging is not configured yet
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Format, cfg.Logging.Level)

	slog.Info("starting freeway",
		"version", version.Version,
		"commit", version.Commit,
		"build_date", version.Date,
	)

	docs.SwaggerInfo.Version = version.Version

	application, err := app.New(context.Background(), app.Config{AppConfig: cfg})
	if err != nil {
		slog.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := application.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := application.Start(":" + cfg.Server.Port); err != nil {
		slog.Error("server error", "error", err)
		_ = application.Shutdown(context.Background())
		os.Exit(1)
	}
}
