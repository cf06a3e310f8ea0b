package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/shx815/simple-openhands/internal/infrastructure/config"
	"github.com/shx815/simple-openhands/internal/infrastructure/logging"
	"github.com/shx815/simple-openhands/internal/infrastructure/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Flags override the environment
	flag.StringVar(&cfg.Server.Port, "port", cfg.Server.Port, "Server port")
	flag.StringVar(&cfg.Server.Host, "host", cfg.Server.Host, "Listen address")
	flag.StringVar(&cfg.Runtime.WorkDir, "workdir", cfg.Runtime.WorkDir, "Initial working directory of the shell")
	flag.StringVar(&cfg.Runtime.Backend, "backend", cfg.Runtime.Backend, "Shell backend (pty or gosh)")
	flag.BoolVar(&cfg.Logging.Development, "dev", cfg.Logging.Development, "Development mode (console logs)")
	flag.Parse()

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	srv, err := server.NewServer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create server", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Runtime server starting",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("workdir", cfg.Runtime.WorkDir),
		zap.String("backend", cfg.Runtime.Backend),
		zap.Bool("auth", cfg.Auth.APIKey != ""),
	)

	srv.Start(ctx)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
