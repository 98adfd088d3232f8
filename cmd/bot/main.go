package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/Bottswana/BullyBot/internal/app"
	"github.com/Bottswana/BullyBot/internal/config"
	"github.com/Bottswana/BullyBot/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet.
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}

	if code := run(cfg, log); code != 0 {
		_ = log.Sync()
		os.Exit(code)
	}
	_ = log.Sync()
}

// run returns the process exit code so deferred cleanup in App always happens.
func run(cfg config.Config, log *zap.Logger) int {
	application, err := app.New(cfg, log)
	if err != nil {
		log.Error("app init failed", zap.Error(err))
		return 1
	}
	if err := application.Run(context.Background()); err != nil {
		log.Error("app run failed", zap.Error(err))
		return 1
	}
	log.Info("bullybot stopped")
	return 0
}
