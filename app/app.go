package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tech-arch1tect/magiccode/config"
	"github.com/tech-arch1tect/magiccode/services/flood"
	"github.com/tech-arch1tect/magiccode/services/logging"
	"github.com/tech-arch1tect/magiccode/services/magiccode"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type App struct {
	fx        *fx.App
	config    *config.Config
	logger    *logging.Service
	db        *gorm.DB
	flood     flood.Guard
	magicCode *magiccode.Service
	collector *magiccode.Collector
}

func (a *App) Start() error {
	return a.fx.Start(context.Background())
}

func (a *App) Run() {
	if err := a.Start(); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	if a.logger != nil {
		a.logger.Info("Received shutdown signal, stopping gracefully...")
	} else {
		log.Printf("Received signal %v, shutting down gracefully...", sig)
	}

	a.Stop()
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.fx.Stop(ctx); err != nil {
		if a.logger != nil {
			a.logger.Error("Failed to stop application gracefully")
		} else {
			log.Printf("Failed to stop application gracefully: %v", err)
		}
	}
}

func (a *App) Config() *config.Config {
	return a.config
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Flood() flood.Guard {
	return a.flood
}

func (a *App) MagicCode() *magiccode.Service {
	return a.magicCode
}

func (a *App) Collector() *magiccode.Collector {
	return a.collector
}
