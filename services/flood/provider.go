package flood

import (
	"fmt"

	"github.com/tech-arch1tect/magiccode/config"
	"github.com/tech-arch1tect/magiccode/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type OptionalDB struct {
	fx.In
	DB *gorm.DB `optional:"true"`
}

func ProvideGuard(cfg *config.Config, logger *logging.Service, optDB OptionalDB) (Guard, error) {
	if logger != nil {
		logger.Info("initializing flood guard",
			zap.String("store_type", cfg.Flood.Store),
			zap.Int("ip_limit", cfg.Flood.IPLimit),
			zap.Int("user_limit", cfg.Flood.UserLimit))
	}

	switch cfg.Flood.Store {
	case "memory":
		return NewMemoryGuard(), nil
	case "database":
		if optDB.DB == nil {
			return nil, fmt.Errorf("flood store %q requires a database", cfg.Flood.Store)
		}
		if err := optDB.DB.AutoMigrate(&FloodEvent{}); err != nil {
			return nil, fmt.Errorf("failed to migrate flood events table: %w", err)
		}
		return NewDatabaseGuard(optDB.DB, logger), nil
	default:
		return nil, fmt.Errorf("unsupported flood store type: %s (supported: memory, database)", cfg.Flood.Store)
	}
}

func StartCleanupWorkerIfEnabled(cfg *config.Config, guard Guard, logger *logging.Service) {
	dbGuard, ok := guard.(*DatabaseGuard)
	if !ok {
		return
	}

	if logger != nil {
		logger.Debug("starting flood cleanup worker",
			zap.Duration("cleanup_period", cfg.Flood.CleanupPeriod))
	}

	dbGuard.StartCleanupWorker(cfg.Flood.CleanupPeriod)
}

var Module = fx.Options(
	fx.Provide(ProvideGuard),
	fx.Invoke(StartCleanupWorkerIfEnabled),
)
