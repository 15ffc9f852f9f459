package magiccode

import (
	"github.com/tech-arch1tect/magiccode/config"
	"github.com/tech-arch1tect/magiccode/services/flood"
	"github.com/tech-arch1tect/magiccode/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func ProvideStore(db *gorm.DB) Store {
	return NewGormStore(db)
}

func ProvideService(
	cfg *config.Config,
	store Store,
	guard flood.Guard,
	users UserDirectory,
	clients ClientRegistry,
	logger *logging.Service,
) *Service {
	return NewService(cfg, store, guard, users, clients, logger)
}

func ProvideCollector(cfg *config.Config, store Store, clients ClientRegistry, logger *logging.Service) *Collector {
	return NewCollector(cfg, store, clients, logger)
}

func StartCleanupWorkerIfEnabled(cfg *config.Config, collector *Collector, logger *logging.Service) {
	if cfg.MagicCode.CleanupPeriod <= 0 {
		if logger != nil {
			logger.Debug("magic code cleanup worker disabled")
		}
		return
	}

	if logger != nil {
		logger.Debug("starting magic code cleanup worker",
			zap.Duration("cleanup_period", cfg.MagicCode.CleanupPeriod))
	}

	collector.StartCleanupWorker(cfg.MagicCode.CleanupPeriod)
}

var Module = fx.Options(
	fx.Provide(ProvideStore),
	fx.Provide(ProvideService),
	fx.Provide(ProvideCollector),
	fx.Invoke(StartCleanupWorkerIfEnabled),
)
