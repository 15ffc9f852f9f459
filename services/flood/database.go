package flood

import (
	"fmt"
	"time"

	"github.com/tech-arch1tect/magiccode/services/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// FloodEvent is one recorded attempt. Rows past their expiration no
// longer count against any window and are removed by the cleanup
// worker.
type FloodEvent struct {
	ID         uint   `gorm:"primarykey"`
	Name       string `gorm:"index:idx_flood_pair,priority:1;not null"`
	Identifier string `gorm:"index:idx_flood_pair,priority:2;not null"`
	Timestamp  int64  `gorm:"not null"`
	Expiration int64  `gorm:"index:idx_flood_expiration;not null"`
}

// DatabaseGuard stores flood events in the shared database so counters
// survive restarts and are shared between instances. Row inserts are
// atomic, so concurrent registrations are never lost.
type DatabaseGuard struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewDatabaseGuard(db *gorm.DB, logger *logging.Service) *DatabaseGuard {
	return &DatabaseGuard{
		db:     db,
		logger: logger,
	}
}

func (g *DatabaseGuard) IsAllowed(name string, threshold int, window time.Duration, identifier string) (bool, error) {
	cutoff := time.Now().Add(-window).Unix()

	var count int64
	err := g.db.Model(&FloodEvent{}).
		Where("name = ? AND identifier = ? AND timestamp > ?", name, identifier, cutoff).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to count flood events: %w", err)
	}

	return count < int64(threshold), nil
}

func (g *DatabaseGuard) Register(name string, window time.Duration, identifier string) error {
	now := time.Now()

	err := g.db.Create(&FloodEvent{
		Name:       name,
		Identifier: identifier,
		Timestamp:  now.Unix(),
		Expiration: now.Add(window).Unix(),
	}).Error
	if err != nil {
		return fmt.Errorf("failed to register flood event: %w", err)
	}

	return nil
}

func (g *DatabaseGuard) Clear(name, identifier string) error {
	err := g.db.
		Where("name = ? AND identifier = ?", name, identifier).
		Delete(&FloodEvent{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear flood events: %w", err)
	}

	return nil
}

func (g *DatabaseGuard) CleanupExpired() error {
	result := g.db.Where("expiration < ?", time.Now().Unix()).Delete(&FloodEvent{})
	if result.Error != nil {
		if g.logger != nil {
			g.logger.Error("failed to cleanup expired flood events", zap.Error(result.Error))
		}
		return fmt.Errorf("failed to cleanup expired flood events: %w", result.Error)
	}

	if g.logger != nil {
		g.logger.Debug("expired flood events cleaned up",
			zap.Int64("deleted_count", result.RowsAffected))
	}

	return nil
}

func (g *DatabaseGuard) StartCleanupWorker(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if err := g.CleanupExpired(); err != nil && g.logger != nil {
				g.logger.Error("flood cleanup worker failed", zap.Error(err))
			}
		}
	}()

	if g.logger != nil {
		g.logger.Info("started flood cleanup worker",
			zap.Duration("interval", interval))
	}
}
