package magiccode

import (
	"time"

	"github.com/tech-arch1tect/magiccode/config"
	"github.com/tech-arch1tect/magiccode/services/logging"
	"go.uber.org/zap"
)

// Collector gathers magic codes for housekeeping: expired records,
// everything belonging to an account, or everything bound to a client.
type Collector struct {
	config  *config.Config
	store   Store
	clients ClientRegistry
	logger  *logging.Service
}

func NewCollector(cfg *config.Config, store Store, clients ClientRegistry, logger *logging.Service) *Collector {
	return &Collector{
		config:  cfg,
		store:   store,
		clients: clients,
		logger:  logger,
	}
}

// CollectExpired returns codes whose expiry has passed, up to limit
// (zero means unbounded).
func (c *Collector) CollectExpired(limit int) ([]MagicCode, error) {
	return c.store.FindExpired(time.Now(), limit)
}

// CollectForAccount returns the codes owned by the account, optionally
// filtered by operation, merged with the codes of every client that
// has the account as its default user.
func (c *Collector) CollectForAccount(userID uint, operation string) ([]MagicCode, error) {
	codes, err := c.store.FindByOwner(userID, operation)
	if err != nil {
		return nil, err
	}

	clients, err := c.clients.ClientsForUser(userID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(codes))
	for _, code := range codes {
		seen[code.ID] = struct{}{}
	}

	for _, client := range clients {
		clientCodes, err := c.store.FindByClient(client.ID)
		if err != nil {
			return nil, err
		}

		for _, code := range clientCodes {
			if _, ok := seen[code.ID]; ok {
				continue
			}
			seen[code.ID] = struct{}{}
			codes = append(codes, code)
		}
	}

	return codes, nil
}

// CollectForClient returns all codes bound to the client.
func (c *Collector) CollectForClient(clientID uint) ([]MagicCode, error) {
	return c.store.FindByClient(clientID)
}

// DeleteMultiple removes the given codes from storage.
func (c *Collector) DeleteMultiple(codes []MagicCode) error {
	return c.store.Delete(codes)
}

// CleanupExpired deletes one batch of expired codes.
func (c *Collector) CleanupExpired() error {
	expired, err := c.CollectExpired(c.config.MagicCode.CleanupBatchSize)
	if err != nil {
		return err
	}

	if len(expired) == 0 {
		return nil
	}

	if err := c.store.Delete(expired); err != nil {
		return err
	}

	if c.logger != nil {
		c.logger.Info("expired magic codes cleaned up",
			zap.Int("deleted_count", len(expired)))
	}

	return nil
}

func (c *Collector) StartCleanupWorker(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			if err := c.CleanupExpired(); err != nil && c.logger != nil {
				c.logger.Error("magic code cleanup worker failed", zap.Error(err))
			}
		}
	}()

	if c.logger != nil {
		c.logger.Info("started magic code cleanup worker",
			zap.Duration("interval", interval))
	}
}
