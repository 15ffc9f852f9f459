package directory

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/magiccode/services/logging"
	"github.com/tech-arch1tect/magiccode/services/magiccode"
	"gorm.io/gorm"
)

// Service is a database-backed user directory and client registry.
type Service struct {
	db     *gorm.DB
	logger *logging.Service
}

func NewService(db *gorm.DB, logger *logging.Service) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

func (s *Service) LookupUser(id uint) (*magiccode.DirectoryUser, error) {
	var user User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, magiccode.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	return &magiccode.DirectoryUser{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
	}, nil
}

func (s *Service) LookupClient(id uint) (*magiccode.RegisteredClient, error) {
	var client Client
	if err := s.db.First(&client, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, magiccode.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to look up client: %w", err)
	}

	return registeredClient(client), nil
}

// DefaultClientForUser prefers a client naming the user as its default
// user, falling back to the instance-wide default client.
func (s *Service) DefaultClientForUser(userID uint) (*magiccode.RegisteredClient, error) {
	var client Client
	err := s.db.Where("default_user_id = ?", userID).Order("id").First(&client).Error
	if err == nil {
		return registeredClient(client), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up default client: %w", err)
	}

	if err := s.db.Where("is_default = ?", true).Order("id").First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, magiccode.ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to look up default client: %w", err)
	}

	return registeredClient(client), nil
}

func (s *Service) ClientsForUser(userID uint) ([]magiccode.RegisteredClient, error) {
	var clients []Client
	if err := s.db.Where("default_user_id = ?", userID).Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("failed to look up clients for user: %w", err)
	}

	result := make([]magiccode.RegisteredClient, 0, len(clients))
	for _, client := range clients {
		result = append(result, *registeredClient(client))
	}

	return result, nil
}

func registeredClient(client Client) *magiccode.RegisteredClient {
	return &magiccode.RegisteredClient{
		ID:        client.ID,
		ClientID:  client.ClientID,
		Label:     client.Label,
		IsDefault: client.IsDefault,
	}
}
