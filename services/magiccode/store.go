package magiccode

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// VerificationFilter is the exact-match conjunction a verification
// attempt must satisfy, plus the expiry lower bound.
type VerificationFilter struct {
	Value        string
	OwnerUserID  uint
	ClientID     uint
	Email        string
	Operation    string
	RequireLogin bool
	Now          time.Time
}

// Store is the record storage consumed by the magic code service.
type Store interface {
	Create(code *MagicCode) error
	Save(code *MagicCode) error
	Load(id uint) (*MagicCode, error)
	LoadMultiple(ids []uint) ([]MagicCode, error)
	Delete(codes []MagicCode) error

	// CountByValue counts all records carrying the exact value,
	// regardless of status or ownership.
	CountByValue(value string) (int64, error)

	// ConsumeMatch atomically finds the single record satisfying the
	// filter and applies the consumption transition: clearing login
	// eligibility when revokeLogin is set and revoking the code when
	// revoke is set. It returns nil when no record matches or when a
	// concurrent verification consumed the record first; the transition
	// happens at most once per record.
	ConsumeMatch(f VerificationFilter, revokeLogin, revoke bool) (*MagicCode, error)

	FindExpired(now time.Time, limit int) ([]MagicCode, error)
	FindByOwner(userID uint, operation string) ([]MagicCode, error)
	FindByClient(clientID uint) ([]MagicCode, error)
}

// GormStore implements Store on a relational database. Consumption
// runs inside a transaction with a guarded update, so two concurrent
// verifications of one code cannot both observe it as consumable.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Create(code *MagicCode) error {
	if err := s.db.Create(code).Error; err != nil {
		return fmt.Errorf("failed to create magic code: %w", err)
	}
	return nil
}

func (s *GormStore) Save(code *MagicCode) error {
	if err := s.db.Save(code).Error; err != nil {
		return fmt.Errorf("failed to save magic code: %w", err)
	}
	return nil
}

func (s *GormStore) Load(id uint) (*MagicCode, error) {
	var code MagicCode
	if err := s.db.First(&code, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load magic code: %w", err)
	}
	return &code, nil
}

func (s *GormStore) LoadMultiple(ids []uint) ([]MagicCode, error) {
	var codes []MagicCode
	if err := s.db.Where("id IN ?", ids).Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("failed to load magic codes: %w", err)
	}
	return codes, nil
}

func (s *GormStore) Delete(codes []MagicCode) error {
	if len(codes) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(codes))
	for _, code := range codes {
		ids = append(ids, code.ID)
	}

	if err := s.db.Where("id IN ?", ids).Delete(&MagicCode{}).Error; err != nil {
		return fmt.Errorf("failed to delete magic codes: %w", err)
	}
	return nil
}

func (s *GormStore) CountByValue(value string) (int64, error) {
	var count int64
	err := s.db.Model(&MagicCode{}).Where("value = ?", value).Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count magic codes by value: %w", err)
	}
	return count, nil
}

func (s *GormStore) ConsumeMatch(f VerificationFilter, revokeLogin, revoke bool) (*MagicCode, error) {
	var consumed *MagicCode

	err := s.db.Transaction(func(tx *gorm.DB) error {
		query := tx.
			Where("value = ?", f.Value).
			Where("owner_user_id = ?", f.OwnerUserID).
			Where("client_id = ?", f.ClientID).
			Where("email = ?", f.Email).
			Where("operation = ?", f.Operation).
			Where("status = ?", true).
			Where("expires_at >= ?", f.Now.Unix())

		if f.RequireLogin {
			query = query.Where("login_allowed = ?", true)
		}

		var code MagicCode
		if err := query.Order("id").First(&code).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		updates := map[string]any{}
		if revokeLogin {
			updates["login_allowed"] = false
		}
		if revoke {
			updates["status"] = false
		}

		if len(updates) > 0 {
			// The guarded update is the consumption point: a row only
			// transitions if it is still in the state the filter saw,
			// so a racing verification finds zero affected rows.
			guard := tx.Model(&MagicCode{}).
				Where("id = ?", code.ID).
				Where("status = ?", true)
			if f.RequireLogin {
				guard = guard.Where("login_allowed = ?", true)
			}

			result := guard.Updates(updates)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return nil
			}

			if revokeLogin {
				code.LoginAllowed = false
			}
			if revoke {
				code.Status = false
			}
		}

		consumed = &code
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume magic code: %w", err)
	}

	return consumed, nil
}

func (s *GormStore) FindExpired(now time.Time, limit int) ([]MagicCode, error) {
	query := s.db.Where("expires_at < ?", now.Unix())
	if limit > 0 {
		query = query.Limit(limit)
	}

	var codes []MagicCode
	if err := query.Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("failed to find expired magic codes: %w", err)
	}
	return codes, nil
}

func (s *GormStore) FindByOwner(userID uint, operation string) ([]MagicCode, error) {
	query := s.db.Where("owner_user_id = ?", userID)
	if operation != "" {
		query = query.Where("operation = ?", operation)
	}

	var codes []MagicCode
	if err := query.Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("failed to find magic codes by owner: %w", err)
	}
	return codes, nil
}

func (s *GormStore) FindByClient(clientID uint) ([]MagicCode, error) {
	var codes []MagicCode
	if err := s.db.Where("client_id = ?", clientID).Find(&codes).Error; err != nil {
		return nil, fmt.Errorf("failed to find magic codes by client: %w", err)
	}
	return codes, nil
}
