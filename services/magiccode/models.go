package magiccode

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MagicCode is one issued code. A record authorizes exactly one
// (owner, client, email, operation) tuple and is consumed by the
// verification state machine: Status only ever transitions from active
// to revoked, and LoginAllowed is cleared on the first login-mode use.
type MagicCode struct {
	ID           uint      `gorm:"primarykey"`
	UUID         string    `gorm:"type:varchar(36);uniqueIndex;not null"`
	OwnerUserID  uint      `gorm:"index:idx_magic_code_verify,priority:2;not null"`
	ClientID     uint      `gorm:"index:idx_magic_code_verify,priority:3;not null"`
	Email        string    `gorm:"index:idx_magic_code_verify,priority:4;not null"`
	Operation    string    `gorm:"index:idx_magic_code_verify,priority:5;not null"`
	Value        string    `gorm:"index:idx_magic_code_value;index:idx_magic_code_verify,priority:1;not null"`
	ExpiresAt    int64     `gorm:"index:idx_magic_code_expires;not null"`
	Status       bool      `gorm:"not null;default:true"`
	LoginAllowed bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (c *MagicCode) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == "" {
		c.UUID = uuid.NewString()
	}
	return nil
}

// Revoke marks the code as no longer usable. There is no reverse
// transition.
func (c *MagicCode) Revoke() *MagicCode {
	c.Status = false
	return c
}

func (c *MagicCode) IsRevoked() bool {
	return !c.Status
}

// RevokeLogin clears login eligibility while leaving the code usable
// for operation-mode verification.
func (c *MagicCode) RevokeLogin() *MagicCode {
	c.LoginAllowed = false
	return c
}

func (c *MagicCode) IsLoginAllowed() bool {
	return c.LoginAllowed
}

func (c *MagicCode) IsExpired(now time.Time) bool {
	return c.ExpiresAt < now.Unix()
}
