package directory

import "time"

// User is the minimal account record the magic code service resolves
// email addresses from.
type User struct {
	ID        uint   `gorm:"primarykey"`
	Username  string `gorm:"uniqueIndex;not null"`
	Email     string `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Client is a registered client application. A client may name a
// default user and may be the instance-wide default used when issuance
// does not specify a client.
type Client struct {
	ID            uint   `gorm:"primarykey"`
	ClientID      string `gorm:"uniqueIndex;not null"`
	Label         string `gorm:"not null"`
	DefaultUserID *uint  `gorm:"index"`
	IsDefault     bool   `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
