package testutils

import (
	"time"

	"github.com/tech-arch1tect/magiccode/config"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "magiccode-test",
		},
		Log: config.LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Database: config.DatabaseConfig{
			Driver:      "sqlite",
			DSN:         ":memory:",
			AutoMigrate: true,
		},
		MagicCode: config.MagicCodeConfig{
			CodeTTL:                  15 * time.Minute,
			LoginPermittedOperations: []string{"login", "register"},
			CodeAlphabet:             "123456789ABCDEFGHIJKLMNPQRSTUVWXYZ",
			CodeLength:               6,
			MaxGenerationAttempts:    10,
			CleanupPeriod:            time.Hour,
		},
		Flood: config.FloodConfig{
			IPLimit:       50,
			IPWindow:      time.Hour,
			UserLimit:     5,
			UserWindow:    time.Hour,
			Store:         "memory",
			CleanupPeriod: time.Hour,
		},
	}
}

var TestAddresses = struct {
	UserEmail     string
	OverrideEmail string
	ClientIP      string
	AttackerIP    string
}{
	UserEmail:     "user@example.com",
	OverrideEmail: "alias@example.com",
	ClientIP:      "198.51.100.7",
	AttackerIP:    "203.0.113.99",
}
