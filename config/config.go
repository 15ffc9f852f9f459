package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig       `envPrefix:"MAGICCODE_APP_"`
	Log       LogConfig       `envPrefix:"MAGICCODE_LOG_"`
	Database  DatabaseConfig  `envPrefix:"MAGICCODE_DATABASE_"`
	MagicCode MagicCodeConfig `envPrefix:"MAGICCODE_CODE_"`
	Flood     FloodConfig     `envPrefix:"MAGICCODE_FLOOD_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"magiccode"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"magiccode.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type MagicCodeConfig struct {
	CodeTTL                  time.Duration `env:"TTL" envDefault:"15m"`
	LoginPermittedOperations []string      `env:"LOGIN_PERMITTED_OPERATIONS" envSeparator:"," envDefault:"login,register"`
	CodeAlphabet             string        `env:"ALPHABET" envDefault:"123456789ABCDEFGHIJKLMNPQRSTUVWXYZ"`
	CodeLength               int           `env:"LENGTH" envDefault:"6"`
	MaxGenerationAttempts    int           `env:"MAX_GENERATION_ATTEMPTS" envDefault:"10"`
	CleanupPeriod            time.Duration `env:"CLEANUP_PERIOD" envDefault:"1h"`
	CleanupBatchSize         int           `env:"CLEANUP_BATCH_SIZE" envDefault:"0"`
}

type FloodConfig struct {
	IPLimit       int           `env:"IP_LIMIT" envDefault:"50"`
	IPWindow      time.Duration `env:"IP_WINDOW" envDefault:"1h"`
	UserLimit     int           `env:"USER_LIMIT" envDefault:"5"`
	UserWindow    time.Duration `env:"USER_WINDOW" envDefault:"1h"`
	Store         string        `env:"STORE" envDefault:"memory"`
	CleanupPeriod time.Duration `env:"CLEANUP_PERIOD" envDefault:"1h"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
