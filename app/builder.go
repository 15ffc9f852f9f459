package app

import (
	"fmt"

	"github.com/tech-arch1tect/magiccode/config"
	"github.com/tech-arch1tect/magiccode/database"
	"github.com/tech-arch1tect/magiccode/services/directory"
	"github.com/tech-arch1tect/magiccode/services/flood"
	"github.com/tech-arch1tect/magiccode/services/logging"
	"github.com/tech-arch1tect/magiccode/services/magiccode"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type AppBuilder struct {
	config    *config.Config
	services  map[string]bool
	models    []any
	fxOptions []fx.Option
	errors    []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{
		services:  make(map[string]bool),
		models:    make([]any, 0),
		fxOptions: make([]fx.Option, 0),
		errors:    make([]error, 0),
	}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithDatabase(models ...any) *AppBuilder {
	b.services["database"] = true
	b.models = append(b.models, models...)
	return b
}

func (b *AppBuilder) WithFlood() *AppBuilder {
	b.services["flood"] = true
	return b
}

// WithDirectory enables the database-backed user directory and client
// registry, including their models.
func (b *AppBuilder) WithDirectory() *AppBuilder {
	b.services["directory"] = true
	b.services["database"] = true
	b.models = append(b.models, &directory.User{}, &directory.Client{})
	return b
}

// WithMagicCode enables the magic code service with everything it
// needs: the database with the code model, the flood guard and the
// directory.
func (b *AppBuilder) WithMagicCode() *AppBuilder {
	b.services["magiccode"] = true
	b.services["flood"] = true
	b.models = append(b.models, &magiccode.MagicCode{})
	return b.WithDirectory()
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}

	if b.config == nil {
		if err := b.WithAutoConfig().validate(); err != nil {
			return nil, err
		}
	}

	logger, err := b.createLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := b.buildDatabase(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build services: %w", err)
	}

	app := &App{
		config: b.config,
		logger: logger,
		db:     db,
	}

	fxApp := fx.New(b.buildFxOptions(app, db, logger)...)
	app.fx = fxApp

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, fmt.Errorf("%s", msg))
}

func (b *AppBuilder) validate() error {
	if len(b.errors) > 0 {
		return fmt.Errorf("configuration errors: %v", b.errors)
	}

	if b.services["directory"] && !b.services["database"] {
		b.services["database"] = true
	}

	if b.services["magiccode"] && !b.services["database"] {
		return fmt.Errorf("magic codes require database support")
	}

	return nil
}

func (b *AppBuilder) createLogger() (*logging.Service, error) {
	if b.config == nil {
		return nil, fmt.Errorf("config required for logger creation")
	}

	return logging.NewService(logging.Config{
		Level:      logging.LogLevel(b.config.Log.Level),
		Format:     b.config.Log.Format,
		OutputPath: b.config.Log.Output,
	})
}

func (b *AppBuilder) buildDatabase(logger *logging.Service) (*gorm.DB, error) {
	if !b.services["database"] {
		return nil, nil
	}

	modelsOpt := &database.ModelsOption{}
	if len(b.models) > 0 {
		modelsOpt = database.WithModels(b.models...)
	}

	db, err := database.ProvideDatabase(*b.config, modelsOpt, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

func (b *AppBuilder) buildFxOptions(app *App, db *gorm.DB, logger *logging.Service) []fx.Option {
	options := []fx.Option{
		config.NewProvider(b.config),
		fx.Supply(logger),
		fx.NopLogger,
	}

	if db != nil {
		options = append(options, fx.Supply(db))
	}

	if b.services["flood"] {
		options = append(options, flood.Module)
		options = append(options, fx.Invoke(func(guard flood.Guard) {
			app.flood = guard
		}))
	}

	if b.services["directory"] {
		options = append(options, directory.Module)
	}

	if b.services["magiccode"] {
		options = append(options, magiccode.Module)
		options = append(options, fx.Invoke(func(svc *magiccode.Service, collector *magiccode.Collector) {
			app.magicCode = svc
			app.collector = collector
		}))
	}

	options = append(options, b.fxOptions...)

	return options
}
