package directory

import (
	"github.com/tech-arch1tect/magiccode/services/logging"
	"github.com/tech-arch1tect/magiccode/services/magiccode"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewProvider(db *gorm.DB, logger *logging.Service) *Service {
	return NewService(db, logger)
}

func ProvideAsUserDirectory(svc *Service) magiccode.UserDirectory {
	return svc
}

func ProvideAsClientRegistry(svc *Service) magiccode.ClientRegistry {
	return svc
}

var Module = fx.Options(
	fx.Provide(NewProvider),
	fx.Provide(ProvideAsUserDirectory),
	fx.Provide(ProvideAsClientRegistry),
)
