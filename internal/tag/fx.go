package tag

import (
	changelogrepository "github.com/smallbiznis/rfidtrack/internal/changelog/repository"
	"github.com/smallbiznis/rfidtrack/internal/tag/repository"
	"github.com/smallbiznis/rfidtrack/internal/tag/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tag.service",
	fx.Provide(repository.Provide),
	fx.Provide(changelogrepository.Provide),
	fx.Provide(service.NewService),
)
