package catalog

import (
	"github.com/smallbiznis/rfidtrack/internal/cache"
	"github.com/smallbiznis/rfidtrack/internal/catalog/repository"
	"github.com/smallbiznis/rfidtrack/internal/catalog/service"
	"github.com/smallbiznis/rfidtrack/internal/clock"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideSuggestionCache),
	fx.Provide(service.NewService),
)

func provideSuggestionCache(c clock.Clock, cfg config.Config) cache.SuggestionCache {
	return cache.NewSuggestionCache(c, cfg.Catalog.SuggestTTL)
}
