package service

import (
	"context"
	"strings"
	"time"

	"github.com/smallbiznis/rfidtrack/internal/cache"
	"github.com/smallbiznis/rfidtrack/internal/catalog/domain"
	"github.com/smallbiznis/rfidtrack/internal/config"
	"github.com/smallbiznis/rfidtrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultSuggestLimit = 20
	maxSuggestLimit     = 200
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	Repo  domain.Repository
	Cache cache.SuggestionCache
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	cache    cache.SuggestionCache
	category string
	timeouts config.TimeoutConfig
}

func NewService(p Params) domain.Service {
	category := strings.ToUpper(strings.TrimSpace(p.Cfg.Catalog.ItemCategory))
	if category == "" {
		category = "BATT"
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("catalog.service"),
		repo:     p.Repo,
		cache:    p.Cache,
		category: category,
		timeouts: p.Cfg.Timeouts,
	}
}

// SuggestItems returns item codes containing query. Results may be up to
// one cache TTL stale.
func (s *Service) SuggestItems(ctx context.Context, query string, limit int) ([]string, error) {
	query = strings.ToUpper(strings.TrimSpace(query))
	if query == "" {
		return nil, domain.ErrInvalidQuery
	}
	if limit < 0 {
		return nil, domain.ErrInvalidLimit
	}
	if limit == 0 {
		limit = defaultSuggestLimit
	}
	if limit > maxSuggestLimit {
		limit = maxSuggestLimit
	}

	if items, ok := s.cache.GetSuggestions(query, limit); ok {
		return items, nil
	}

	var items []string
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.SearchItems(ctx, s.db, s.category, query, limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.SetSuggestions(query, limit, items)
	return items, nil
}

func (s *Service) ListAllItems(ctx context.Context) ([]string, error) {
	if items, ok := s.cache.GetAllItems(); ok {
		return items, nil
	}

	var items []string
	err := s.read(ctx, func(ctx context.Context) error {
		var err error
		items, err = s.repo.ListItems(ctx, s.db, s.category)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.cache.SetAllItems(items)
	return items, nil
}

func (s *Service) read(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := db.Ping(ctx, s.db, s.timeouts.Connect); err != nil {
		return err
	}

	if s.timeouts.Read > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeouts.Read)
		defer cancel()
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		err = db.TranslateErr(err)
		s.log.Warn("bom lookup failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return err
	}
	return nil
}
