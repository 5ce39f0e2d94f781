package claims

import (
	"context"

	"github.com/rs/zerolog"
)

// Bounds for the top-providers report size.
const (
	MinTopProvidersLimit     = 1
	MaxTopProvidersLimit     = 100
	DefaultTopProvidersLimit = 10
)

// ReportService answers aggregate queries over persisted claim lines.
type ReportService struct {
	repo   Repository
	cache  *RankingCache
	logger zerolog.Logger
}

func NewReportService(repo Repository, logger zerolog.Logger) *ReportService {
	return &ReportService{repo: repo, logger: logger}
}

// SetCache attaches an optional ranking cache. Pass nil to disable caching.
func (s *ReportService) SetCache(c *RankingCache) {
	s.cache = c
}

// TopProviders returns up to limit providers ordered by total net fees. The
// result is never nil. Cache failures are logged and fall through to the
// repository.
func (s *ReportService) TopProviders(ctx context.Context, limit int) ([]*ProviderRanking, error) {
	if limit < MinTopProvidersLimit || limit > MaxTopProvidersLimit {
		return nil, ErrInvalidLimit
	}

	items, ok, err := s.cache.Get(ctx, limit)
	if err != nil {
		s.logger.Warn().Err(err).Int("limit", limit).Msg("ranking cache read failed")
	}
	if ok {
		return items, nil
	}

	items, err = s.repo.TopProvidersByNetFee(ctx, limit)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []*ProviderRanking{}
	}

	if err := s.cache.Set(ctx, limit, items); err != nil {
		s.logger.Warn().Err(err).Int("limit", limit).Msg("ranking cache write failed")
	}
	return items, nil
}
