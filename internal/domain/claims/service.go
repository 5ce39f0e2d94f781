package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/claims/claims/internal/platform/auth"
)

// Service processes incoming claims: validate, persist atomically, then hand
// the result to the payment system.
type Service struct {
	repo     Repository
	notifier PaymentNotifier
	cache    *RankingCache
	logger   zerolog.Logger
}

func NewService(repo Repository, notifier PaymentNotifier, logger zerolog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, logger: logger}
}

// SetCache attaches the ranking cache to invalidate after each new claim.
func (s *Service) SetCache(c *RankingCache) {
	s.cache = c
}

// ProcessClaim validates req, persists the claim with its lines and notifies
// the payment system. The returned error is a *ValidationError, wraps
// ErrDuplicateReference, or is a *PersistenceError. A failed payment
// hand-off is not an error: the claim is returned with status
// payment_pending.
func (s *Service) ProcessClaim(ctx context.Context, req CreateClaimRequest) (*Claim, error) {
	valid, err := ValidateClaimRequest(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByReference(ctx, valid.ClaimReference)
	switch {
	case err == nil && existing != nil:
		return nil, duplicateReference(valid.ClaimReference)
	case err != nil && !errors.Is(err, ErrNotFound):
		s.logger.Error().Err(err).Str("claim_reference", valid.ClaimReference).Msg("duplicate check failed")
		return nil, err
	}

	claim, err := s.repo.CreateWithLines(ctx, valid.ClaimReference, valid.Lines)
	if err != nil {
		if !errors.Is(err, ErrDuplicateReference) {
			s.logger.Error().Err(err).Str("claim_reference", valid.ClaimReference).Msg("claim persistence failed")
		}
		return nil, err
	}

	s.logger.Info().
		Int64("claim_id", claim.ID).
		Str("claim_reference", claim.ClaimReference).
		Str("submitted_by", auth.UserIDFromContext(ctx)).
		Int("lines", len(claim.Lines)).
		Str("total_net_fee", claim.TotalNetFee.String()).
		Msg("claim processed")

	if err := s.notify(ctx, claim); err != nil {
		s.logger.Warn().Err(err).Int64("claim_id", claim.ID).Msg("payment hand-off failed")
		if err := s.repo.UpdateStatus(context.WithoutCancel(ctx), claim.ID, StatusPaymentPending); err != nil {
			s.logger.Error().Err(err).Int64("claim_id", claim.ID).Msg("mark claim payment_pending")
		} else {
			claim.Status = StatusPaymentPending
		}
	}

	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn().Err(err).Msg("ranking cache invalidation failed")
	}
	return claim, nil
}

func (s *Service) notify(ctx context.Context, claim *Claim) error {
	if s.notifier == nil {
		return nil
	}
	req := PaymentRequest{
		ClaimID:        claim.ID,
		ClaimReference: claim.ClaimReference,
		TotalNetFee:    claim.TotalNetFee,
		IdempotencyKey: NewIdempotencyKey(claim.ID),
	}
	if err := s.notifier.Notify(ctx, req); err != nil {
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}
	return nil
}

func (s *Service) GetClaim(ctx context.Context, id int64) (*Claim, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetClaimByReference(ctx context.Context, reference string) (*Claim, error) {
	return s.repo.GetByReference(ctx, reference)
}
