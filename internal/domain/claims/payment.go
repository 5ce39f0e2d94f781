package claims

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/claims/claims/internal/platform/webhook"
)

// PaymentNotifier hands a processed claim to the payment system. Delivery is
// fire-and-forget from the caller's point of view: a returned error is
// recorded against the claim but never undoes it.
//
// Notify runs inside the create request, so its latency adds to every
// claim submission. Implementations must return promptly; WebhookNotifier
// waits at most webhook.DefaultTimeout for the receiver's acknowledgement.
type PaymentNotifier interface {
	Notify(ctx context.Context, req PaymentRequest) error
}

// NewIdempotencyKey returns a key unique to one notification attempt for
// claimID, e.g. "claim-42-1b4e28ba-2fa1-11d2-883f-0016d3cca427".
func NewIdempotencyKey(claimID int64) string {
	return fmt.Sprintf("claim-%d-%s", claimID, uuid.New().String())
}

// LogNotifier records payment requests in the log instead of sending them.
// It is the notifier used when no payment system is configured.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "payment").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, req PaymentRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.logger.Info().
		Int64("claim_id", req.ClaimID).
		Str("claim_reference", req.ClaimReference).
		Str("total_net_fee", req.TotalNetFee.String()).
		Str("idempotency_key", req.IdempotencyKey).
		Msg("payment request queued")
	return nil
}

// WebhookNotifier POSTs each payment request as JSON to the payment system.
// A failed delivery is returned to the caller as is; redelivery is up to the
// payment side.
type WebhookNotifier struct {
	sender *webhook.Sender
	logger zerolog.Logger
}

func NewWebhookNotifier(sender *webhook.Sender, logger zerolog.Logger) *WebhookNotifier {
	return &WebhookNotifier{sender: sender, logger: logger.With().Str("component", "payment").Logger()}
}

func (n *WebhookNotifier) Notify(ctx context.Context, req PaymentRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode payment request: %w", err)
	}

	attempt, err := n.sender.Send(ctx, payload, req.IdempotencyKey)
	if err != nil {
		n.logger.Warn().Err(err).
			Int64("claim_id", req.ClaimID).
			Int("status", attempt.StatusCode).
			Dur("duration", attempt.Duration).
			Msg("payment delivery failed")
		return err
	}

	n.logger.Info().
		Int64("claim_id", req.ClaimID).
		Str("claim_reference", req.ClaimReference).
		Str("idempotency_key", req.IdempotencyKey).
		Dur("duration", attempt.Duration).
		Msg("payment request delivered")
	return nil
}
