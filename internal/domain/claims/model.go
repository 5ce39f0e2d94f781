package claims

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a claim. This package only moves claims
// through processing -> processed (and processed -> payment_pending when the
// payment hand-off fails); the remaining states belong to the payment side.
type Status string

const (
	StatusPending        Status = "pending"
	StatusProcessing     Status = "processing"
	StatusProcessed      Status = "processed"
	StatusPaymentPending Status = "payment_pending"
	StatusPaymentFailed  Status = "payment_failed"
	StatusCompleted      Status = "completed"
)

var validStatuses = map[Status]bool{
	StatusPending: true, StatusProcessing: true, StatusProcessed: true,
	StatusPaymentPending: true, StatusPaymentFailed: true, StatusCompleted: true,
}

// Valid reports whether s is one of the accepted claim states.
func (s Status) Valid() bool {
	return validStatuses[s]
}

// MoneyPlaces is the number of fractional digits carried by every amount.
const MoneyPlaces = 2

// Money is an exact decimal currency amount. It accepts JSON numbers or
// strings and always renders with two fractional digits ("81.25", "0.00").
type Money struct {
	decimal.Decimal
}

// NewMoney parses a decimal string such as "130.00".
func NewMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, err
	}
	return Money{d}, nil
}

// MustMoney is NewMoney for constants; it panics on malformed input.
func MustMoney(s string) Money {
	m, err := NewMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// String renders the amount with exactly two fractional digits.
func (m Money) String() string {
	return m.StringFixed(MoneyPlaces)
}

// MarshalJSON renders the amount as a quoted fixed-point string.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// Equal compares amounts by value, ignoring representation ("1.5" == "1.50").
func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// ClaimLineInput is one submitted line item before validation.
type ClaimLineInput struct {
	ServiceDate        pgtype.Date `json:"service_date"`
	SubmittedProcedure string      `json:"submitted_procedure" validate:"required,max=50"`
	Quadrant           *string     `json:"quadrant,omitempty" validate:"omitempty,max=10"`
	PlanGroup          string      `json:"plan_group" validate:"required,max=50"`
	SubscriberNumber   string      `json:"subscriber_number" validate:"required,max=50"`
	ProviderNPI        string      `json:"provider_npi" validate:"required"`
	ProviderFees       *Money      `json:"provider_fees" validate:"required"`
	AllowedFees        *Money      `json:"allowed_fees" validate:"required"`
	MemberCoinsurance  *Money      `json:"member_coinsurance" validate:"required"`
	MemberCopay        *Money      `json:"member_copay" validate:"required"`
}

// CreateClaimRequest is the inbound request to process a claim.
type CreateClaimRequest struct {
	ClaimReference string           `json:"claim_reference" validate:"required,max=100"`
	Lines          []ClaimLineInput `json:"lines"`
}

// ClaimLine is a persisted line item. It is owned by exactly one Claim;
// ClaimID is the back-reference used for lookup only.
type ClaimLine struct {
	ID                 int64       `db:"id" json:"id"`
	ClaimID            int64       `db:"claim_id" json:"claim_id"`
	ServiceDate        pgtype.Date `db:"service_date" json:"service_date"`
	SubmittedProcedure string      `db:"submitted_procedure" json:"submitted_procedure"`
	Quadrant           *string     `db:"quadrant" json:"quadrant"`
	PlanGroup          string      `db:"plan_group" json:"plan_group"`
	SubscriberNumber   string      `db:"subscriber_number" json:"subscriber_number"`
	ProviderNPI        string      `db:"provider_npi" json:"provider_npi"`
	ProviderFees       Money       `db:"provider_fees" json:"provider_fees"`
	AllowedFees        Money       `db:"allowed_fees" json:"allowed_fees"`
	MemberCoinsurance  Money       `db:"member_coinsurance" json:"member_coinsurance"`
	MemberCopay        Money       `db:"member_copay" json:"member_copay"`
	NetFee             Money       `db:"net_fee" json:"net_fee"`
	CreatedAt          time.Time   `db:"created_at" json:"created_at"`
}

// newClaimLine builds the record for a validated input, computing its net
// fee. The net fee is fixed here and never recomputed. in must have passed
// ValidateLine, which guarantees the amounts are present.
func newClaimLine(claimID int64, in ClaimLineInput) *ClaimLine {
	return &ClaimLine{
		ClaimID:            claimID,
		ServiceDate:        in.ServiceDate,
		SubmittedProcedure: in.SubmittedProcedure,
		Quadrant:           in.Quadrant,
		PlanGroup:          in.PlanGroup,
		SubscriberNumber:   in.SubscriberNumber,
		ProviderNPI:        in.ProviderNPI,
		ProviderFees:       *in.ProviderFees,
		AllowedFees:        *in.AllowedFees,
		MemberCoinsurance:  *in.MemberCoinsurance,
		MemberCopay:        *in.MemberCopay,
		NetFee:             ComputeNetFee(*in.ProviderFees, *in.MemberCoinsurance, *in.MemberCopay, *in.AllowedFees),
	}
}

// Claim is a billing record with its owned, ordered lines.
type Claim struct {
	ID             int64        `db:"id" json:"id"`
	ClaimReference string       `db:"claim_reference" json:"claim_reference"`
	Status         Status       `db:"status" json:"status"`
	TotalNetFee    Money        `db:"total_net_fee" json:"total_net_fee"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
	Lines          []*ClaimLine `json:"lines"`
}

// ProviderRanking is one row of the top-providers report.
type ProviderRanking struct {
	ProviderNPI  string `json:"provider_npi"`
	TotalNetFees Money  `json:"total_net_fees"`
	ClaimCount   int64  `json:"claim_count"`
	Rank         int    `json:"rank"`
}

// PaymentRequest is handed to the payment collaborator once per persisted
// claim.
type PaymentRequest struct {
	ClaimID        int64  `json:"claim_id"`
	ClaimReference string `json:"claim_reference"`
	TotalNetFee    Money  `json:"total_net_fee"`
	IdempotencyKey string `json:"idempotency_key"`
}
