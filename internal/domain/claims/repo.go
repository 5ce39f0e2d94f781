package claims

import (
	"context"
)

// Repository is the persistence boundary for claims and their lines.
type Repository interface {
	// CreateWithLines inserts a claim and all of its lines as one unit of
	// work, computing each line's net fee and the claim total. It returns an
	// error wrapping ErrDuplicateReference when reference is taken, and a
	// *PersistenceError for storage faults. Nothing is written on failure.
	CreateWithLines(ctx context.Context, reference string, lines []ClaimLineInput) (*Claim, error)
	GetByID(ctx context.Context, id int64) (*Claim, error)
	GetByReference(ctx context.Context, reference string) (*Claim, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	// TopProvidersByNetFee ranks providers by summed line net fees,
	// descending, ties broken by NPI ascending.
	TopProvidersByNetFee(ctx context.Context, limit int) ([]*ProviderRanking, error)
}
