package claims

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claims/claims/internal/platform/db"
)

const pgUniqueViolation = "23505"

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type claimRepoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &claimRepoPG{pool: pool} }

func (r *claimRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const claimCols = `id, claim_reference, status, total_net_fee, created_at, updated_at`

const lineCols = `id, claim_id, service_date, submitted_procedure, quadrant,
	plan_group, subscriber_number, provider_npi,
	provider_fees, allowed_fees, member_coinsurance, member_copay, net_fee,
	created_at`

func (r *claimRepoPG) scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.ClaimReference, &c.Status, &c.TotalNetFee, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *claimRepoPG) scanLine(row pgx.Row) (*ClaimLine, error) {
	var l ClaimLine
	err := row.Scan(&l.ID, &l.ClaimID, &l.ServiceDate, &l.SubmittedProcedure, &l.Quadrant,
		&l.PlanGroup, &l.SubscriberNumber, &l.ProviderNPI,
		&l.ProviderFees, &l.AllowedFees, &l.MemberCoinsurance, &l.MemberCopay, &l.NetFee,
		&l.CreatedAt)
	return &l, err
}

func (r *claimRepoPG) CreateWithLines(ctx context.Context, reference string, lines []ClaimLineInput) (*Claim, error) {
	if len(lines) == 0 {
		return nil, &ValidationError{Line: -1, Field: "lines", Rule: RuleMinLines}
	}

	var created *Claim
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		q := r.conn(ctx)

		var exists bool
		if err := q.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM claims WHERE claim_reference = $1)`, reference).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return duplicateReference(reference)
		}

		c, err := r.scanClaim(q.QueryRow(ctx, `
			INSERT INTO claims (claim_reference, status, total_net_fee)
			VALUES ($1, $2, 0)
			RETURNING `+claimCols, reference, StatusProcessing))
		if err != nil {
			return err
		}

		c.Lines = make([]*ClaimLine, 0, len(lines))
		for _, in := range lines {
			l := newClaimLine(c.ID, in)
			if err := q.QueryRow(ctx, `
				INSERT INTO claim_lines (claim_id, service_date, submitted_procedure, quadrant,
					plan_group, subscriber_number, provider_npi,
					provider_fees, allowed_fees, member_coinsurance, member_copay, net_fee)
				VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
				RETURNING id, created_at`,
				l.ClaimID, l.ServiceDate, l.SubmittedProcedure, l.Quadrant,
				l.PlanGroup, l.SubscriberNumber, l.ProviderNPI,
				l.ProviderFees, l.AllowedFees, l.MemberCoinsurance, l.MemberCopay, l.NetFee,
			).Scan(&l.ID, &l.CreatedAt); err != nil {
				return err
			}
			c.Lines = append(c.Lines, l)
		}

		c.TotalNetFee = SumNetFees(c.Lines)
		c.Status = StatusProcessed
		if err := q.QueryRow(ctx, `
			UPDATE claims SET total_net_fee = $2, status = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`, c.ID, c.TotalNetFee, c.Status).Scan(&c.UpdatedAt); err != nil {
			return err
		}

		created = c
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateReference) {
			return nil, err
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, duplicateReference(reference)
		}
		return nil, &PersistenceError{Op: "create claim", Err: err}
	}
	return created, nil
}

func (r *claimRepoPG) GetByID(ctx context.Context, id int64) (*Claim, error) {
	c, err := r.scanClaim(r.conn(ctx).QueryRow(ctx, `SELECT `+claimCols+` FROM claims WHERE id = $1`, id))
	return r.withLines(ctx, c, err)
}

func (r *claimRepoPG) GetByReference(ctx context.Context, reference string) (*Claim, error) {
	c, err := r.scanClaim(r.conn(ctx).QueryRow(ctx, `SELECT `+claimCols+` FROM claims WHERE claim_reference = $1`, reference))
	return r.withLines(ctx, c, err)
}

func (r *claimRepoPG) withLines(ctx context.Context, c *Claim, err error) (*Claim, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get claim", Err: err}
	}

	rows, err := r.conn(ctx).Query(ctx, `SELECT `+lineCols+` FROM claim_lines WHERE claim_id = $1 ORDER BY id`, c.ID)
	if err != nil {
		return nil, &PersistenceError{Op: "get claim lines", Err: err}
	}
	defer rows.Close()

	c.Lines = []*ClaimLine{}
	for rows.Next() {
		l, err := r.scanLine(rows)
		if err != nil {
			return nil, &PersistenceError{Op: "scan claim line", Err: err}
		}
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate claim lines", Err: err}
	}
	return c, nil
}

func (r *claimRepoPG) UpdateStatus(ctx context.Context, id int64, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid claim status: %s", status)
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE claims SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return &PersistenceError{Op: "update claim status", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *claimRepoPG) TopProvidersByNetFee(ctx context.Context, limit int) ([]*ProviderRanking, error) {
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT provider_npi, SUM(net_fee) AS total_net_fees, COUNT(id) AS claim_count
		FROM claim_lines
		GROUP BY provider_npi
		ORDER BY total_net_fees DESC, provider_npi ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "top providers", Err: err}
	}
	defer rows.Close()

	items := []*ProviderRanking{}
	for rows.Next() {
		p := &ProviderRanking{Rank: len(items) + 1}
		if err := rows.Scan(&p.ProviderNPI, &p.TotalNetFees, &p.ClaimCount); err != nil {
			return nil, &PersistenceError{Op: "scan provider ranking", Err: err}
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate provider rankings", Err: err}
	}
	return items, nil
}
