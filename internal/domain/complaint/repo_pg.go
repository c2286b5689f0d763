package complaint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/intake/internal/domain/terminology"
)

type outcomeRepoPG struct {
	pool *pgxpool.Pool
}

// NewPGOutcomeRepo returns a ledger backed by the coding_outcome table.
func NewPGOutcomeRepo(pool *pgxpool.Pool) OutcomeRepository {
	return &outcomeRepoPG{pool: pool}
}

const outcomeColumns = `id, chief_complaint, status, code, display, error, received_at, duration_ms`

func (r *outcomeRepoPG) Create(ctx context.Context, o *CodingOutcome) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO coding_outcome (`+outcomeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.ChiefComplaint, string(o.Status), o.Code, o.Display, o.Error, o.ReceivedAt, o.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("insert coding outcome: %w", err)
	}
	return nil
}

func (r *outcomeRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CodingOutcome, error) {
	o, err := scanOutcome(r.pool.QueryRow(ctx, `SELECT `+outcomeColumns+` FROM coding_outcome WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOutcomeNotFound
	}
	return o, err
}

func (r *outcomeRepoPG) List(ctx context.Context, limit, offset int) ([]*CodingOutcome, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM coding_outcome`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+outcomeColumns+` FROM coding_outcome ORDER BY received_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var outcomes []*CodingOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, 0, err
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, total, rows.Err()
}

func scanOutcome(row pgx.Row) (*CodingOutcome, error) {
	var o CodingOutcome
	var status string
	err := row.Scan(&o.ID, &o.ChiefComplaint, &status, &o.Code, &o.Display, &o.Error, &o.ReceivedAt, &o.DurationMS)
	if err != nil {
		return nil, err
	}
	o.Status = terminology.Status(status)
	o.Duration = time.Duration(o.DurationMS) * time.Millisecond
	return &o, nil
}
