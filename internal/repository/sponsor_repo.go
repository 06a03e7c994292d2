package repository

import (
	"context"
	"errors"
	"fmt"

	"wallet-service/internal/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SponsorRepository reads the sponsor forest. Cycle prevention happens
// at registration time, outside this service.
type SponsorRepository interface {
	GetSponsorID(ctx context.Context, userID int64) (*int64, error)
}

type sponsorRepo struct {
	db *pgxpool.Pool
}

func NewSponsorRepo(db *pgxpool.Pool) SponsorRepository {
	return &sponsorRepo{db: db}
}

// GetSponsorID returns nil when the user has no sponsor; the cascade
// stops there.
func (r *sponsorRepo) GetSponsorID(ctx context.Context, userID int64) (*int64, error) {
	var sponsorID *int64
	err := r.db.QueryRow(ctx,
		`SELECT sponsor_id FROM users WHERE id = $1`, userID,
	).Scan(&sponsorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get sponsor: %w", err)
	}

	return sponsorID, nil
}
