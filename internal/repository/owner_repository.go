package repository

import (
	"context"

	"github.com/docexam/docexam-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OwnerRepository handles owner data access.
type OwnerRepository struct {
	pool *pgxpool.Pool
}

// NewOwnerRepository creates a new OwnerRepository.
func NewOwnerRepository(pool *pgxpool.Pool) *OwnerRepository {
	return &OwnerRepository{pool: pool}
}

// GetByID retrieves an owner by ID.
func (r *OwnerRepository) GetByID(ctx context.Context, id int) (*model.Owner, error) {
	o := &model.Owner{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, access_key_hash, created_at
		 FROM owners
		 WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &o.AccessKeyHash, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Create inserts a new owner. Only cmd/issue-key calls this; the HTTP
// surface never provisions owners.
func (r *OwnerRepository) Create(ctx context.Context, o *model.Owner) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO owners (name, access_key_hash)
		 VALUES ($1, $2)
		 RETURNING id, created_at`,
		o.Name, o.AccessKeyHash,
	).Scan(&o.ID, &o.CreatedAt)
}
