package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/retailops/internal/domain"
)

type discountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository wires a repository backed by pgxpool.
func NewDiscountRepository(pool *pgxpool.Pool) DiscountRepository {
	return &discountRepository{pool: pool}
}

func (r *discountRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Discount, error) {
	var (
		discount domain.Discount
		percent  pgtype.Float8
		amount   pgtype.Float8
	)
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, name, percent, amount FROM discounts WHERE id = $1`,
		id,
	).Scan(&discount.ID, &discount.Name, &percent, &amount)
	if err != nil {
		return domain.Discount{}, fmt.Errorf("failed to get discount %s: %w", id, err)
	}

	if percent.Valid {
		value := percent.Float64
		discount.Percent = &value
	}
	if amount.Valid {
		value := amount.Float64
		discount.Amount = &value
	}
	return discount, nil
}
