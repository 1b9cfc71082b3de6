package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rpattn/retailops/internal/domain"
)

type priceListRepository struct {
	pool *pgxpool.Pool
}

// NewPriceListRepository wires a repository backed by pgxpool.
func NewPriceListRepository(pool *pgxpool.Pool) PriceListRepository {
	return &priceListRepository{pool: pool}
}

// Snapshot loads the full price list in stable insertion order. The cascade
// tie-break depends on list order, so the ordering clause matters.
func (r *priceListRepository) Snapshot(ctx context.Context) ([]domain.PriceListEntry, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT COALESCE(serial_number, ''),
		        COALESCE(item_code, ''),
		        COALESCE(product_group, ''),
		        COALESCE(family, ''),
		        COALESCE(material_description, ''),
		        COALESCE(pattern_code, ''),
		        normal_price,
		        special_price
		 FROM price_list
		 ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query price list: %w", err)
	}
	defer rows.Close()

	var entries []domain.PriceListEntry
	for rows.Next() {
		var (
			entry   domain.PriceListEntry
			special pgtype.Float8
		)
		if scanErr := rows.Scan(
			&entry.SerialNumber,
			&entry.ItemCode,
			&entry.Group,
			&entry.Family,
			&entry.MaterialDescription,
			&entry.PatternCode,
			&entry.NormalPrice,
			&special,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan price list entry: %w", scanErr)
		}
		if special.Valid {
			value := special.Float64
			entry.SpecialPrice = &value
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read price list: %w", err)
	}

	return entries, nil
}
