package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/rpattn/retailops/internal/domain"
)

// PriceListRepository reads the price-list snapshot consumed by the cascade.
type PriceListRepository interface {
	Snapshot(ctx context.Context) ([]domain.PriceListEntry, error)
}

// DiscountRepository resolves discounts referenced by id in quote requests.
type DiscountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Discount, error)
}
