package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rpattn/retailops/internal/domain"
	"github.com/rpattn/retailops/internal/repository"
)

// Service answers price quotes. Each quote queries a fresh price-list
// snapshot; the cascade itself requires no caching.
type Service struct {
	priceRepo    repository.PriceListRepository
	discountRepo repository.DiscountRepository
}

// NewService creates the pricing service.
func NewService(priceRepo repository.PriceListRepository, discountRepo repository.DiscountRepository) *Service {
	return &Service{priceRepo: priceRepo, discountRepo: discountRepo}
}

// QuoteRequest carries the sale context plus an optional discount, either by
// id or as an explicit amount.
type QuoteRequest struct {
	Context        domain.PriceContext
	DiscountID     *uuid.UUID
	DiscountAmount *float64
}

// Quote resolves the effective price for a sale and applies the discount.
// An unmatched context is not an error: the quote carries the not_found
// source and zero prices so the caller can block the sale or require manual
// entry.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (domain.PriceQuote, error) {
	if req.DiscountID != nil && req.DiscountAmount != nil {
		return domain.PriceQuote{}, errors.New("discountId and discountAmount are mutually exclusive")
	}

	entries, err := s.priceRepo.Snapshot(ctx)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("load price list: %w", err)
	}

	resolved := Resolve(entries, req.Context)

	quote := domain.PriceQuote{
		NormalPrice: resolved.NormalPrice,
		UnitPrice:   resolved.Price,
		FinalPrice:  resolved.Price,
		Source:      resolved.Source,
	}
	if resolved.Source == domain.PriceSourceNotFound {
		return quote, nil
	}

	switch {
	case req.DiscountAmount != nil:
		quote.DiscountAmount = *req.DiscountAmount
	case req.DiscountID != nil:
		discount, err := s.discountRepo.GetByID(ctx, *req.DiscountID)
		if err != nil {
			return domain.PriceQuote{}, fmt.Errorf("load discount: %w", err)
		}
		switch {
		case discount.Percent != nil:
			quote.DiscountAmount = quote.UnitPrice * *discount.Percent / 100
		case discount.Amount != nil:
			quote.DiscountAmount = *discount.Amount
		}
	}

	quote.FinalPrice = quote.UnitPrice - quote.DiscountAmount
	if quote.FinalPrice < 0 {
		quote.FinalPrice = 0
	}
	return quote, nil
}
