package pricing

import "github.com/rpattn/retailops/internal/domain"

// Resolution is the outcome of the price cascade for one sale context.
type Resolution struct {
	NormalPrice float64
	Price       float64
	Source      domain.PriceSource
}

// Resolve runs the five-tier precedence cascade over a price-list snapshot.
// First match wins: serial number, then item code, then the scored
// best-candidate over family+material matches, then the generic candidate
// with empty group and pattern, then a not_found sentinel. Within any
// matched row the special price, when present, wins over the normal price.
//
// Resolve is pure: it never errors, and an unmatched context yields the
// not_found sentinel with price zero so callers decide fallback behaviour.
func Resolve(entries []domain.PriceListEntry, ctx domain.PriceContext) Resolution {
	if ctx.SerialNumber != "" {
		for _, entry := range entries {
			if entry.SerialNumber == ctx.SerialNumber {
				return resolution(entry, domain.PriceSourceSerial)
			}
		}
	}

	if ctx.ItemCode != "" {
		for _, entry := range entries {
			if entry.ItemCode == ctx.ItemCode {
				return resolution(entry, domain.PriceSourceItem)
			}
		}
	}

	// Among family+material matches, compute the generic candidate (group
	// and pattern both empty) and the best-scoring specific candidate.
	var (
		generic    *domain.PriceListEntry
		best       *domain.PriceListEntry
		bestScore  int
		classified = ctx.Group != "" || ctx.PatternCode != ""
	)
	for i := range entries {
		entry := &entries[i]
		if entry.Family != ctx.Family || entry.MaterialDescription != ctx.MaterialDescription {
			continue
		}
		if generic == nil && entry.Group == "" && entry.PatternCode == "" {
			generic = entry
		}
		if !classified {
			continue
		}
		score := 0
		if entry.Group != "" && entry.Group == ctx.Group {
			score++
		}
		if entry.PatternCode != "" && entry.PatternCode == ctx.PatternCode {
			score++
		}
		// Ties keep the first entry in list order.
		if score > bestScore {
			bestScore = score
			best = entry
		}
	}

	if best != nil && bestScore > 0 {
		return resolution(*best, domain.PriceSourceBest)
	}

	specific := ctx.SerialNumber != "" || ctx.ItemCode != "" || ctx.Group != "" || ctx.PatternCode != ""
	if specific && generic != nil {
		return resolution(*generic, domain.PriceSourceGeneric)
	}

	return Resolution{Source: domain.PriceSourceNotFound}
}

func resolution(entry domain.PriceListEntry, source domain.PriceSource) Resolution {
	return Resolution{
		NormalPrice: entry.NormalPrice,
		Price:       entry.EffectivePrice(),
		Source:      source,
	}
}
