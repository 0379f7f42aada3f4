package pricing

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Resolution is the outcome of resolving a product's effective price for a
// given day.
type Resolution struct {
	Price      decimal.Decimal
	Window     *models.DiscountWindow
	Ambiguous  bool
	MatchCount int
}

// Discounted reports whether a sale window supplied the price.
func (r Resolution) Discounted() bool {
	return r.Window != nil
}

// Resolve returns the effective price of product on day. Active windows whose
// inclusive date range covers day take precedence over the base price. When
// more than one active window matches, the earliest by date_from wins, ties
// broken by id, and the resolution is flagged ambiguous so the caller can log
// the data problem.
func Resolve(product models.Product, day time.Time) Resolution {
	matched := make([]models.DiscountWindow, 0, 1)
	for _, w := range product.DiscountWindows {
		if w.IsActive && w.Covers(day) {
			matched = append(matched, w)
		}
	}
	if len(matched) == 0 {
		return Resolution{Price: product.Price}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].DateFrom.Equal(matched[j].DateFrom) {
			return matched[i].DateFrom.Before(matched[j].DateFrom)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	win := matched[0]
	return Resolution{
		Price:      win.SalePrice,
		Window:     &win,
		Ambiguous:  len(matched) > 1,
		MatchCount: len(matched),
	}
}
