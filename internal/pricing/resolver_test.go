package pricing

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

func day(value string) time.Time {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		panic(err)
	}
	return t
}

func TestResolveBasePriceWithoutWindows(t *testing.T) {
	product := models.Product{Price: decimal.RequireFromString("100.00")}

	res := Resolve(product, day("2026-08-25"))

	assert.True(t, res.Price.Equal(decimal.RequireFromString("100.00")))
	assert.False(t, res.Discounted())
	assert.False(t, res.Ambiguous)
}

func TestResolveSalePriceInsideWindow(t *testing.T) {
	product := models.Product{
		Price: decimal.RequireFromString("100.00"),
		DiscountWindows: []models.DiscountWindow{
			{
				ID:        uuid.New(),
				SalePrice: decimal.RequireFromString("70.00"),
				DateFrom:  day("2026-08-20"),
				DateTo:    day("2026-08-30"),
				IsActive:  true,
			},
		},
	}

	res := Resolve(product, day("2026-08-25"))

	assert.True(t, res.Price.Equal(decimal.RequireFromString("70.00")))
	assert.True(t, res.Discounted())
}

func TestResolveWindowBoundariesInclusive(t *testing.T) {
	window := models.DiscountWindow{
		ID:        uuid.New(),
		SalePrice: decimal.RequireFromString("70.00"),
		DateFrom:  day("2026-08-20"),
		DateTo:    day("2026-08-30"),
		IsActive:  true,
	}
	product := models.Product{
		Price:           decimal.RequireFromString("100.00"),
		DiscountWindows: []models.DiscountWindow{window},
	}

	assert.True(t, Resolve(product, day("2026-08-20")).Discounted(), "first day applies")
	assert.True(t, Resolve(product, day("2026-08-30")).Discounted(), "last day applies")
	assert.False(t, Resolve(product, day("2026-08-19")).Discounted())
	assert.False(t, Resolve(product, day("2026-08-31")).Discounted())
}

func TestResolveInactiveWindowIgnored(t *testing.T) {
	product := models.Product{
		Price: decimal.RequireFromString("100.00"),
		DiscountWindows: []models.DiscountWindow{
			{
				ID:        uuid.New(),
				SalePrice: decimal.RequireFromString("70.00"),
				DateFrom:  day("2026-08-20"),
				DateTo:    day("2026-08-30"),
				IsActive:  false,
			},
		},
	}

	res := Resolve(product, day("2026-08-25"))

	assert.True(t, res.Price.Equal(decimal.RequireFromString("100.00")))
	assert.False(t, res.Discounted())
}

func TestResolveAmbiguousPicksEarliestWindow(t *testing.T) {
	early := models.DiscountWindow{
		ID:        uuid.New(),
		SalePrice: decimal.RequireFromString("60.00"),
		DateFrom:  day("2026-08-10"),
		DateTo:    day("2026-08-30"),
		IsActive:  true,
	}
	late := models.DiscountWindow{
		ID:        uuid.New(),
		SalePrice: decimal.RequireFromString("50.00"),
		DateFrom:  day("2026-08-20"),
		DateTo:    day("2026-08-28"),
		IsActive:  true,
	}
	product := models.Product{
		Price:           decimal.RequireFromString("100.00"),
		DiscountWindows: []models.DiscountWindow{late, early},
	}

	res := Resolve(product, day("2026-08-25"))

	require.True(t, res.Ambiguous)
	assert.Equal(t, 2, res.MatchCount)
	assert.True(t, res.Price.Equal(early.SalePrice), "earliest date_from wins")
}

func TestResolveAmbiguousTieBrokenByID(t *testing.T) {
	a := models.DiscountWindow{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		SalePrice: decimal.RequireFromString("60.00"),
		DateFrom:  day("2026-08-20"),
		DateTo:    day("2026-08-30"),
		IsActive:  true,
	}
	b := models.DiscountWindow{
		ID:        uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		SalePrice: decimal.RequireFromString("50.00"),
		DateFrom:  day("2026-08-20"),
		DateTo:    day("2026-08-30"),
		IsActive:  true,
	}
	product := models.Product{
		Price:           decimal.RequireFromString("100.00"),
		DiscountWindows: []models.DiscountWindow{b, a},
	}

	res := Resolve(product, day("2026-08-25"))

	require.True(t, res.Ambiguous)
	assert.True(t, res.Price.Equal(a.SalePrice))
}

func TestOverlapsMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := day("2026-01-01")

	randomWindow := func() models.DiscountWindow {
		from := base.AddDate(0, 0, rng.Intn(60))
		return models.DiscountWindow{
			DateFrom: from,
			DateTo:   from.AddDate(0, 0, rng.Intn(14)),
		}
	}
	coveredDays := func(w models.DiscountWindow) map[string]bool {
		days := map[string]bool{}
		for d := w.DateFrom; !d.After(w.DateTo); d = d.AddDate(0, 0, 1) {
			days[d.Format("2006-01-02")] = true
		}
		return days
	}

	for i := 0; i < 500; i++ {
		a := randomWindow()
		b := randomWindow()

		shared := false
		bDays := coveredDays(b)
		for d := range coveredDays(a) {
			if bDays[d] {
				shared = true
				break
			}
		}

		require.Equal(t, shared, a.Overlaps(b), "windows %v-%v vs %v-%v",
			a.DateFrom.Format("2006-01-02"), a.DateTo.Format("2006-01-02"),
			b.DateFrom.Format("2006-01-02"), b.DateTo.Format("2006-01-02"))
		require.Equal(t, a.Overlaps(b), b.Overlaps(a), "overlap must be symmetric")
	}
}
