package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountWindow is a time-bounded sale price for a product. Active windows
// of the same product must never overlap; the pricing service enforces that
// invariant transactionally at write time. Windows are deactivated, not
// deleted.
type DiscountWindow struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID       `gorm:"column:product_id;type:uuid;not null;index"`
	SalePrice decimal.Decimal `gorm:"column:sale_price;type:numeric(10,2);not null"`
	DateFrom  time.Time       `gorm:"column:date_from;type:date;not null"`
	DateTo    time.Time       `gorm:"column:date_to;type:date;not null"`
	IsActive  bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// Covers reports whether the window's inclusive date range contains day.
func (w DiscountWindow) Covers(day time.Time) bool {
	d := truncateToDay(day)
	return !d.Before(truncateToDay(w.DateFrom)) && !d.After(truncateToDay(w.DateTo))
}

// Overlaps reports whether two windows share at least one day.
func (w DiscountWindow) Overlaps(other DiscountWindow) bool {
	return !truncateToDay(w.DateFrom).After(truncateToDay(other.DateTo)) &&
		!truncateToDay(w.DateTo).Before(truncateToDay(other.DateFrom))
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
