package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is the catalog entity referenced by orders. The storefront core
// treats it as read-only except for the purchase counter.
type Product struct {
	ID              uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title           string           `gorm:"column:title;not null"`
	Description     *string          `gorm:"column:description"`
	Price           decimal.Decimal  `gorm:"column:price;type:numeric(10,2);not null"`
	Tags            pq.StringArray   `gorm:"column:tags;type:text[];default:ARRAY[]::text[]"`
	PurchasesCount  int              `gorm:"column:purchases_count;not null;default:0"`
	IsActive        bool             `gorm:"column:is_active;not null;default:true"`
	DiscountWindows []DiscountWindow `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
