package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliverySettingsID is the fixed identity of the singleton settings row.
const DeliverySettingsID = 1

// DeliverySettings holds the global delivery pricing parameters. Exactly one
// row exists; the primary key is pinned to DeliverySettingsID and a CHECK
// constraint in the schema rejects any other id, so a concurrent first writer
// loses with a unique violation instead of creating a second row.
type DeliverySettings struct {
	ID                    int             `gorm:"column:id;primaryKey;check:delivery_settings_singleton,id = 1"`
	ExpressDeliveryCost   decimal.Decimal `gorm:"column:express_delivery_cost;type:numeric(10,2);not null"`
	FreeDeliveryThreshold decimal.Decimal `gorm:"column:free_delivery_threshold;type:numeric(10,2);not null"`
	RegularDeliveryCost   decimal.Decimal `gorm:"column:regular_delivery_cost;type:numeric(10,2);not null"`
	UpdatedAt             time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName keeps the historical table name.
func (DeliverySettings) TableName() string {
	return "delivery_settings"
}
