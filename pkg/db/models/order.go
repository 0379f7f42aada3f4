package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is the aggregate produced from a basket. TotalCost is persisted, not
// derived: it must reflect snapshot prices plus the delivery cost fixed at
// checkout time, regardless of later catalog changes.
type Order struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       *uuid.UUID         `gorm:"column:user_id;type:uuid;index"`
	SessionID    *string            `gorm:"column:session_id;index"`
	FullName     string             `gorm:"column:full_name;not null;default:''"`
	Email        string             `gorm:"column:email;not null;default:''"`
	Phone        string             `gorm:"column:phone;not null;default:''"`
	DeliveryType enums.DeliveryType `gorm:"column:delivery_type;type:text;not null;default:'standard'"`
	PaymentType  enums.PaymentType  `gorm:"column:payment_type;type:text;not null;default:'card'"`
	TotalCost    decimal.Decimal    `gorm:"column:total_cost;type:numeric(10,2);not null"`
	Status       enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	City         string             `gorm:"column:city;not null;default:''"`
	Address      string             `gorm:"column:address;not null;default:''"`
	Comment      string             `gorm:"column:comment;not null;default:''"`
	IsActive     bool               `gorm:"column:is_active;not null;default:true"`
	Items        []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payments     []Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductsTotal sums snapshot price times count over the loaded line items.
// It is recomputed from the items on every call so a caller can never observe
// a total that disagrees with the line items it just read.
func (o Order) ProductsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.TotalPrice())
	}
	return total
}
