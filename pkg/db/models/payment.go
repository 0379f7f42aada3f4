package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Payment records one settlement attempt for an order. An order accumulates
// payments across retries; only the most recent one is authoritative for
// paid checks. Card metadata is present only for card payments.
type Payment struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID      uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	PaymentType  enums.PaymentType   `gorm:"column:payment_type;type:text;not null;default:'card'"`
	Number       string              `gorm:"column:number;not null"`
	HolderName   *string             `gorm:"column:holder_name"`
	ExpiryMonth  *string             `gorm:"column:expiry_month"`
	ExpiryYear   *string             `gorm:"column:expiry_year"`
	SecurityCode *string             `gorm:"column:security_code"`
	Status       enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	ErrorMessage *string             `gorm:"column:error_message"`
	ProcessedAt  *time.Time          `gorm:"column:processed_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
}
