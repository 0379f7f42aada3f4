package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Identity is the buyer performing the operation. Orders belong either to an
// authenticated user or to an anonymous browser session.
type Identity struct {
	UserID    *uuid.UUID
	SessionID *string
}

// Valid reports whether the identity carries at least one owner handle.
func (i Identity) Valid() bool {
	return (i.UserID != nil && *i.UserID != uuid.Nil) ||
		(i.SessionID != nil && *i.SessionID != "")
}

// BasketItem is one requested catalog position.
type BasketItem struct {
	ProductID uuid.UUID
	Count     int
}

// CreateOrderInput carries the basket submitted to open an order.
type CreateOrderInput struct {
	Identity Identity
	Items    []BasketItem
}

// SkippedItem reports a basket position that could not be turned into a line
// item.
type SkippedItem struct {
	ProductID uuid.UUID `json:"product_id"`
	Reason    string    `json:"reason"`
}

// CreateOrderResult pairs the stored order with the basket positions that
// were dropped.
type CreateOrderResult struct {
	Order   *models.Order
	Skipped []SkippedItem
}

// CheckoutInput carries the contact and delivery details that finalize an
// order.
type CheckoutInput struct {
	OrderID      uuid.UUID
	Identity     Identity
	FullName     string
	Email        string
	Phone        string
	City         string
	Address      string
	Comment      string
	DeliveryType enums.DeliveryType
	PaymentType  enums.PaymentType
}
