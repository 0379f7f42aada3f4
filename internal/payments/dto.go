package payments

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// SubmitPaymentInput carries the payment instrument submitted for an order.
type SubmitPaymentInput struct {
	OrderID     uuid.UUID
	Identity    orders.Identity
	PaymentType enums.PaymentType
	Number      string

	// Card fields, absent for account payments.
	HolderName   *string
	ExpiryMonth  *string
	ExpiryYear   *string
	SecurityCode *string
}

// StatusNoPayment is reported when an order has no payment yet.
const StatusNoPayment = "no_payment"

// StatusView is the poll response for an order's payment state.
type StatusView struct {
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`
}
