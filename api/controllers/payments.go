package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalpayments "github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type cardPaymentRequest struct {
	Number       string `json:"number" validate:"required,max=8,numeric"`
	HolderName   string `json:"holder_name" validate:"required,max=255"`
	ExpiryMonth  string `json:"expiry_month" validate:"required,len=2,numeric"`
	ExpiryYear   string `json:"expiry_year" validate:"required,len=4,numeric"`
	SecurityCode string `json:"security_code" validate:"required,len=3,numeric"`
}

type accountPaymentRequest struct {
	Number string `json:"number" validate:"required,max=8,numeric"`
}

type paymentView struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	PaymentType string    `json:"payment_type"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func buildPaymentView(payment *models.Payment) paymentView {
	return paymentView{
		ID:          payment.ID,
		OrderID:     payment.OrderID,
		PaymentType: payment.PaymentType.String(),
		Status:      payment.Status.String(),
		CreatedAt:   payment.CreatedAt,
	}
}

// PayOrder accepts a card payment for the caller's own order and queues it
// for settlement.
func PayOrder(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cardPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.SubmitPayment(r.Context(), internalpayments.SubmitPaymentInput{
			OrderID:      orderID,
			Identity:     identity,
			PaymentType:  enums.PaymentTypeCard,
			Number:       req.Number,
			HolderName:   &req.HolderName,
			ExpiryMonth:  &req.ExpiryMonth,
			ExpiryYear:   &req.ExpiryYear,
			SecurityCode: &req.SecurityCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, buildPaymentView(payment))
	}
}

// PayForOrder accepts a payment for the caller's order from a random account.
// The account does not have to belong to the caller; the order does.
func PayForOrder(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req accountPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payment, err := svc.SubmitPayment(r.Context(), internalpayments.SubmitPaymentInput{
			OrderID:     orderID,
			Identity:    identity,
			PaymentType: enums.PaymentTypeAccount,
			Number:      req.Number,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusAccepted, buildPaymentView(payment))
	}
}

// PaymentStatus reports the settlement state of the order's latest payment.
func PaymentStatus(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing"))
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.Status(r.Context(), identity, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}

// GenerateAccount returns a fresh even account number for demo payments.
func GenerateAccount(svc internalpayments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		number := svc.GenerateAccountNumber(r.Context())
		responses.WriteSuccess(w, map[string]string{"number": number})
	}
}
