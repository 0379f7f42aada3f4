package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	internalorders "github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type basketItemRequest struct {
	ProductID string `json:"id" validate:"required,uuid"`
	Count     int    `json:"count" validate:"required,min=1"`
}

type createOrderRequest struct {
	Items []basketItemRequest `json:"items" validate:"required,min=1,dive"`
}

type checkoutRequest struct {
	FullName     string `json:"full_name" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,max=32"`
	City         string `json:"city" validate:"required,max=255"`
	Address      string `json:"address" validate:"required,max=512"`
	Comment      string `json:"comment" validate:"max=1024"`
	DeliveryType string `json:"delivery_type" validate:"required,oneof=standard express"`
	PaymentType  string `json:"payment_type" validate:"required,oneof=card account"`
}

type orderItemView struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Price      decimal.Decimal `json:"price"`
	Count      int             `json:"count"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type orderView struct {
	ID            uuid.UUID       `json:"id"`
	Status        string          `json:"status"`
	DeliveryType  string          `json:"delivery_type"`
	PaymentType   string          `json:"payment_type"`
	FullName      string          `json:"full_name,omitempty"`
	Email         string          `json:"email,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	City          string          `json:"city,omitempty"`
	Address       string          `json:"address,omitempty"`
	Comment       string          `json:"comment,omitempty"`
	ProductsTotal decimal.Decimal `json:"products_total"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Items         []orderItemView `json:"items"`
	CreatedAt     time.Time       `json:"created_at"`
}

type createOrderView struct {
	Order        orderView                    `json:"order"`
	SkippedItems []internalorders.SkippedItem `json:"skipped_items"`
}

func buildOrderView(order *models.Order) orderView {
	items := make([]orderItemView, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemView{
			ProductID:  item.ProductID,
			Price:      item.Price,
			Count:      item.Count,
			TotalPrice: item.TotalPrice(),
		})
	}
	return orderView{
		ID:            order.ID,
		Status:        order.Status.String(),
		DeliveryType:  order.DeliveryType.String(),
		PaymentType:   order.PaymentType.String(),
		FullName:      order.FullName,
		Email:         order.Email,
		Phone:         order.Phone,
		City:          order.City,
		Address:       order.Address,
		Comment:       order.Comment,
		ProductsTotal: order.ProductsTotal(),
		TotalCost:     order.TotalCost,
		Items:         items,
		CreatedAt:     order.CreatedAt,
	}
}

// CreateOrder opens a pending order from the submitted basket.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]internalorders.BasketItem, 0, len(req.Items))
		for _, item := range req.Items {
			productID, err := uuid.Parse(item.ProductID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			items = append(items, internalorders.BasketItem{ProductID: productID, Count: item.Count})
		}

		result, err := svc.CreateFromBasket(r.Context(), internalorders.CreateOrderInput{
			Identity: identity,
			Items:    items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, createOrderView{
			Order:        buildOrderView(result.Order),
			SkippedItems: result.Skipped,
		})
	}
}

// SubmitCheckout finalizes a pending order with contact and delivery details.
func SubmitCheckout(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.SubmitCheckout(r.Context(), internalorders.CheckoutInput{
			OrderID:      orderID,
			Identity:     identity,
			FullName:     req.FullName,
			Email:        req.Email,
			Phone:        req.Phone,
			City:         req.City,
			Address:      req.Address,
			Comment:      req.Comment,
			DeliveryType: enums.DeliveryType(req.DeliveryType),
			PaymentType:  enums.PaymentType(req.PaymentType),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buildOrderView(order))
	}
}

// ListOrders returns the caller's active orders, newest first.
func ListOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := middleware.IdentityFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing"))
			return
		}

		list, err := svc.List(r.Context(), identity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]orderView, 0, len(list))
		for i := range list {
			views = append(views, buildOrderView(&list[i]))
		}
		responses.WriteSuccess(w, views)
	}
}

// OrderDetail returns one order with its line items.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
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

		order, err := svc.Detail(r.Context(), identity, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, buildOrderView(order))
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
