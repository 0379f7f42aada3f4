package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	internaldelivery "github.com/angelmondragon/storefront-backend/internal/delivery"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type deliverySettingsView struct {
	ExpressDeliveryCost   decimal.Decimal `json:"express_delivery_cost"`
	FreeDeliveryThreshold decimal.Decimal `json:"free_delivery_threshold"`
	RegularDeliveryCost   decimal.Decimal `json:"regular_delivery_cost"`
}

// DeliverySettings exposes the current delivery pricing parameters.
func DeliverySettings(store internaldelivery.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := store.Get(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, deliverySettingsView{
			ExpressDeliveryCost:   settings.ExpressDeliveryCost,
			FreeDeliveryThreshold: settings.FreeDeliveryThreshold,
			RegularDeliveryCost:   settings.RegularDeliveryCost,
		})
	}
}
