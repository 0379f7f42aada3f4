package delivery

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Calculator prices delivery for an order.
type Calculator interface {
	CostFor(ctx context.Context, deliveryType enums.DeliveryType, productsTotal decimal.Decimal) (decimal.Decimal, error)
}

type calculator struct {
	store Store
}

// NewCalculator builds a delivery cost calculator on top of the settings store.
func NewCalculator(store Store) (Calculator, error) {
	if store == nil {
		return nil, fmt.Errorf("delivery settings store required")
	}
	return &calculator{store: store}, nil
}

// CostFor applies the delivery pricing rule. Express always costs the express
// rate. Standard delivery is free once the products total reaches the
// threshold, inclusive, and costs the regular rate below it.
func (c *calculator) CostFor(ctx context.Context, deliveryType enums.DeliveryType, productsTotal decimal.Decimal) (decimal.Decimal, error) {
	settings, err := c.store.Get(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return CostWith(*settings, deliveryType, productsTotal)
}

// CostWith is the pure rule used by CostFor, split out so callers holding a
// settings row can price without another read.
func CostWith(settings models.DeliverySettings, deliveryType enums.DeliveryType, productsTotal decimal.Decimal) (decimal.Decimal, error) {
	switch deliveryType {
	case enums.DeliveryTypeExpress:
		return settings.ExpressDeliveryCost, nil
	case enums.DeliveryTypeStandard:
		if productsTotal.GreaterThanOrEqual(settings.FreeDeliveryThreshold) {
			return decimal.Zero, nil
		}
		return settings.RegularDeliveryCost, nil
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery type").
			WithDetails(map[string]any{"delivery_type": string(deliveryType)})
	}
}
