package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/delivery"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Pricer resolves the effective price of a product at order time.
type Pricer interface {
	CurrentPrice(ctx context.Context, product models.Product) decimal.Decimal
}

// Service defines order lifecycle operations.
type Service interface {
	CreateFromBasket(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error)
	SubmitCheckout(ctx context.Context, input CheckoutInput) (*models.Order, error)
	Detail(ctx context.Context, identity Identity, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, identity Identity) ([]models.Order, error)
}

type service struct {
	repo     Repository
	catalog  catalog.Repository
	pricing  Pricer
	delivery delivery.Calculator
	tx       txRunner
	logg     *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(
	repo Repository,
	catalogRepo catalog.Repository,
	pricer Pricer,
	deliveryCalc delivery.Calculator,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("price resolver required")
	}
	if deliveryCalc == nil {
		return nil, fmt.Errorf("delivery calculator required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     repo,
		catalog:  catalogRepo,
		pricing:  pricer,
		delivery: deliveryCalc,
		tx:       tx,
		logg:     logg,
	}, nil
}

// CreateFromBasket opens a pending order from the submitted basket. Unknown
// and inactive products are dropped rather than failing the whole basket;
// every drop is reported back to the caller and logged.
func (s *service) CreateFromBasket(ctx context.Context, input CreateOrderInput) (*CreateOrderResult, error) {
	if !input.Identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "basket is empty")
	}
	requested := make(map[uuid.UUID]int, len(input.Items))
	requestedIDs := make([]uuid.UUID, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if item.Count < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item count must be at least 1")
		}
		if _, seen := requested[item.ProductID]; !seen {
			requestedIDs = append(requestedIDs, item.ProductID)
		}
		// Duplicate basket positions collapse into one line item.
		requested[item.ProductID] += item.Count
	}

	var result CreateOrderResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		catalogRepo := s.catalog.WithTx(tx)

		products, err := catalogRepo.FindActiveProducts(ctx, requestedIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load basket products")
		}
		byID := make(map[uuid.UUID]models.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		newOrder := &models.Order{
			UserID:    input.Identity.UserID,
			SessionID: input.Identity.SessionID,
			Status:    enums.OrderStatusPending,
			IsActive:  true,
		}

		items := make([]models.OrderItem, 0, len(requestedIDs))
		skipped := make([]SkippedItem, 0)
		for _, productID := range requestedIDs {
			product, ok := byID[productID]
			if !ok {
				skipped = append(skipped, SkippedItem{
					ProductID: productID,
					Reason:    "product unavailable",
				})
				continue
			}
			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Price:     s.pricing.CurrentPrice(ctx, product),
				Count:     requested[productID],
			})
		}
		if len(skipped) > 0 {
			ctx := s.logg.WithField(ctx, "skipped_count", len(skipped))
			s.logg.Warn(ctx, "basket contained unavailable products")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "no purchasable items in basket").
				WithDetails(map[string]any{"skipped_items": skipped})
		}

		created, err := repo.CreateOrder(ctx, newOrder)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range items {
			items[i].OrderID = created.ID
		}
		if err := repo.CreateOrderItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}

		created.Items = items
		created.TotalCost = created.ProductsTotal()
		if err := repo.UpdateOrder(ctx, created.ID, map[string]any{"total_cost": created.TotalCost}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store order total")
		}

		result = CreateOrderResult{Order: created, Skipped: skipped}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, result.Order.ID.String())

	// Popularity counters are best effort; a failed increment never unwinds
	// the committed order.
	for _, item := range result.Order.Items {
		if err := s.catalog.IncrementPurchases(ctx, item.ProductID, item.Count); err != nil {
			s.logg.Error(ctx, "incrementing purchases count", err)
		}
	}

	s.logg.Info(ctx, "order created from basket")
	return &result, nil
}

// SubmitCheckout stores the contact and delivery details, fixes the total to
// the snapshot items total plus the delivery cost in effect right now, and
// moves the order to accepted. A buyer may resubmit checkout on an accepted
// order to change delivery details until a payment settles.
func (s *service) SubmitCheckout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	if !input.Identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.DeliveryType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown delivery type")
	}
	if !input.PaymentType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown payment type")
	}

	var checkedOut *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForUpdate(ctx, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if !ownedBy(order, input.Identity) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.IsPayable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be checked out")
		}

		productsTotal := order.ProductsTotal()
		deliveryCost, err := s.delivery.CostFor(ctx, input.DeliveryType, productsTotal)
		if err != nil {
			return err
		}

		totalCost := productsTotal.Add(deliveryCost)
		updates := map[string]any{
			"full_name":     input.FullName,
			"email":         input.Email,
			"phone":         input.Phone,
			"city":          input.City,
			"address":       input.Address,
			"comment":       input.Comment,
			"delivery_type": input.DeliveryType,
			"payment_type":  input.PaymentType,
			"total_cost":    totalCost,
			"status":        enums.OrderStatusAccepted,
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		order.FullName = input.FullName
		order.Email = input.Email
		order.Phone = input.Phone
		order.City = input.City
		order.Address = input.Address
		order.Comment = input.Comment
		order.DeliveryType = input.DeliveryType
		order.PaymentType = input.PaymentType
		order.TotalCost = totalCost
		order.Status = enums.OrderStatusAccepted
		checkedOut = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithOrderID(ctx, checkedOut.ID.String())
	s.logg.Info(ctx, "order checkout accepted")
	return checkedOut, nil
}

func (s *service) Detail(ctx context.Context, identity Identity, orderID uuid.UUID) (*models.Order, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !ownedBy(order, identity) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, identity Identity) ([]models.Order, error) {
	if !identity.Valid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	list, err := s.repo.ListOrders(ctx, identity)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

// ownedBy checks the order against the caller's identity. A user-owned order
// is never visible through a session handle and vice versa.
func ownedBy(order *models.Order, identity Identity) bool {
	if order.UserID != nil {
		return identity.UserID != nil && *identity.UserID == *order.UserID
	}
	if order.SessionID != nil {
		return identity.SessionID != nil && *identity.SessionID == *order.SessionID
	}
	return false
}
