package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubOrdersRepo struct {
	orders      map[uuid.UUID]*models.Order
	lastUpdates map[string]any
	createErr   error
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *stubOrdersRepo) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return nil
}

func (s *stubOrdersRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok || !order.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrdersRepo) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.FindOrder(ctx, id)
}

func (s *stubOrdersRepo) ListOrders(ctx context.Context, identity Identity) ([]models.Order, error) {
	var list []models.Order
	for _, order := range s.orders {
		if ownedBy(order, identity) {
			list = append(list, *order)
		}
	}
	return list, nil
}

func (s *stubOrdersRepo) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.lastUpdates = updates
	return nil
}

type stubCatalogRepo struct {
	products   map[uuid.UUID]models.Product
	increments map[uuid.UUID]int
	incErr     error
}

func newStubCatalogRepo(products ...models.Product) *stubCatalogRepo {
	byID := map[uuid.UUID]models.Product{}
	for _, p := range products {
		byID[p.ID] = p
	}
	return &stubCatalogRepo{products: byID, increments: map[uuid.UUID]int{}}
}

func (s *stubCatalogRepo) WithTx(tx *gorm.DB) catalog.Repository {
	return s
}

func (s *stubCatalogRepo) FindProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (s *stubCatalogRepo) FindActiveProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	var found []models.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok && p.IsActive {
			found = append(found, p)
		}
	}
	return found, nil
}

func (s *stubCatalogRepo) IncrementPurchases(ctx context.Context, id uuid.UUID, by int) error {
	if s.incErr != nil {
		return s.incErr
	}
	s.increments[id] += by
	return nil
}

type basePricePricer struct{}

func (basePricePricer) CurrentPrice(ctx context.Context, product models.Product) decimal.Decimal {
	return product.Price
}

type fixedCostCalculator struct {
	express decimal.Decimal
	regular decimal.Decimal
}

func (c fixedCostCalculator) CostFor(ctx context.Context, deliveryType enums.DeliveryType, productsTotal decimal.Decimal) (decimal.Decimal, error) {
	if deliveryType == enums.DeliveryTypeExpress {
		return c.express, nil
	}
	return c.regular, nil
}

type passthroughTxRunner struct{}

func (passthroughTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func activeProduct(price string) models.Product {
	return models.Product{
		ID:       uuid.New(),
		Title:    "test product",
		Price:    decimal.RequireFromString(price),
		IsActive: true,
	}
}

func userIdentity() Identity {
	id := uuid.New()
	return Identity{UserID: &id}
}

func sessionIdentity(session string) Identity {
	return Identity{SessionID: &session}
}

func newOrderService(t *testing.T, repo Repository, catalogRepo catalog.Repository) Service {
	t.Helper()
	svc, err := NewService(
		repo,
		catalogRepo,
		basePricePricer{},
		fixedCostCalculator{
			express: decimal.RequireFromString("500.00"),
			regular: decimal.RequireFromString("200.00"),
		},
		passthroughTxRunner{},
		logger.New(logger.Options{ServiceName: "test"}),
	)
	require.NoError(t, err)
	return svc
}

func TestCreateFromBasketSkipsUnavailableProducts(t *testing.T) {
	available := activeProduct("100.00")
	catalogRepo := newStubCatalogRepo(available)
	repo := newStubOrdersRepo()
	svc := newOrderService(t, repo, catalogRepo)

	missing := uuid.New()
	result, err := svc.CreateFromBasket(context.Background(), CreateOrderInput{
		Identity: userIdentity(),
		Items: []BasketItem{
			{ProductID: available.ID, Count: 2},
			{ProductID: missing, Count: 1},
		},
	})

	require.NoError(t, err)
	require.Len(t, result.Order.Items, 1)
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, missing, result.Skipped[0].ProductID)
	assert.Equal(t, enums.OrderStatusPending, result.Order.Status)
	assert.True(t, result.Order.TotalCost.Equal(decimal.RequireFromString("200.00")))
}

func TestCreateFromBasketFailsWhenNothingPurchasable(t *testing.T) {
	inactive := activeProduct("100.00")
	inactive.IsActive = false
	catalogRepo := newStubCatalogRepo(inactive)
	repo := newStubOrdersRepo()
	svc := newOrderService(t, repo, catalogRepo)

	_, err := svc.CreateFromBasket(context.Background(), CreateOrderInput{
		Identity: userIdentity(),
		Items:    []BasketItem{{ProductID: inactive.ID, Count: 1}},
	})

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Empty(t, repo.orders)
}

func TestCreateFromBasketCollapsesDuplicatePositions(t *testing.T) {
	product := activeProduct("50.00")
	catalogRepo := newStubCatalogRepo(product)
	repo := newStubOrdersRepo()
	svc := newOrderService(t, repo, catalogRepo)

	result, err := svc.CreateFromBasket(context.Background(), CreateOrderInput{
		Identity: sessionIdentity("sess-1"),
		Items: []BasketItem{
			{ProductID: product.ID, Count: 2},
			{ProductID: product.ID, Count: 3},
		},
	})

	require.NoError(t, err)
	require.Len(t, result.Order.Items, 1)
	assert.Equal(t, 5, result.Order.Items[0].Count)
	assert.True(t, result.Order.TotalCost.Equal(decimal.RequireFromString("250.00")))
}

func TestCreateFromBasketIncrementsPurchaseCounters(t *testing.T) {
	product := activeProduct("10.00")
	catalogRepo := newStubCatalogRepo(product)
	repo := newStubOrdersRepo()
	svc := newOrderService(t, repo, catalogRepo)

	_, err := svc.CreateFromBasket(context.Background(), CreateOrderInput{
		Identity: userIdentity(),
		Items:    []BasketItem{{ProductID: product.ID, Count: 4}},
	})

	require.NoError(t, err)
	assert.Equal(t, 4, catalogRepo.increments[product.ID])
}

func TestCreateFromBasketSurvivesCounterFailure(t *testing.T) {
	product := activeProduct("10.00")
	catalogRepo := newStubCatalogRepo(product)
	catalogRepo.incErr = fmt.Errorf("connection reset")
	repo := newStubOrdersRepo()
	svc := newOrderService(t, repo, catalogRepo)

	result, err := svc.CreateFromBasket(context.Background(), CreateOrderInput{
		Identity: userIdentity(),
		Items:    []BasketItem{{ProductID: product.ID, Count: 1}},
	})

	require.NoError(t, err)
	assert.Contains(t, repo.orders, result.Order.ID)
}

func TestCreateFromBasketValidation(t *testing.T) {
	svc := newOrderService(t, newStubOrdersRepo(), newStubCatalogRepo())

	cases := []struct {
		name  string
		input CreateOrderInput
		code  pkgerrors.Code
	}{
		{
			name:  "missing identity",
			input: CreateOrderInput{Items: []BasketItem{{ProductID: uuid.New(), Count: 1}}},
			code:  pkgerrors.CodeUnauthorized,
		},
		{
			name:  "empty basket",
			input: CreateOrderInput{Identity: userIdentity()},
			code:  pkgerrors.CodeValidation,
		},
		{
			name: "zero count",
			input: CreateOrderInput{
				Identity: userIdentity(),
				Items:    []BasketItem{{ProductID: uuid.New(), Count: 0}},
			},
			code: pkgerrors.CodeValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateFromBasket(context.Background(), tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, tc.code, typed.Code())
		})
	}
}

func pendingOrder(identity Identity, itemPrice string, count int) *models.Order {
	order := &models.Order{
		ID:        uuid.New(),
		UserID:    identity.UserID,
		SessionID: identity.SessionID,
		Status:    enums.OrderStatusPending,
		IsActive:  true,
	}
	order.Items = []models.OrderItem{
		{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: uuid.New(),
			Price:     decimal.RequireFromString(itemPrice),
			Count:     count,
		},
	}
	return order
}

func checkoutInput(orderID uuid.UUID, identity Identity, deliveryType enums.DeliveryType) CheckoutInput {
	return CheckoutInput{
		OrderID:      orderID,
		Identity:     identity,
		FullName:     "Jordan Reyes",
		Email:        "jordan@example.com",
		Phone:        "+15550100",
		City:         "Portland",
		Address:      "100 Main St",
		DeliveryType: deliveryType,
		PaymentType:  enums.PaymentTypeCard,
	}
}

func TestSubmitCheckoutAddsDeliveryCost(t *testing.T) {
	identity := userIdentity()
	order := pendingOrder(identity, "100.00", 3)
	repo := newStubOrdersRepo()
	repo.orders[order.ID] = order
	svc := newOrderService(t, repo, newStubCatalogRepo())

	checkedOut, err := svc.SubmitCheckout(context.Background(), checkoutInput(order.ID, identity, enums.DeliveryTypeStandard))

	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, checkedOut.Status)
	assert.True(t, checkedOut.TotalCost.Equal(decimal.RequireFromString("500.00")),
		"300 products total plus 200 regular delivery, got %s", checkedOut.TotalCost.String())
	assert.Equal(t, enums.OrderStatusAccepted, repo.lastUpdates["status"])
}

func TestSubmitCheckoutExpressDelivery(t *testing.T) {
	identity := userIdentity()
	order := pendingOrder(identity, "100.00", 1)
	repo := newStubOrdersRepo()
	repo.orders[order.ID] = order
	svc := newOrderService(t, repo, newStubCatalogRepo())

	checkedOut, err := svc.SubmitCheckout(context.Background(), checkoutInput(order.ID, identity, enums.DeliveryTypeExpress))

	require.NoError(t, err)
	assert.True(t, checkedOut.TotalCost.Equal(decimal.RequireFromString("600.00")))
}

func TestSubmitCheckoutResubmitFromAccepted(t *testing.T) {
	identity := userIdentity()
	order := pendingOrder(identity, "100.00", 1)
	order.Status = enums.OrderStatusAccepted
	order.DeliveryType = enums.DeliveryTypeStandard
	repo := newStubOrdersRepo()
	repo.orders[order.ID] = order
	svc := newOrderService(t, repo, newStubCatalogRepo())

	// Switching to express before paying recomputes the total.
	checkedOut, err := svc.SubmitCheckout(context.Background(), checkoutInput(order.ID, identity, enums.DeliveryTypeExpress))

	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusAccepted, checkedOut.Status)
	assert.Equal(t, enums.DeliveryTypeExpress, checkedOut.DeliveryType)
	assert.True(t, checkedOut.TotalCost.Equal(decimal.RequireFromString("600.00")))
}

func TestSubmitCheckoutRejectsProcessingOrder(t *testing.T) {
	identity := userIdentity()
	order := pendingOrder(identity, "100.00", 1)
	order.Status = enums.OrderStatusProcessing
	repo := newStubOrdersRepo()
	repo.orders[order.ID] = order
	svc := newOrderService(t, repo, newStubCatalogRepo())

	_, err := svc.SubmitCheckout(context.Background(), checkoutInput(order.ID, identity, enums.DeliveryTypeStandard))

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestSubmitCheckoutHidesInactiveOrder(t *testing.T) {
	identity := userIdentity()
	order := pendingOrder(identity, "100.00", 1)
	order.IsActive = false
	repo := newStubOrdersRepo()
	repo.orders[order.ID] = order
	svc := newOrderService(t, repo, newStubCatalogRepo())

	_, err := svc.SubmitCheckout(context.Background(), checkoutInput(order.ID, identity, enums.DeliveryTypeStandard))

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestSubmitCheckoutHidesForeignOrders(t *testing.T) {
	owner := userIdentity()
	order := pendingOrder(owner, "100.00", 1)
	repo := newStubOrdersRepo()
	repo.orders[order.ID] = order
	svc := newOrderService(t, repo, newStubCatalogRepo())

	_, err := svc.SubmitCheckout(context.Background(), checkoutInput(order.ID, userIdentity(), enums.DeliveryTypeStandard))

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestDetailHidesSessionOrderFromUser(t *testing.T) {
	sessionOwner := sessionIdentity("sess-2")
	order := pendingOrder(sessionOwner, "10.00", 1)
	repo := newStubOrdersRepo()
	repo.orders[order.ID] = order
	svc := newOrderService(t, repo, newStubCatalogRepo())

	_, err := svc.Detail(context.Background(), userIdentity(), order.ID)

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	found, err := svc.Detail(context.Background(), sessionOwner, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
}
