package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type stubPricingRepo struct {
	windows []models.DiscountWindow
	byID    map[uuid.UUID]*models.DiscountWindow
	created *models.DiscountWindow
	updates map[string]any
}

func (s *stubPricingRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubPricingRepo) CreateWindow(ctx context.Context, window *models.DiscountWindow) (*models.DiscountWindow, error) {
	if window.ID == uuid.Nil {
		window.ID = uuid.New()
	}
	s.created = window
	return window, nil
}

func (s *stubPricingRepo) FindWindow(ctx context.Context, id uuid.UUID) (*models.DiscountWindow, error) {
	if w, ok := s.byID[id]; ok {
		return w, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubPricingRepo) FindActiveWindowsForUpdate(ctx context.Context, productID uuid.UUID) ([]models.DiscountWindow, error) {
	return s.windows, nil
}

func (s *stubPricingRepo) UpdateWindow(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	s.updates = updates
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newPricingService(t *testing.T, repo *stubPricingRepo) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, logger.New(logger.Options{ServiceName: "test"}))
	require.NoError(t, err)
	return svc
}

func TestCreateWindowRejectsOverlap(t *testing.T) {
	productID := uuid.New()
	repo := &stubPricingRepo{
		windows: []models.DiscountWindow{
			{
				ID:        uuid.New(),
				ProductID: productID,
				SalePrice: decimal.RequireFromString("50.00"),
				DateFrom:  day("2026-08-10"),
				DateTo:    day("2026-08-20"),
				IsActive:  true,
			},
		},
	}
	svc := newPricingService(t, repo)

	_, err := svc.CreateWindow(context.Background(), CreateWindowInput{
		ProductID: productID,
		SalePrice: decimal.RequireFromString("40.00"),
		DateFrom:  day("2026-08-20"),
		DateTo:    day("2026-08-25"),
	})

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.Nil(t, repo.created)
}

func TestCreateWindowAllowsAdjacentRange(t *testing.T) {
	productID := uuid.New()
	repo := &stubPricingRepo{
		windows: []models.DiscountWindow{
			{
				ID:        uuid.New(),
				ProductID: productID,
				SalePrice: decimal.RequireFromString("50.00"),
				DateFrom:  day("2026-08-10"),
				DateTo:    day("2026-08-20"),
				IsActive:  true,
			},
		},
	}
	svc := newPricingService(t, repo)

	window, err := svc.CreateWindow(context.Background(), CreateWindowInput{
		ProductID: productID,
		SalePrice: decimal.RequireFromString("40.00"),
		DateFrom:  day("2026-08-21"),
		DateTo:    day("2026-08-25"),
	})

	require.NoError(t, err)
	require.NotNil(t, repo.created)
	assert.True(t, window.IsActive)
}

func TestCreateWindowValidation(t *testing.T) {
	svc := newPricingService(t, &stubPricingRepo{})

	cases := []struct {
		name  string
		input CreateWindowInput
	}{
		{
			name: "missing product",
			input: CreateWindowInput{
				SalePrice: decimal.RequireFromString("10.00"),
				DateFrom:  day("2026-08-01"),
				DateTo:    day("2026-08-02"),
			},
		},
		{
			name: "non-positive price",
			input: CreateWindowInput{
				ProductID: uuid.New(),
				SalePrice: decimal.Zero,
				DateFrom:  day("2026-08-01"),
				DateTo:    day("2026-08-02"),
			},
		},
		{
			name: "inverted range",
			input: CreateWindowInput{
				ProductID: uuid.New(),
				SalePrice: decimal.RequireFromString("10.00"),
				DateFrom:  day("2026-08-05"),
				DateTo:    day("2026-08-01"),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateWindow(context.Background(), tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}
}

func TestUpdateWindowDeactivationSkipsOverlapCheck(t *testing.T) {
	productID := uuid.New()
	target := &models.DiscountWindow{
		ID:        uuid.New(),
		ProductID: productID,
		SalePrice: decimal.RequireFromString("50.00"),
		DateFrom:  day("2026-08-10"),
		DateTo:    day("2026-08-20"),
		IsActive:  true,
	}
	other := models.DiscountWindow{
		ID:        uuid.New(),
		ProductID: productID,
		SalePrice: decimal.RequireFromString("45.00"),
		DateFrom:  day("2026-08-10"),
		DateTo:    day("2026-08-20"),
		IsActive:  true,
	}
	repo := &stubPricingRepo{
		windows: []models.DiscountWindow{*target, other},
		byID:    map[uuid.UUID]*models.DiscountWindow{target.ID: target},
	}
	svc := newPricingService(t, repo)

	err := svc.DeactivateWindow(context.Background(), target.ID)

	require.NoError(t, err)
	require.NotNil(t, repo.updates)
	assert.Equal(t, false, repo.updates["is_active"])
}

func TestUpdateWindowNotFound(t *testing.T) {
	svc := newPricingService(t, &stubPricingRepo{byID: map[uuid.UUID]*models.DiscountWindow{}})

	price := decimal.RequireFromString("10.00")
	_, err := svc.UpdateWindow(context.Background(), UpdateWindowInput{
		WindowID:  uuid.New(),
		SalePrice: &price,
	})

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestCurrentPriceUsesClock(t *testing.T) {
	productID := uuid.New()
	repo := &stubPricingRepo{}
	svc := newPricingService(t, repo)
	svc.(*service).now = func() time.Time { return day("2026-08-25") }

	product := models.Product{
		ID:    productID,
		Price: decimal.RequireFromString("100.00"),
		DiscountWindows: []models.DiscountWindow{
			{
				ID:        uuid.New(),
				ProductID: productID,
				SalePrice: decimal.RequireFromString("70.00"),
				DateFrom:  day("2026-08-25"),
				DateTo:    day("2026-08-25"),
				IsActive:  true,
			},
		},
	}

	price := svc.CurrentPrice(context.Background(), product)
	assert.True(t, price.Equal(decimal.RequireFromString("70.00")))
}
