package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages discount windows and resolves effective prices.
type Service interface {
	CurrentPrice(ctx context.Context, product models.Product) decimal.Decimal
	CreateWindow(ctx context.Context, input CreateWindowInput) (*models.DiscountWindow, error)
	UpdateWindow(ctx context.Context, input UpdateWindowInput) (*models.DiscountWindow, error)
	DeactivateWindow(ctx context.Context, id uuid.UUID) error
}

// CreateWindowInput carries the fields required to open a sale window.
type CreateWindowInput struct {
	ProductID uuid.UUID
	SalePrice decimal.Decimal
	DateFrom  time.Time
	DateTo    time.Time
}

// UpdateWindowInput carries a partial update for an existing window.
type UpdateWindowInput struct {
	WindowID  uuid.UUID
	SalePrice *decimal.Decimal
	DateFrom  *time.Time
	DateTo    *time.Time
	IsActive  *bool
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
	now  func() time.Time
}

// NewService builds a pricing service with the required dependencies.
func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("pricing repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo: repo,
		tx:   tx,
		logg: logg,
		now:  time.Now,
	}, nil
}

// CurrentPrice resolves the product's effective price for today. An ambiguous
// resolution means the non-overlap invariant was violated in stored data; the
// pick is still deterministic, and the violation is logged.
func (s *service) CurrentPrice(ctx context.Context, product models.Product) decimal.Decimal {
	res := Resolve(product, s.now())
	if res.Ambiguous {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"product_id":    product.ID.String(),
			"matched_count": res.MatchCount,
		})
		s.logg.Warn(ctx, "multiple active discount windows cover today, using earliest")
	}
	return res.Price
}

func (s *service) CreateWindow(ctx context.Context, input CreateWindowInput) (*models.DiscountWindow, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.SalePrice.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale price must be positive")
	}
	if err := validateRange(input.DateFrom, input.DateTo); err != nil {
		return nil, err
	}

	window := &models.DiscountWindow{
		ProductID: input.ProductID,
		SalePrice: input.SalePrice,
		DateFrom:  input.DateFrom,
		DateTo:    input.DateTo,
		IsActive:  true,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindActiveWindowsForUpdate(ctx, input.ProductID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active windows")
		}
		if conflict := findOverlap(*window, existing, uuid.Nil); conflict != nil {
			return overlapError(*conflict)
		}
		_, err = repo.CreateWindow(ctx, window)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create discount window")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return window, nil
}

func (s *service) UpdateWindow(ctx context.Context, input UpdateWindowInput) (*models.DiscountWindow, error) {
	if input.WindowID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "window id required")
	}
	if input.SalePrice != nil && input.SalePrice.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale price must be positive")
	}

	var updated *models.DiscountWindow
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		window, err := repo.FindWindow(ctx, input.WindowID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "discount window not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load discount window")
		}

		candidate := *window
		updates := map[string]any{}
		if input.SalePrice != nil {
			candidate.SalePrice = *input.SalePrice
			updates["sale_price"] = *input.SalePrice
		}
		if input.DateFrom != nil {
			candidate.DateFrom = *input.DateFrom
			updates["date_from"] = *input.DateFrom
		}
		if input.DateTo != nil {
			candidate.DateTo = *input.DateTo
			updates["date_to"] = *input.DateTo
		}
		if input.IsActive != nil {
			candidate.IsActive = *input.IsActive
			updates["is_active"] = *input.IsActive
		}
		if len(updates) == 0 {
			updated = window
			return nil
		}
		if err := validateRange(candidate.DateFrom, candidate.DateTo); err != nil {
			return err
		}

		// The non-overlap invariant only binds active windows, so a window
		// being deactivated needs no conflict check.
		if candidate.IsActive {
			existing, err := repo.FindActiveWindowsForUpdate(ctx, window.ProductID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active windows")
			}
			if conflict := findOverlap(candidate, existing, window.ID); conflict != nil {
				return overlapError(*conflict)
			}
		}

		if err := repo.UpdateWindow(ctx, window.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update discount window")
		}
		updated = &candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeactivateWindow soft-deletes a window. Rows are never removed so order
// history keeps pointing at the prices that were in effect.
func (s *service) DeactivateWindow(ctx context.Context, id uuid.UUID) error {
	active := false
	_, err := s.UpdateWindow(ctx, UpdateWindowInput{WindowID: id, IsActive: &active})
	return err
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "date range required")
	}
	if to.Before(from) {
		return pkgerrors.New(pkgerrors.CodeValidation, "date_to must not precede date_from")
	}
	return nil
}

// findOverlap returns the first active window overlapping candidate, skipping
// the window identified by excludeID.
func findOverlap(candidate models.DiscountWindow, existing []models.DiscountWindow, excludeID uuid.UUID) *models.DiscountWindow {
	for i := range existing {
		if existing[i].ID == excludeID {
			continue
		}
		if candidate.Overlaps(existing[i]) {
			return &existing[i]
		}
	}
	return nil
}

func overlapError(conflict models.DiscountWindow) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "discount window overlaps an active window").
		WithDetails(map[string]any{
			"conflicting_window_id": conflict.ID.String(),
			"date_from":             conflict.DateFrom.Format("2006-01-02"),
			"date_to":               conflict.DateTo.Format("2006-01-02"),
		})
}
