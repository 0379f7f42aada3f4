package delivery

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Store manages the delivery settings singleton row.
type Store interface {
	Get(ctx context.Context) (*models.DeliverySettings, error)
	Update(ctx context.Context, input UpdateInput) (*models.DeliverySettings, error)
	Delete(ctx context.Context) error
}

// UpdateInput carries a partial update of the singleton. Nil fields keep their
// stored values.
type UpdateInput struct {
	ExpressDeliveryCost   *decimal.Decimal
	FreeDeliveryThreshold *decimal.Decimal
	RegularDeliveryCost   *decimal.Decimal
}

type store struct {
	db       *gorm.DB
	tx       txRunner
	defaults config.DeliveryConfig
}

// NewStore builds the delivery settings store.
func NewStore(gdb *gorm.DB, tx txRunner, defaults config.DeliveryConfig) (Store, error) {
	if gdb == nil {
		return nil, fmt.Errorf("db required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &store{db: gdb, tx: tx, defaults: defaults}, nil
}

// Get returns the settings row, creating it from configured defaults on first
// access. The read locks the row so two first readers serialize; if both still
// race to insert, the loser hits the singleton unique violation and re-reads.
func (s *store) Get(ctx context.Context) (*models.DeliverySettings, error) {
	var settings *models.DeliverySettings
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		loaded, err := s.lockRow(ctx, tx)
		if err == nil {
			settings = loaded
			return nil
		}
		if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery settings")
		}

		fresh := &models.DeliverySettings{
			ID:                    models.DeliverySettingsID,
			ExpressDeliveryCost:   s.defaults.ExpressCost(),
			FreeDeliveryThreshold: s.defaults.FreeThreshold(),
			RegularDeliveryCost:   s.defaults.RegularCost(),
		}
		if err := tx.WithContext(ctx).Create(fresh).Error; err != nil {
			if db.IsUniqueViolation(err, "delivery_settings_pkey") {
				loaded, err := s.lockRow(ctx, tx)
				if err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload delivery settings")
				}
				settings = loaded
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery settings")
		}
		settings = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (s *store) Update(ctx context.Context, input UpdateInput) (*models.DeliverySettings, error) {
	for _, v := range []*decimal.Decimal{input.ExpressDeliveryCost, input.FreeDeliveryThreshold, input.RegularDeliveryCost} {
		if v != nil && v.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery amounts must not be negative")
		}
	}

	var settings *models.DeliverySettings
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		current, err := s.lockRow(ctx, tx)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				current = &models.DeliverySettings{
					ID:                    models.DeliverySettingsID,
					ExpressDeliveryCost:   s.defaults.ExpressCost(),
					FreeDeliveryThreshold: s.defaults.FreeThreshold(),
					RegularDeliveryCost:   s.defaults.RegularCost(),
				}
				if err := tx.WithContext(ctx).Create(current).Error; err != nil && !db.IsUniqueViolation(err, "delivery_settings_pkey") {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery settings")
				}
			} else {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery settings")
			}
		}

		if input.ExpressDeliveryCost != nil {
			current.ExpressDeliveryCost = *input.ExpressDeliveryCost
		}
		if input.FreeDeliveryThreshold != nil {
			current.FreeDeliveryThreshold = *input.FreeDeliveryThreshold
		}
		if input.RegularDeliveryCost != nil {
			current.RegularDeliveryCost = *input.RegularDeliveryCost
		}
		if err := tx.WithContext(ctx).Save(current).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save delivery settings")
		}
		settings = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// Delete always fails. The singleton must survive for the lifetime of the
// deployment; removing it would drop the pricing parameters out from under
// live checkouts.
func (s *store) Delete(ctx context.Context) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "delivery settings cannot be deleted")
}

func (s *store) lockRow(ctx context.Context, tx *gorm.DB) (*models.DeliverySettings, error) {
	var settings models.DeliverySettings
	err := db.LockForUpdate(tx.WithContext(ctx)).
		Where("id = ?", models.DeliverySettingsID).
		First(&settings).Error
	if err != nil {
		return nil, err
	}
	return &settings, nil
}
