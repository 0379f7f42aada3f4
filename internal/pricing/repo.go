package pricing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for discount windows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateWindow(ctx context.Context, window *models.DiscountWindow) (*models.DiscountWindow, error)
	FindWindow(ctx context.Context, id uuid.UUID) (*models.DiscountWindow, error)
	FindActiveWindowsForUpdate(ctx context.Context, productID uuid.UUID) ([]models.DiscountWindow, error)
	UpdateWindow(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a pricing repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateWindow(ctx context.Context, window *models.DiscountWindow) (*models.DiscountWindow, error) {
	if err := r.db.WithContext(ctx).Create(window).Error; err != nil {
		return nil, err
	}
	return window, nil
}

func (r *repository) FindWindow(ctx context.Context, id uuid.UUID) (*models.DiscountWindow, error) {
	var window models.DiscountWindow
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&window).Error
	if err != nil {
		return nil, err
	}
	return &window, nil
}

// FindActiveWindowsForUpdate locks the product's active windows so a
// concurrent writer cannot slip an overlapping window in between the check
// and the insert. Must run inside a transaction.
func (r *repository) FindActiveWindowsForUpdate(ctx context.Context, productID uuid.UUID) ([]models.DiscountWindow, error) {
	var windows []models.DiscountWindow
	err := db.LockForUpdate(r.db.WithContext(ctx)).
		Where("product_id = ? AND is_active = ?", productID, true).
		Order("date_from ASC").
		Find(&windows).Error
	if err != nil {
		return nil, err
	}
	return windows, nil
}

func (r *repository) UpdateWindow(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.DiscountWindow{}).
		Where("id = ?", id).
		Updates(updates).Error
}
