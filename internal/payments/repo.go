package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Repository defines persistence operations for payments and the order
// transitions they drive.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindLatestPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	MarkSettled(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, errorMessage *string, processedAt time.Time) (bool, error)
	PromoteOrder(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, from ...enums.OrderStatus) (bool, error)
	FailStalePending(ctx context.Context, olderThan time.Time, message string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		return nil, err
	}
	return payment, nil
}

func (r *repository) FindPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindLatestPaymentByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkSettled moves a payment out of pending exactly once. The guard on the
// current status makes the transition idempotent under worker retries and
// duplicate submissions; the bool reports whether this call won.
func (r *repository) MarkSettled(ctx context.Context, id uuid.UUID, status enums.PaymentStatus, errorMessage *string, processedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, enums.PaymentStatusPending).
		Updates(map[string]any{
			"status":        status,
			"error_message": errorMessage,
			"processed_at":  processedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PromoteOrder advances the order status only when it currently sits in one
// of the from statuses.
func (r *repository) PromoteOrder(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus, from ...enums.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FailStalePending sweeps payments stranded in pending by a crash. Anything
// older than the cutoff can no longer be sitting in the in-memory queue.
func (r *repository) FailStalePending(ctx context.Context, olderThan time.Time, message string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("status = ? AND created_at < ?", enums.PaymentStatusPending, olderThan).
		Updates(map[string]any{
			"status":        enums.PaymentStatusFailed,
			"error_message": message,
			"processed_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
