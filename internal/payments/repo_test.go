package payments

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

func setupPaymentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ordersTable := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  session_id TEXT,
  full_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  phone TEXT NOT NULL DEFAULT '',
  delivery_type TEXT NOT NULL DEFAULT 'standard',
  payment_type TEXT NOT NULL DEFAULT 'card',
  total_cost NUMERIC NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'pending',
  city TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  comment TEXT NOT NULL DEFAULT '',
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	paymentsTable := `
CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  payment_type TEXT NOT NULL DEFAULT 'card',
  number TEXT NOT NULL,
  holder_name TEXT,
  expiry_month TEXT,
  expiry_year TEXT,
  security_code TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  error_message TEXT,
  processed_at DATETIME,
  created_at DATETIME
);`
	for _, stmt := range []string{ordersTable, paymentsTable} {
		require.NoError(t, gdb.Exec(stmt).Error)
	}

	return gdb
}

func seedDBOrder(t *testing.T, gdb *gorm.DB, status enums.OrderStatus) *models.Order {
	t.Helper()
	userID := uuid.New()
	order := &models.Order{
		ID:       uuid.New(),
		UserID:   &userID,
		Status:   status,
		IsActive: true,
	}
	require.NoError(t, gdb.Omit("Items", "Payments").Create(order).Error)
	return order
}

func seedDBPayment(t *testing.T, repo Repository, orderID uuid.UUID, createdAt time.Time) *models.Payment {
	t.Helper()
	payment, err := repo.CreatePayment(context.Background(), &models.Payment{
		OrderID:   orderID,
		Number:    "12345678",
		Status:    enums.PaymentStatusPending,
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	return payment
}

func TestMarkSettledWinsOnce(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	repo := NewRepository(gdb)
	order := seedDBOrder(t, gdb, enums.OrderStatusAccepted)
	payment := seedDBPayment(t, repo, order.ID, time.Now().UTC())

	reason := "Insufficient funds"
	won, err := repo.MarkSettled(context.Background(), payment.ID, enums.PaymentStatusFailed, &reason, time.Now().UTC())
	require.NoError(t, err)
	assert.True(t, won)

	// A second settle attempt loses the race and must not overwrite.
	won, err = repo.MarkSettled(context.Background(), payment.ID, enums.PaymentStatusSuccess, nil, time.Now().UTC())
	require.NoError(t, err)
	assert.False(t, won)

	stored, err := repo.FindPayment(context.Background(), payment.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, stored.Status)
	require.NotNil(t, stored.ErrorMessage)
	assert.Equal(t, reason, *stored.ErrorMessage)
	require.NotNil(t, stored.ProcessedAt)
}

func TestFindLatestPaymentByOrder(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	repo := NewRepository(gdb)
	order := seedDBOrder(t, gdb, enums.OrderStatusAccepted)

	base := time.Now().UTC().Add(-time.Hour)
	seedDBPayment(t, repo, order.ID, base)
	latest := seedDBPayment(t, repo, order.ID, base.Add(time.Minute))

	found, err := repo.FindLatestPaymentByOrder(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, found.ID)

	_, err = repo.FindLatestPaymentByOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPromoteOrderGuardsSourceStatus(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	repo := NewRepository(gdb)

	accepted := seedDBOrder(t, gdb, enums.OrderStatusAccepted)
	promoted, err := repo.PromoteOrder(context.Background(), accepted.ID, enums.OrderStatusProcessing,
		enums.OrderStatusAccepted, enums.OrderStatusPending)
	require.NoError(t, err)
	assert.True(t, promoted)

	var status string
	require.NoError(t, gdb.Model(&models.Order{}).
		Where("id = ?", accepted.ID).
		Pluck("status", &status).Error)
	assert.Equal(t, enums.OrderStatusProcessing.String(), status)

	// Already processing; a second promotion finds nothing to move.
	promoted, err = repo.PromoteOrder(context.Background(), accepted.ID, enums.OrderStatusProcessing,
		enums.OrderStatusAccepted, enums.OrderStatusPending)
	require.NoError(t, err)
	assert.False(t, promoted)
}

func TestFailStalePendingSweepsOldPayments(t *testing.T) {
	gdb := setupPaymentsTestDB(t)
	repo := NewRepository(gdb)
	order := seedDBOrder(t, gdb, enums.OrderStatusAccepted)

	now := time.Now().UTC()
	stale := seedDBPayment(t, repo, order.ID, now.Add(-time.Hour))

	count, err := repo.FailStalePending(context.Background(), now.Add(-time.Minute), TechnicalErrorMessage)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	swept, err := repo.FindPayment(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusFailed, swept.Status)
	require.NotNil(t, swept.ErrorMessage)
	assert.Equal(t, TechnicalErrorMessage, *swept.ErrorMessage)
}
