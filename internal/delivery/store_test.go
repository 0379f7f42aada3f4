package delivery

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

const settingsSchema = `
CREATE TABLE IF NOT EXISTS delivery_settings (
  id INTEGER PRIMARY KEY,
  express_delivery_cost NUMERIC NOT NULL,
  free_delivery_threshold NUMERIC NOT NULL,
  regular_delivery_cost NUMERIC NOT NULL,
  updated_at DATETIME,
  CONSTRAINT delivery_settings_singleton CHECK (id = 1)
);`

func setupSettingsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.Exec(settingsSchema).Error)

	return gdb
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func testDefaults() config.DeliveryConfig {
	return config.DeliveryConfig{
		DefaultExpressCost:   "500.00",
		DefaultFreeThreshold: "2000.00",
		DefaultRegularCost:   "200.00",
	}
}

func newTestStore(t *testing.T) (Store, *gorm.DB) {
	t.Helper()
	gdb := setupSettingsTestDB(t)
	store, err := NewStore(gdb, gormTxRunner{db: gdb}, testDefaults())
	require.NoError(t, err)
	return store, gdb
}

func TestGetCreatesDefaultsOnFirstAccess(t *testing.T) {
	store, gdb := newTestStore(t)

	settings, err := store.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.DeliverySettingsID, settings.ID)
	assert.True(t, settings.ExpressDeliveryCost.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, settings.FreeDeliveryThreshold.Equal(decimal.RequireFromString("2000.00")))
	assert.True(t, settings.RegularDeliveryCost.Equal(decimal.RequireFromString("200.00")))

	var count int64
	require.NoError(t, gdb.Model(&models.DeliverySettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGetReturnsExistingRow(t *testing.T) {
	store, gdb := newTestStore(t)

	first, err := store.Get(context.Background())
	require.NoError(t, err)

	// Mutate the stored row directly so a second read proves it was loaded,
	// not recreated from defaults.
	require.NoError(t, gdb.Model(&models.DeliverySettings{}).
		Where("id = ?", models.DeliverySettingsID).
		Update("express_delivery_cost", decimal.RequireFromString("750.00")).Error)

	second, err := store.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.ExpressDeliveryCost.Equal(decimal.RequireFromString("750.00")))

	var count int64
	require.NoError(t, gdb.Model(&models.DeliverySettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestConcurrentFirstGetsKeepSingleRow(t *testing.T) {
	// File-backed database so the two readers run on separate connections.
	// Immediate transactions make the second writer wait out the first
	// instead of failing fast on the write lock.
	dsn := fmt.Sprintf("file:%s/settings.db?_busy_timeout=5000&_txlock=immediate", t.TempDir())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.Exec(settingsSchema).Error)

	store, err := NewStore(gdb, gormTxRunner{db: gdb}, testDefaults())
	require.NoError(t, err)

	results := make([]*models.DeliverySettings, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = store.Get(context.Background())
		}(i)
	}
	wg.Wait()

	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, models.DeliverySettingsID, results[i].ID)
		assert.True(t, results[i].ExpressDeliveryCost.Equal(decimal.RequireFromString("500.00")))
	}

	var count int64
	require.NoError(t, gdb.Model(&models.DeliverySettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepeatedGetsKeepSingleRow(t *testing.T) {
	store, gdb := newTestStore(t)

	for i := 0; i < 5; i++ {
		_, err := store.Get(context.Background())
		require.NoError(t, err)
	}

	var count int64
	require.NoError(t, gdb.Model(&models.DeliverySettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateChangesOnlyProvidedFields(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background())
	require.NoError(t, err)

	threshold := decimal.RequireFromString("3000.00")
	updated, err := store.Update(context.Background(), UpdateInput{
		FreeDeliveryThreshold: &threshold,
	})
	require.NoError(t, err)

	assert.True(t, updated.FreeDeliveryThreshold.Equal(threshold))
	assert.True(t, updated.ExpressDeliveryCost.Equal(decimal.RequireFromString("500.00")))
	assert.True(t, updated.RegularDeliveryCost.Equal(decimal.RequireFromString("200.00")))
}

func TestUpdateSeedsRowWhenMissing(t *testing.T) {
	store, gdb := newTestStore(t)

	express := decimal.RequireFromString("600.00")
	updated, err := store.Update(context.Background(), UpdateInput{
		ExpressDeliveryCost: &express,
	})
	require.NoError(t, err)

	assert.True(t, updated.ExpressDeliveryCost.Equal(express))

	var count int64
	require.NoError(t, gdb.Model(&models.DeliverySettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateRejectsNegativeAmounts(t *testing.T) {
	store, _ := newTestStore(t)

	negative := decimal.RequireFromString("-1.00")
	_, err := store.Update(context.Background(), UpdateInput{
		RegularDeliveryCost: &negative,
	})

	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestDeleteAlwaysFails(t *testing.T) {
	store, gdb := newTestStore(t)

	_, err := store.Get(context.Background())
	require.NoError(t, err)

	err = store.Delete(context.Background())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	var count int64
	require.NoError(t, gdb.Model(&models.DeliverySettings{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
