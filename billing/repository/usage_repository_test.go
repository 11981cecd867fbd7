package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/AntoinePinto/docu-talk/billing/models"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CreditAccount{}, &models.UsageEvent{}))
	return db
}

func TestEnsureAccountIsIdempotent(t *testing.T) {
	repo := NewGormUsageRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.EnsureAccount(ctx, "alice@example.com", decimal.NewFromInt(3)))
	// A second call must not reset the balance
	require.NoError(t, repo.EnsureAccount(ctx, "alice@example.com", decimal.NewFromInt(99)))

	balance, err := repo.Balance(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(3)), "got %s", balance)
}

func TestRecordChargeDebitsAndAppends(t *testing.T) {
	db := testDB(t)
	repo := NewGormUsageRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.EnsureAccount(ctx, "alice@example.com", decimal.NewFromInt(1)))

	err := repo.RecordCharge(ctx, &models.UsageEvent{
		UserID: "alice@example.com",
		Model:  "basic",
		Qty:    1000,
		Price:  decimal.RequireFromString("0.25"),
	})
	require.NoError(t, err)

	balance, err := repo.Balance(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("0.75")), "got %s", balance)

	var events []models.UsageEvent
	require.NoError(t, db.Find(&events, "user_id = ?", "alice@example.com").Error)
	require.Len(t, events, 1)
	assert.Equal(t, int64(1000), events[0].Qty)

	usage, err := repo.PeriodUsage(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, usage.Equal(decimal.RequireFromString("0.25")))
}

func TestRecordChargeMissingAccountRollsBack(t *testing.T) {
	db := testDB(t)
	repo := NewGormUsageRepository(db)
	ctx := context.Background()

	err := repo.RecordCharge(ctx, &models.UsageEvent{
		UserID: "ghost@example.com",
		Model:  "basic",
		Qty:    10,
		Price:  decimal.RequireFromString("0.01"),
	})
	require.ErrorIs(t, err, ErrAccountNotFound)

	// The transaction must leave no ledger row behind
	var count int64
	require.NoError(t, db.Model(&models.UsageEvent{}).Where("user_id = ?", "ghost@example.com").Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordChargeCanDriveBalanceNegative(t *testing.T) {
	repo := NewGormUsageRepository(testDB(t))
	ctx := context.Background()

	require.NoError(t, repo.EnsureAccount(ctx, "bob@example.com", decimal.RequireFromString("0.1")))
	require.NoError(t, repo.RecordCharge(ctx, &models.UsageEvent{
		UserID: "bob@example.com",
		Model:  "premium",
		Qty:    4000,
		Price:  decimal.RequireFromString("0.4"),
	}))

	balance, err := repo.Balance(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("-0.3")), "got %s", balance)
}

func TestBalanceUnknownUser(t *testing.T) {
	repo := NewGormUsageRepository(testDB(t))

	_, err := repo.Balance(context.Background(), "nobody@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
