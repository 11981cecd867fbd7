package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/AntoinePinto/docu-talk/billing/models"
)

type UsageRepository interface {
	// RecordCharge appends the ledger entry and decrements the account
	// balance by its price in a single transaction.
	RecordCharge(ctx context.Context, event *models.UsageEvent) error
	EnsureAccount(ctx context.Context, userID string, allowance decimal.Decimal) error
	Balance(ctx context.Context, userID string) (decimal.Decimal, error)
	// PeriodUsage sums the prices of all ledger entries for the user.
	PeriodUsage(ctx context.Context, userID string) (decimal.Decimal, error)
}

var ErrAccountNotFound = errors.New("credit account not found")

type GormUsageRepository struct {
	db *gorm.DB
}

func NewGormUsageRepository(db *gorm.DB) *GormUsageRepository {
	return &GormUsageRepository{db: db}
}

func (r *GormUsageRepository) RecordCharge(ctx context.Context, event *models.UsageEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(event).Error; err != nil {
			return err
		}
		res := tx.Model(&models.CreditAccount{}).
			Where("user_id = ?", event.UserID).
			Update("balance", gorm.Expr("balance - ?", event.Price))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAccountNotFound
		}
		return nil
	})
}

func (r *GormUsageRepository) EnsureAccount(ctx context.Context, userID string, allowance decimal.Decimal) error {
	account := models.CreditAccount{
		UserID:             userID,
		Balance:            allowance,
		PeriodDollarAmount: allowance,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&account).Error
}

func (r *GormUsageRepository) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var account models.CreditAccount
	err := r.db.WithContext(ctx).First(&account, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	return account.Balance, nil
}

func (r *GormUsageRepository) PeriodUsage(ctx context.Context, userID string) (decimal.Decimal, error) {
	var events []models.UsageEvent
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&events).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range events {
		total = total.Add(e.Price)
	}
	return total, nil
}
