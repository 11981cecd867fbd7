package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/AntoinePinto/docu-talk/billing/models"
	"github.com/AntoinePinto/docu-talk/billing/repository"
	"github.com/AntoinePinto/docu-talk/pkg/errors"
	"github.com/AntoinePinto/docu-talk/pkg/logger"
)

// Ledger converts raw consumption quantities into prices and debits the
// caller's credit account. Charges are never partially applied and never
// retroactively corrected.
type Ledger struct {
	repo               repository.UsageRepository
	rates              map[string]decimal.Decimal
	multiplier         int64
	creditExchangeRate decimal.Decimal
	log                *logger.Logger
}

// LedgerConfig carries the billing knobs.
type LedgerConfig struct {
	ModelRates         map[string]decimal.Decimal
	UsageMultiplier    int64
	CreditExchangeRate decimal.Decimal
}

func NewLedger(repo repository.UsageRepository, cfg LedgerConfig, log *logger.Logger) *Ledger {
	return &Ledger{
		repo:               repo,
		rates:              cfg.ModelRates,
		multiplier:         cfg.UsageMultiplier,
		creditExchangeRate: cfg.CreditExchangeRate,
		log:                log,
	}
}

// Charge bills qty raw units against userID and returns the price actually
// charged. The usage multiplier is applied before rate conversion. The
// balance decrement and the ledger append happen in one transaction; the
// ledger does not enforce a floor, so an account already streaming may go
// negative.
func (l *Ledger) Charge(ctx context.Context, userID, model string, qty int64) (decimal.Decimal, error) {
	if qty < 0 {
		return decimal.Zero, errors.NewBadRequestError("NEGATIVE_USAGE", "usage quantity must be non-negative")
	}

	rate, ok := l.rates[model]
	if !ok {
		return decimal.Zero, errors.NewConfigurationError("UNKNOWN_MODEL", fmt.Sprintf("no billing rate configured for model %q", model))
	}

	billable := qty * l.multiplier
	price := decimal.NewFromInt(billable).Mul(rate)

	event := &models.UsageEvent{
		UserID: userID,
		Model:  model,
		Qty:    billable,
		Price:  price,
	}
	if err := l.repo.RecordCharge(ctx, event); err != nil {
		return decimal.Zero, errors.NewLedgerError("CHARGE_FAILED", err.Error())
	}

	l.log.Info("usage charged",
		"user_id", userID,
		"model", model,
		"qty", billable,
		"price", price.String(),
	)
	return price, nil
}

// Credits converts a dollar price into the user-facing credit unit, rounded
// to two decimal places.
func (l *Ledger) Credits(price decimal.Decimal) float64 {
	credits, _ := price.Mul(l.creditExchangeRate).Round(2).Float64()
	return credits
}

// EnsureAccount creates the credit account with its period allowance if it
// does not exist yet.
func (l *Ledger) EnsureAccount(ctx context.Context, userID string, allowance decimal.Decimal) error {
	return l.repo.EnsureAccount(ctx, userID, allowance)
}

// RemainingCredits reports the account balance in credits for display.
func (l *Ledger) RemainingCredits(ctx context.Context, userID string) (float64, error) {
	balance, err := l.repo.Balance(ctx, userID)
	if err != nil {
		return 0, err
	}
	credits, _ := balance.Mul(l.creditExchangeRate).Round(2).Float64()
	return credits, nil
}

// ConsumedCredits reports the credits spent over the current period, for
// display next to the remaining balance.
func (l *Ledger) ConsumedCredits(ctx context.Context, userID string) (float64, error) {
	usage, err := l.repo.PeriodUsage(ctx, userID)
	if err != nil {
		return 0, err
	}
	credits, _ := usage.Mul(l.creditExchangeRate).Round(2).Float64()
	return credits, nil
}

// HasCredits is the pre-check callers run before starting a session; the
// ledger itself never blocks a charge mid-stream.
func (l *Ledger) HasCredits(ctx context.Context, userID string) (bool, error) {
	balance, err := l.repo.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance.GreaterThan(decimal.Zero), nil
}
