package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditAccount is a user's remaining balance, funded by a periodic
// allowance. The balance only ever changes by one atomic decrement per charge
// and may go negative: generation that already started is never cut off.
type CreditAccount struct {
	UserID             string          `json:"user_id" gorm:"primaryKey"`
	Balance            decimal.Decimal `json:"balance" gorm:"type:numeric(18,8)"`
	PeriodDollarAmount decimal.Decimal `json:"period_dollar_amount" gorm:"type:numeric(18,8)"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// UsageEvent is one append-only ledger entry. The sum of prices over a user's
// current period is always computed from these rows, never from anywhere else.
type UsageEvent struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	UserID    string          `json:"user_id" gorm:"index"`
	Model     string          `json:"model"`
	Qty       int64           `json:"qty"`
	Price     decimal.Decimal `json:"price" gorm:"type:numeric(18,8)"`
	CreatedAt time.Time       `json:"created_at"`
}
