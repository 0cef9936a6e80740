package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Currencies credited by the engine.
const (
	CurrencyCoin = "coin"
	CurrencyUSD  = "usd"
)

// Ledger entry directions.
const (
	EntryCredit = "credit"
	EntryDebit  = "debit"
)

// Balance holds a user's funds in one currency. Available never goes below zero.
type Balance struct {
	ID        uint            `gorm:"primaryKey" json:"-"`
	UserID    uint            `gorm:"uniqueIndex:idx_balance_user_currency;not null" json:"user_id"`
	Currency  string          `gorm:"uniqueIndex:idx_balance_user_currency;size:16;not null" json:"currency"`
	Available decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"available"`
	Pending   decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"pending"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LedgerEntry is an append-only record of one balance change.
type LedgerEntry struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"index:idx_ledger_user_created;not null" json:"user_id"`
	Currency       string          `gorm:"size:16;not null" json:"currency"`
	EntryType      string          `gorm:"size:8;not null" json:"entry_type"`
	Amount         decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"amount"`
	BalanceAfter   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance_after"`
	RefType        string          `gorm:"size:32;not null" json:"ref_type"`
	RefID          string          `gorm:"size:64;not null" json:"ref_id"`
	IdempotencyKey string          `gorm:"size:128;uniqueIndex;not null" json:"-"`
	CreatedAt      time.Time       `gorm:"index:idx_ledger_user_created" json:"created_at"`
}
