package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Reward catalogs.
const (
	KindWheel = "wheel"
	KindChest = "chest"
)

// Reward types shared by catalogs and the bonus inventory.
const (
	RewardCoins         = "coins"
	RewardCashUSD       = "cash_usd"
	RewardOfferBoost    = "offer_boost"
	RewardPtcDiscount   = "ptc_discount"
	RewardExtraSpin     = "extra_spin"
	RewardTreasureChest = "treasure_chest"
)

// Slot types and outcomes recorded on reward logs.
const (
	SlotBase  = "base"
	SlotBonus = "bonus"

	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// RewardDefinition is one entry of the wheel or chest catalog.
type RewardDefinition struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Code          string          `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Kind          string          `gorm:"size:16;index;not null" json:"kind"`
	Label         string          `gorm:"size:128" json:"label"`
	Weight        int             `gorm:"not null;default:0" json:"weight"`
	RewardType    string          `gorm:"size:32;not null" json:"reward_type"`
	CoinValue     decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"coin_value"`
	MinStatus     string          `gorm:"size:32" json:"min_status"`
	MaxPerWeek    int             `gorm:"not null;default:0" json:"max_per_week"`
	CooldownHours int             `gorm:"not null;default:0" json:"cooldown_hours"`
	BoostPct      int             `gorm:"not null;default:0" json:"boost_pct"`
	DurationHours int             `gorm:"not null;default:0" json:"duration_hours"`
	Quantity      int             `gorm:"not null;default:0" json:"quantity"`
	IsActive      bool            `gorm:"not null" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RewardLog records one wheel spin or chest opening. Failed attempts keep the reward
// fields null and carry a reason code.
type RewardLog struct {
	ID            string           `gorm:"primaryKey;size:36" json:"id"`
	UserID        uint             `gorm:"index:idx_reward_log_user_kind;not null" json:"user_id"`
	Kind          string           `gorm:"index:idx_reward_log_user_kind;size:16;not null" json:"kind"`
	RewardID      *uint            `gorm:"index" json:"reward_id"`
	RewardType    *string          `gorm:"size:32" json:"reward_type"`
	Value         *decimal.Decimal `gorm:"type:decimal(20,8)" json:"value"`
	OutcomeStatus string           `gorm:"size:16;not null" json:"outcome_status"`
	ReasonCode    string           `gorm:"size:32" json:"reason_code,omitempty"`
	SlotType      string           `gorm:"size:8;not null" json:"slot_type"`
	LastSuccessAt *time.Time       `json:"last_success_at"`
	CreatedAt     time.Time        `gorm:"index:idx_reward_log_user_kind;not null" json:"created_at"`
}
