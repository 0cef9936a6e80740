package models

import "time"

// FaucetStreak is the per-user streak state. StreakDate is the UTC calendar date the
// current streak day belongs to.
type FaucetStreak struct {
	UserID           uint       `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	CurrentDay       int        `gorm:"not null;default:1" json:"current_day"`
	TotalEarnedToday int64      `gorm:"not null;default:0" json:"total_earned_today"`
	LastClaimAt      *time.Time `json:"last_claim_at"`
	StreakDate       time.Time  `gorm:"not null" json:"streak_date"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// FaucetHistory archives one finished streak day.
type FaucetHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	StreakDay  int       `gorm:"not null" json:"streak_day"`
	Earned     int64     `gorm:"not null" json:"earned"`
	Target     int64     `gorm:"not null" json:"target"`
	TargetMet  bool      `gorm:"not null" json:"target_met"`
	StreakDate time.Time `gorm:"not null" json:"streak_date"`
	CreatedAt  time.Time `json:"created_at"`
}

// FaucetClaim is the immutable log of successful faucet claims.
type FaucetClaim struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	UserID            uint      `gorm:"index:idx_faucet_claim_user;not null" json:"user_id"`
	Amount            int64     `gorm:"not null" json:"amount"`
	StreakDay         int       `gorm:"not null" json:"streak_day"`
	IP                string    `gorm:"size:45" json:"ip"`
	DeviceFingerprint string    `gorm:"size:128" json:"device_fingerprint"`
	ClaimedAt         time.Time `gorm:"index:idx_faucet_claim_user;not null" json:"claimed_at"`
}
