package models

import "time"

// Grant sources.
const (
	SourceWheel     = "wheel"
	SourceChest     = "chest"
	SourceOfferwall = "offerwall"
	SourceAdmin     = "admin"
)

// GrantPayload carries the type specific parameters of a bonus grant.
type GrantPayload struct {
	BoostPct     int `json:"boost_pct,omitempty"`
	DiscountPct  int `json:"discount_pct,omitempty"`
	DurationDays int `json:"duration_days,omitempty"`
}

// UserReward is a non-currency entitlement consumed FIFO by creation time.
type UserReward struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	UserID     uint         `gorm:"index:idx_user_reward_lookup;not null" json:"user_id"`
	RewardType string       `gorm:"index:idx_user_reward_lookup;size:32;not null" json:"reward_type"`
	SourceType string       `gorm:"size:32;not null" json:"source_type"`
	SourceID   string       `gorm:"size:64" json:"source_id"`
	Quantity   int          `gorm:"not null;default:0" json:"quantity"`
	Payload    GrantPayload `gorm:"serializer:json;type:text" json:"payload"`
	ExpiresAt  *time.Time   `gorm:"index" json:"expires_at"`
	IsActive   bool         `gorm:"index:idx_user_reward_lookup;not null" json:"is_active"`
	UsedAt     *time.Time   `json:"used_at"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}
