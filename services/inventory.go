package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/rewards/models"
)

// ErrInsufficientInventory is returned when fewer units are available than requested.
var ErrInsufficientInventory = errors.New("insufficient bonus inventory")

// Inventory manages non-currency grants. All methods take the session they run on so they
// can be used inside a transaction or for plain reads.
type Inventory struct{}

func activeGrants(db *gorm.DB, userID uint, rewardType string, now time.Time) *gorm.DB {
	q := db.Where("user_id = ? AND is_active = ? AND quantity > 0", userID, true).
		Where("expires_at IS NULL OR expires_at > ?", now)
	if rewardType != "" {
		q = q.Where("reward_type = ?", rewardType)
	}
	return q
}

// Grant stores g as an active entitlement.
func (Inventory) Grant(db *gorm.DB, g models.UserReward, now time.Time) (models.UserReward, error) {
	if g.Quantity <= 0 {
		return g, fmt.Errorf("grant of %s needs a positive quantity, got %d", g.RewardType, g.Quantity)
	}
	g.IsActive = true
	g.CreatedAt = now
	g.UpdatedAt = now
	if err := db.Create(&g).Error; err != nil {
		return g, repoErr("create", "user_reward", err)
	}
	return g, nil
}

// Available sums the unexpired active quantity of rewardType.
func (Inventory) Available(db *gorm.DB, userID uint, rewardType string, now time.Time) (int, error) {
	var total int64
	err := activeGrants(db.Model(&models.UserReward{}), userID, rewardType, now).
		Select("COALESCE(SUM(quantity), 0)").Scan(&total).Error
	if err != nil {
		return 0, repoErr("sum", "user_reward", err)
	}
	return int(total), nil
}

// Consume takes n units of rewardType, oldest grant first. A grant that reaches zero is
// deactivated; a partly used grant stays active with the remainder.
func (Inventory) Consume(db *gorm.DB, userID uint, rewardType string, n int, now time.Time) error {
	if n <= 0 {
		return nil
	}
	var grants []models.UserReward
	err := activeGrants(db.Clauses(clause.Locking{Strength: "UPDATE"}), userID, rewardType, now).
		Order("created_at ASC, id ASC").Find(&grants).Error
	if err != nil {
		return repoErr("lock", "user_reward", err)
	}
	have := 0
	for _, g := range grants {
		have += g.Quantity
	}
	if have < n {
		return fmt.Errorf("%w: %s wanted %d, had %d", ErrInsufficientInventory, rewardType, n, have)
	}
	left := n
	for _, g := range grants {
		if left == 0 {
			break
		}
		take := g.Quantity
		if take > left {
			take = left
		}
		qty := g.Quantity - take
		err := db.Model(&models.UserReward{}).Where("id = ?", g.ID).Updates(map[string]interface{}{
			"quantity":   qty,
			"is_active":  qty > 0,
			"used_at":    now,
			"updated_at": now,
		}).Error
		if err != nil {
			return repoErr("update", "user_reward", err)
		}
		left -= take
	}
	return nil
}

// Active lists unexpired grants of every type, oldest first.
func (Inventory) Active(db *gorm.DB, userID uint, now time.Time) ([]models.UserReward, error) {
	var grants []models.UserReward
	err := activeGrants(db, userID, "", now).Order("created_at ASC, id ASC").Find(&grants).Error
	if err != nil {
		return nil, repoErr("list", "user_reward", err)
	}
	return grants, nil
}

// ExpireGrants deactivates every grant whose expiry has passed.
func ExpireGrants(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Model(&models.UserReward{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now).
		Updates(map[string]interface{}{"is_active": false, "updated_at": now})
	if res.Error != nil {
		return 0, repoErr("expire", "user_reward", res.Error)
	}
	return res.RowsAffected, nil
}
