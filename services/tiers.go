package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/models"
)

// lockUserLevel locks the user row and resolves the level its experience has reached.
func lockUserLevel(tx *Tx, rc *config.RewardConfig, userID uint) (config.Level, error) {
	user, err := tx.LockUser(userID)
	if err != nil {
		return config.Level{}, err
	}
	return rc.LevelFor(user.Experience), nil
}

// readUserLevel resolves the level without locking, for status projections.
func readUserLevel(db *gorm.DB, rc *config.RewardConfig, userID uint) (config.Level, error) {
	var user models.User
	if err := db.Select("id", "experience").First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return config.Level{}, ErrUserNotFound
		}
		return config.Level{}, repoErr("find", "user", err)
	}
	return rc.LevelFor(user.Experience), nil
}

// eligibleForStatus keeps the definitions whose minimum status the user's status reaches.
func eligibleForStatus(defs []models.RewardDefinition, rc *config.RewardConfig, status string) []models.RewardDefinition {
	rank := rc.StatusRank(status)
	out := make([]models.RewardDefinition, 0, len(defs))
	for _, d := range defs {
		if rc.StatusRank(d.MinStatus) <= rank {
			out = append(out, d)
		}
	}
	return out
}

func definitionWeight(d models.RewardDefinition) int {
	return d.Weight
}
