package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/models"
)

const refWheelSpin = "wheel_spin"

// RewardView is the public shape of a granted reward.
type RewardView struct {
	ID         uint            `json:"id"`
	Code       string          `json:"code"`
	Label      string          `json:"label"`
	RewardType string          `json:"reward_type"`
	Value      decimal.Decimal `json:"value"`
}

// SpinResult describes a successful wheel spin and the spins left afterwards.
type SpinResult struct {
	LogID          string             `json:"log_id"`
	Reward         RewardView         `json:"reward"`
	SlotType       string             `json:"slot_type"`
	Grant          *models.UserReward `json:"grant,omitempty"`
	Balance        *decimal.Decimal   `json:"balance,omitempty"`
	BaseRemaining  int                `json:"base_remaining"`
	BonusRemaining int                `json:"bonus_remaining"`
}

// WheelStatus is the read-only wheel projection.
type WheelStatus struct {
	DailyQuota     int       `json:"daily_quota"`
	BaseRemaining  int       `json:"base_remaining"`
	BonusRemaining int       `json:"bonus_remaining"`
	NextResetAt    time.Time `json:"next_reset_at"`
}

// WheelEngine runs fortune wheel spins.
type WheelEngine struct {
	coord   *Coordinator
	catalog *Catalog
	rc      *config.RewardConfig
	inv     Inventory
	rng     RandomSource
	now     func() time.Time
	log     *zap.Logger
}

// NewWheelEngine creates a wheel engine. A nil rng uses DefaultRandom.
func NewWheelEngine(coord *Coordinator, catalog *Catalog, rc *config.RewardConfig, rng RandomSource, now func() time.Time, log *zap.Logger) *WheelEngine {
	if rng == nil {
		rng = DefaultRandom
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WheelEngine{coord: coord, catalog: catalog, rc: rc, rng: rng, now: now, log: log}
}

// wheelQuota returns the base and bonus spins left today.
func (e *WheelEngine) wheelQuota(db *gorm.DB, userID uint, level config.Level, now time.Time) (base, bonus int, err error) {
	var used int64
	err = db.Model(&models.RewardLog{}).
		Where("user_id = ? AND kind = ? AND slot_type = ? AND outcome_status = ? AND created_at >= ?",
			userID, models.KindWheel, models.SlotBase, models.OutcomeSuccess, DayStart(now)).
		Count(&used).Error
	if err != nil {
		return 0, 0, repoErr("count", "reward_log", err)
	}
	base = level.DailySpins - int(used)
	if base < 0 {
		base = 0
	}
	bonus, err = e.inv.Available(db, userID, models.RewardExtraSpin, now)
	return base, bonus, err
}

// Spin draws one wheel reward. Bonus spins are consumed before the daily base spin.
func (e *WheelEngine) Spin(ctx context.Context, userID uint) (*SpinResult, error) {
	now := e.now().UTC()
	defs, err := e.catalog.Active(ctx, models.KindWheel)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		cerr := &ConfigurationError{Kind: "wheel_catalog", Err: ErrNoRewardsConfigured}
		e.log.Error("wheel spin failed", zap.Uint("user_id", userID), zap.Error(cerr))
		return nil, cerr
	}

	var res SpinResult
	err = e.coord.Run(ctx, "wheel.spin", func(tx *Tx) error {
		level, err := lockUserLevel(tx, e.rc, userID)
		if err != nil {
			return err
		}
		base, bonus, err := e.wheelQuota(tx.DB(), userID, level, now)
		if err != nil {
			return err
		}
		if base+bonus == 0 {
			return notEligible(ReasonNoSpinsAvailable, NextDayStart(now).Sub(now))
		}

		def := defs[Pick(defs, definitionWeight, e.rng)]
		payout, err := PayoutFor(def, level, e.rc)
		if err != nil {
			return err
		}

		slot := models.SlotBase
		if bonus > 0 {
			if err := e.inv.Consume(tx.DB(), userID, models.RewardExtraSpin, 1, now); err != nil {
				return err
			}
			slot = models.SlotBonus
			bonus--
		} else {
			base--
		}

		value := payoutValue(payout)
		entry := models.RewardLog{
			ID:            uuid.NewString(),
			UserID:        userID,
			Kind:          models.KindWheel,
			RewardID:      &def.ID,
			RewardType:    &def.RewardType,
			Value:         &value,
			OutcomeStatus: models.OutcomeSuccess,
			SlotType:      slot,
			LastSuccessAt: &now,
			CreatedAt:     now,
		}
		if err := tx.DB().Create(&entry).Error; err != nil {
			return repoErr("create", "reward_log", err)
		}

		awarded, err := applyPayout(tx, e.rc, payout, awardSource{
			userID:  userID,
			source:  models.SourceWheel,
			refType: refWheelSpin,
			refID:   entry.ID,
		}, now)
		if err != nil {
			return err
		}

		res = SpinResult{
			LogID:          entry.ID,
			Reward:         viewOf(def, value),
			SlotType:       slot,
			Grant:          awarded.Grant,
			BaseRemaining:  base,
			BonusRemaining: bonus,
		}
		if awarded.Entry != nil {
			res.Balance = &awarded.Entry.BalanceAfter
		}
		return nil
	})
	if err != nil {
		if IsNotEligible(err) {
			e.log.Debug("wheel spin rejected", zap.Uint("user_id", userID), zap.Error(err))
		} else if IsConfigurationError(err) {
			e.log.Error("wheel spin failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		return nil, err
	}
	e.log.Info("wheel spun",
		zap.Uint("user_id", userID),
		zap.String("log_id", res.LogID),
		zap.String("reward", res.Reward.Code),
		zap.String("slot", res.SlotType))
	return &res, nil
}

// Status reports the spins left today without locking.
func (e *WheelEngine) Status(ctx context.Context, db *gorm.DB, userID uint) (WheelStatus, error) {
	now := e.now().UTC()
	db = db.WithContext(ctx)
	level, err := readUserLevel(db, e.rc, userID)
	if err != nil {
		return WheelStatus{}, err
	}
	base, bonus, err := e.wheelQuota(db, userID, level, now)
	if err != nil {
		return WheelStatus{}, err
	}
	return WheelStatus{
		DailyQuota:     level.DailySpins,
		BaseRemaining:  base,
		BonusRemaining: bonus,
		NextResetAt:    NextDayStart(now),
	}, nil
}

func viewOf(def models.RewardDefinition, value decimal.Decimal) RewardView {
	return RewardView{ID: def.ID, Code: def.Code, Label: def.Label, RewardType: def.RewardType, Value: value}
}
