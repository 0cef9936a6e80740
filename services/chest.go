package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/models"
)

const refChestOpen = "chest_open"

// OpenResult describes a chest opening. When every eligible reward was rejected Reward is
// nil, Reason is set and Open also returns a NotEligibleError; the slot is still spent.
type OpenResult struct {
	LogID          string             `json:"log_id"`
	Reward         *RewardView        `json:"reward,omitempty"`
	Reason         Reason             `json:"reason,omitempty"`
	SlotType       string             `json:"slot_type"`
	Grant          *models.UserReward `json:"grant,omitempty"`
	Balance        *decimal.Decimal   `json:"balance,omitempty"`
	BaseRemaining  int                `json:"base_remaining"`
	BonusRemaining int                `json:"bonus_remaining"`
}

// ChestStatus is the read-only chest projection.
type ChestStatus struct {
	WeeklyQuota          int        `json:"weekly_quota"`
	BaseRemaining        int        `json:"base_remaining"`
	BonusRemaining       int        `json:"bonus_remaining"`
	CooldownRemainingSec int64      `json:"cooldown_remaining_sec"`
	NextBaseAt           *time.Time `json:"next_base_at"`
	NextResetAt          time.Time  `json:"next_reset_at"`
}

// ChestEngine runs treasure chest openings.
type ChestEngine struct {
	coord   *Coordinator
	catalog *Catalog
	rc      *config.RewardConfig
	inv     Inventory
	rng     RandomSource
	now     func() time.Time
	log     *zap.Logger
}

// NewChestEngine creates a chest engine. A nil rng uses DefaultRandom.
func NewChestEngine(coord *Coordinator, catalog *Catalog, rc *config.RewardConfig, rng RandomSource, now func() time.Time, log *zap.Logger) *ChestEngine {
	if rng == nil {
		rng = DefaultRandom
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ChestEngine{coord: coord, catalog: catalog, rc: rc, rng: rng, now: now, log: log}
}

type chestQuota struct {
	base, bonus int
	weekStart   time.Time
	lastBase    *time.Time
}

func (q chestQuota) baseReadyAt(cooldown time.Duration) *time.Time {
	if q.lastBase == nil {
		return nil
	}
	t := q.lastBase.Add(cooldown).UTC()
	return &t
}

// quota counts every base slot used this week, failed openings included, plus the last
// successful base opening for the rolling cooldown.
func (e *ChestEngine) quota(db *gorm.DB, userID uint, level config.Level, now time.Time) (chestQuota, error) {
	q := chestQuota{weekStart: WeekStart(now, e.rc.Chest.Weekday(), e.rc.Chest.ResetHour)}
	var used int64
	err := db.Model(&models.RewardLog{}).
		Where("user_id = ? AND kind = ? AND slot_type = ? AND created_at >= ?",
			userID, models.KindChest, models.SlotBase, q.weekStart).
		Count(&used).Error
	if err != nil {
		return q, repoErr("count", "reward_log", err)
	}
	q.base = level.WeeklyChests - int(used)
	if q.base < 0 {
		q.base = 0
	}

	var last models.RewardLog
	res := db.Where("user_id = ? AND kind = ? AND slot_type = ? AND outcome_status = ?",
		userID, models.KindChest, models.SlotBase, models.OutcomeSuccess).
		Order("created_at DESC").Limit(1).Find(&last)
	if res.Error != nil {
		return q, repoErr("find", "reward_log", res.Error)
	}
	if res.RowsAffected > 0 {
		t := last.CreatedAt.UTC()
		q.lastBase = &t
	}

	q.bonus, err = e.inv.Available(db, userID, models.RewardTreasureChest, now)
	return q, err
}

type rewardHistory struct {
	thisWeek    int
	lastSuccess time.Time
}

// rewardHistories loads this user's successful chest rewards recent enough to matter for a
// weekly cap or a per-reward cooldown.
func (e *ChestEngine) rewardHistories(db *gorm.DB, userID uint, defs []models.RewardDefinition, weekStart, now time.Time) (map[uint]*rewardHistory, error) {
	since := weekStart
	ids := make([]uint, 0, len(defs))
	for _, d := range defs {
		ids = append(ids, d.ID)
		if d.CooldownHours > 0 {
			if t := now.Add(-time.Duration(d.CooldownHours) * time.Hour); t.Before(since) {
				since = t
			}
		}
	}
	var logs []models.RewardLog
	err := db.Select("reward_id", "created_at").
		Where("user_id = ? AND kind = ? AND outcome_status = ? AND reward_id IN ? AND created_at >= ?",
			userID, models.KindChest, models.OutcomeSuccess, ids, since).
		Find(&logs).Error
	if err != nil {
		return nil, repoErr("list", "reward_log", err)
	}
	hist := make(map[uint]*rewardHistory, len(defs))
	for _, l := range logs {
		if l.RewardID == nil {
			continue
		}
		h, ok := hist[*l.RewardID]
		if !ok {
			h = &rewardHistory{}
			hist[*l.RewardID] = h
		}
		if !l.CreatedAt.Before(weekStart) {
			h.thisWeek++
		}
		if l.CreatedAt.After(h.lastSuccess) {
			h.lastSuccess = l.CreatedAt
		}
	}
	return hist, nil
}

// Open opens one chest. Bonus chests are used first and skip the base cooldown. When the
// weekly cap or cooldown of every tier-eligible reward rejects the user, the failed opening
// is still committed and a NotEligibleError carrying the last rejection is returned.
func (e *ChestEngine) Open(ctx context.Context, userID uint) (*OpenResult, error) {
	now := e.now().UTC()
	defs, err := e.catalog.Active(ctx, models.KindChest)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		cerr := &ConfigurationError{Kind: "chest_catalog", Err: ErrNoRewardsConfigured}
		e.log.Error("chest open failed", zap.Uint("user_id", userID), zap.Error(cerr))
		return nil, cerr
	}

	var res OpenResult
	var rejected *NotEligibleError
	err = e.coord.Run(ctx, "chest.open", func(tx *Tx) error {
		res, rejected = OpenResult{}, nil
		level, err := lockUserLevel(tx, e.rc, userID)
		if err != nil {
			return err
		}
		q, err := e.quota(tx.DB(), userID, level, now)
		if err != nil {
			return err
		}

		slot := models.SlotBonus
		if q.bonus == 0 {
			if q.base == 0 {
				return notEligible(ReasonNoChestsAvailable, NextWeekStart(now, e.rc.Chest.Weekday(), e.rc.Chest.ResetHour).Sub(now))
			}
			if ready := q.baseReadyAt(e.rc.Chest.BaseCooldown()); ready != nil && now.Before(*ready) {
				return notEligible(ReasonChestCooldown, ready.Sub(now))
			}
			slot = models.SlotBase
		}

		pool := eligibleForStatus(defs, e.rc, level.Status)
		if len(pool) == 0 {
			return &ConfigurationError{
				Kind: "chest_catalog",
				Err:  fmt.Errorf("%w for status %q", ErrNoRewardsConfigured, level.Status),
			}
		}
		hist, err := e.rewardHistories(tx.DB(), userID, pool, q.weekStart, now)
		if err != nil {
			return err
		}
		sel := SelectEligible(pool, definitionWeight, e.rng, func(d models.RewardDefinition) (bool, Reason) {
			h := hist[d.ID]
			if h == nil {
				return true, ""
			}
			if d.MaxPerWeek > 0 && h.thisWeek >= d.MaxPerWeek {
				return false, ReasonMaxRewardLimit
			}
			if d.CooldownHours > 0 && now.Before(h.lastSuccess.Add(time.Duration(d.CooldownHours)*time.Hour)) {
				return false, ReasonRewardCooldown
			}
			return true, ""
		})

		if slot == models.SlotBonus {
			if err := e.inv.Consume(tx.DB(), userID, models.RewardTreasureChest, 1, now); err != nil {
				return err
			}
			q.bonus--
		} else {
			q.base--
		}
		res.SlotType = slot
		res.BaseRemaining = q.base
		res.BonusRemaining = q.bonus

		entry := models.RewardLog{
			ID:        uuid.NewString(),
			UserID:    userID,
			Kind:      models.KindChest,
			SlotType:  slot,
			CreatedAt: now,
		}
		res.LogID = entry.ID

		if sel.Exhausted {
			entry.OutcomeStatus = models.OutcomeFailed
			entry.ReasonCode = string(sel.Reason)
			entry.LastSuccessAt = q.lastBase
			if err := tx.DB().Create(&entry).Error; err != nil {
				return repoErr("create", "reward_log", err)
			}
			res.Reason = sel.Reason
			rejected = &NotEligibleError{Reason: sel.Reason, Remaining: q.base + q.bonus}
			return nil
		}

		def := sel.Item
		payout, err := PayoutFor(def, level, e.rc)
		if err != nil {
			return err
		}
		value := payoutValue(payout)
		entry.RewardID = &def.ID
		entry.RewardType = &def.RewardType
		entry.Value = &value
		entry.OutcomeStatus = models.OutcomeSuccess
		entry.LastSuccessAt = &now
		if err := tx.DB().Create(&entry).Error; err != nil {
			return repoErr("create", "reward_log", err)
		}

		awarded, err := applyPayout(tx, e.rc, payout, awardSource{
			userID:  userID,
			source:  models.SourceChest,
			refType: refChestOpen,
			refID:   entry.ID,
		}, now)
		if err != nil {
			return err
		}
		view := viewOf(def, value)
		res.Reward = &view
		res.Grant = awarded.Grant
		if awarded.Entry != nil {
			res.Balance = &awarded.Entry.BalanceAfter
		}
		return nil
	})
	if err != nil {
		if IsNotEligible(err) {
			e.log.Debug("chest open rejected", zap.Uint("user_id", userID), zap.Error(err))
		} else if IsConfigurationError(err) {
			e.log.Error("chest open failed", zap.Uint("user_id", userID), zap.Error(err))
		}
		return nil, err
	}
	if rejected != nil {
		e.log.Info("chest opened empty",
			zap.Uint("user_id", userID),
			zap.String("log_id", res.LogID),
			zap.String("reason", string(rejected.Reason)))
		return &res, rejected
	}
	e.log.Info("chest opened",
		zap.Uint("user_id", userID),
		zap.String("log_id", res.LogID),
		zap.String("reward", res.Reward.Code),
		zap.String("slot", res.SlotType))
	return &res, nil
}

// Status reports chests left this week and the base cooldown without locking.
func (e *ChestEngine) Status(ctx context.Context, db *gorm.DB, userID uint) (ChestStatus, error) {
	now := e.now().UTC()
	db = db.WithContext(ctx)
	level, err := readUserLevel(db, e.rc, userID)
	if err != nil {
		return ChestStatus{}, err
	}
	q, err := e.quota(db, userID, level, now)
	if err != nil {
		return ChestStatus{}, err
	}
	st := ChestStatus{
		WeeklyQuota:    level.WeeklyChests,
		BaseRemaining:  q.base,
		BonusRemaining: q.bonus,
		NextResetAt:    NextWeekStart(now, e.rc.Chest.Weekday(), e.rc.Chest.ResetHour),
	}
	if ready := q.baseReadyAt(e.rc.Chest.BaseCooldown()); ready != nil {
		st.NextBaseAt = ready
		st.CooldownRemainingSec = int64(remaining(*ready, now).Seconds())
	}
	return st, nil
}
