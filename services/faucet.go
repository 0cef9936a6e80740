package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/models"
)

const refFaucetClaim = "faucet_claim"

// EvaluateStreak applies the day rollover to s as of now. On a new UTC day the finished day
// is returned for archiving: the streak advances when exactly one day passed and the target
// was met, otherwise it resets to day 1.
func EvaluateStreak(curve Curve, s models.FaucetStreak, now time.Time) (models.FaucetStreak, *models.FaucetHistory) {
	days := DaysBetween(s.StreakDate, now)
	if days <= 0 {
		return s, nil
	}
	target := curve.Target(s.CurrentDay)
	done := &models.FaucetHistory{
		UserID:     s.UserID,
		StreakDay:  s.CurrentDay,
		Earned:     s.TotalEarnedToday,
		Target:     target,
		TargetMet:  s.TotalEarnedToday >= target,
		StreakDate: DayStart(s.StreakDate),
		CreatedAt:  now,
	}
	next := s
	next.TotalEarnedToday = 0
	next.StreakDate = DayStart(now)
	next.CurrentDay = 1
	if days == 1 && done.TargetMet {
		next.CurrentDay = s.CurrentDay + 1
		if next.CurrentDay > curve.MaxDay() {
			next.CurrentDay = curve.MaxDay()
		}
	}
	return next, done
}

// ClaimRequest carries the audit context of a faucet claim.
type ClaimRequest struct {
	UserID            uint
	IP                string
	DeviceFingerprint string
}

// ClaimResult describes a successful faucet claim.
type ClaimResult struct {
	ClaimID     string          `json:"claim_id"`
	Amount      int64           `json:"amount"`
	StreakDay   int             `json:"streak_day"`
	EarnedToday int64           `json:"earned_today"`
	Target      int64           `json:"target"`
	NextClaimAt time.Time       `json:"next_claim_at"`
	Balance     decimal.Decimal `json:"balance"`
}

// FaucetStatus is the read-only faucet projection.
type FaucetStatus struct {
	CurrentDay           int        `json:"current_day"`
	MaxDay               int        `json:"max_day"`
	DayReward            int64      `json:"day_reward"`
	Target               int64      `json:"target"`
	EarnedToday          int64      `json:"earned_today"`
	CooldownRemainingSec int64      `json:"cooldown_remaining_sec"`
	NextClaimAt          *time.Time `json:"next_claim_at"`
	NextResetAt          time.Time  `json:"next_reset_at"`
	YesterdayTargetMet   bool       `json:"yesterday_target_met"`
}

// FaucetEngine runs faucet claims.
type FaucetEngine struct {
	coord    *Coordinator
	curve    Curve
	cooldown time.Duration
	ledger   Ledger
	now      func() time.Time
	log      *zap.Logger
}

// NewFaucetEngine creates a faucet engine.
func NewFaucetEngine(coord *Coordinator, cfg config.FaucetConfig, now func() time.Time, log *zap.Logger) *FaucetEngine {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FaucetEngine{
		coord:    coord,
		curve:    NewCurve(cfg),
		cooldown: cfg.ClaimCooldown(),
		now:      now,
		log:      log,
	}
}

// Claim awards the current day's reward when the cooldown has passed. The streak row is
// locked for the whole transaction, so of two concurrent claims the second observes the
// first's lastClaimAt and is rejected.
func (e *FaucetEngine) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	now := e.now().UTC()
	var res ClaimResult
	err := e.coord.Run(ctx, "faucet.claim", func(tx *Tx) error {
		streak, err := tx.LockStreak(req.UserID, now)
		if err != nil {
			return err
		}
		if streak.LastClaimAt != nil {
			ready := streak.LastClaimAt.Add(e.cooldown)
			if now.Before(ready) {
				return notEligible(ReasonCooldownNotExpired, ready.Sub(now))
			}
		}

		next, done := EvaluateStreak(e.curve, streak, now)
		if done != nil {
			if err := tx.DB().Create(done).Error; err != nil {
				return repoErr("create", "faucet_history", err)
			}
		}

		amount := e.curve.DayReward(next.CurrentDay)
		claim := models.FaucetClaim{
			ID:                uuid.NewString(),
			UserID:            req.UserID,
			Amount:            amount,
			StreakDay:         next.CurrentDay,
			IP:                req.IP,
			DeviceFingerprint: req.DeviceFingerprint,
			ClaimedAt:         now,
		}
		if err := tx.DB().Create(&claim).Error; err != nil {
			return repoErr("create", "faucet_claim", err)
		}

		next.TotalEarnedToday += amount
		err = tx.DB().Model(&models.FaucetStreak{}).Where("user_id = ?", req.UserID).Updates(map[string]interface{}{
			"current_day":        next.CurrentDay,
			"total_earned_today": next.TotalEarnedToday,
			"last_claim_at":      now,
			"streak_date":        next.StreakDate,
			"updated_at":         now,
		}).Error
		if err != nil {
			return repoErr("update", "faucet_streak", err)
		}

		entry, err := e.ledger.Credit(tx, Posting{
			UserID:         req.UserID,
			Currency:       models.CurrencyCoin,
			Amount:         decimal.NewFromInt(amount),
			RefType:        refFaucetClaim,
			RefID:          claim.ID,
			IdempotencyKey: IdempotencyKey(refFaucetClaim, claim.ID),
		}, now)
		if err != nil {
			return err
		}

		res = ClaimResult{
			ClaimID:     claim.ID,
			Amount:      amount,
			StreakDay:   next.CurrentDay,
			EarnedToday: next.TotalEarnedToday,
			Target:      e.curve.Target(next.CurrentDay),
			NextClaimAt: now.Add(e.cooldown),
			Balance:     entry.BalanceAfter,
		}
		return nil
	})
	if err != nil {
		if IsNotEligible(err) {
			e.log.Debug("faucet claim rejected", zap.Uint("user_id", req.UserID), zap.Error(err))
		}
		return nil, err
	}
	e.log.Info("faucet claimed",
		zap.Uint("user_id", req.UserID),
		zap.String("claim_id", res.ClaimID),
		zap.Int64("amount", res.Amount),
		zap.Int("streak_day", res.StreakDay))
	return &res, nil
}

// Status projects the faucet state as of now without persisting the rollover.
func (e *FaucetEngine) Status(ctx context.Context, db *gorm.DB, userID uint) (FaucetStatus, error) {
	now := e.now().UTC()
	db = db.WithContext(ctx)

	streak := models.FaucetStreak{UserID: userID, CurrentDay: 1, StreakDate: DayStart(now)}
	err := db.Where("user_id = ?", userID).First(&streak).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return FaucetStatus{}, repoErr("find", "faucet_streak", err)
	}
	next, done := EvaluateStreak(e.curve, streak, now)

	st := FaucetStatus{
		CurrentDay:  next.CurrentDay,
		MaxDay:      e.curve.MaxDay(),
		DayReward:   e.curve.DayReward(next.CurrentDay),
		Target:      e.curve.Target(next.CurrentDay),
		EarnedToday: next.TotalEarnedToday,
		NextResetAt: NextDayStart(now),
	}
	if streak.LastClaimAt != nil {
		ready := streak.LastClaimAt.Add(e.cooldown).UTC()
		st.NextClaimAt = &ready
		st.CooldownRemainingSec = int64(remaining(ready, now).Seconds())
	}

	if done != nil {
		st.YesterdayTargetMet = done.TargetMet && DaysBetween(done.StreakDate, now) == 1
	} else {
		var last models.FaucetHistory
		res := db.Where("user_id = ? AND streak_date = ?", userID, DayStart(now).AddDate(0, 0, -1)).
			Order("id DESC").Limit(1).Find(&last)
		if res.Error != nil {
			return FaucetStatus{}, repoErr("find", "faucet_history", res.Error)
		}
		st.YesterdayTargetMet = res.RowsAffected > 0 && last.TargetMet
	}
	return st, nil
}
