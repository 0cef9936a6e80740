package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/models"
)

// Payout is what a resolved wheel or chest reward grants. The concrete types below are
// the complete set; every consumer switches over all of them.
type Payout interface {
	rewardType() string
}

// Coins credits the coin balance.
type Coins struct{ Amount decimal.Decimal }

// CashUSD credits the USD balance.
type CashUSD struct{ Amount decimal.Decimal }

// OfferBoost raises offerwall payouts by Pct for Hours.
type OfferBoost struct {
	Pct   int
	Hours int
}

// PtcDiscount lowers PTC advertising prices by Pct for Days.
type PtcDiscount struct {
	Pct  int
	Days int
}

// ExtraSpin grants Count bonus wheel spins.
type ExtraSpin struct{ Count int }

// ChestGrant grants Count bonus treasure chests.
type ChestGrant struct{ Count int }

func (Coins) rewardType() string       { return models.RewardCoins }
func (CashUSD) rewardType() string     { return models.RewardCashUSD }
func (OfferBoost) rewardType() string  { return models.RewardOfferBoost }
func (PtcDiscount) rewardType() string { return models.RewardPtcDiscount }
func (ExtraSpin) rewardType() string   { return models.RewardExtraSpin }
func (ChestGrant) rewardType() string  { return models.RewardTreasureChest }

// PayoutFor resolves the payout of def for a user at level. Offer boosts without their own
// percentage use the level's boost percentage.
func PayoutFor(def models.RewardDefinition, level config.Level, rc *config.RewardConfig) (Payout, error) {
	qty := def.Quantity
	if qty <= 0 {
		qty = 1
	}
	switch def.RewardType {
	case models.RewardCoins:
		return Coins{Amount: def.CoinValue}, nil
	case models.RewardCashUSD:
		return CashUSD{Amount: def.CoinValue}, nil
	case models.RewardOfferBoost:
		pct := def.BoostPct
		if pct <= 0 {
			pct = level.OfferBoostPct
		}
		hours := def.DurationHours
		if hours <= 0 {
			hours = rc.Grants.OfferBoostHours
		}
		return OfferBoost{Pct: pct, Hours: hours}, nil
	case models.RewardPtcDiscount:
		// partial days round up so the discount never runs shorter than configured
		days := (def.DurationHours + 23) / 24
		if days <= 0 {
			days = rc.Grants.PtcDiscountDays
		}
		return PtcDiscount{Pct: def.BoostPct, Days: days}, nil
	case models.RewardExtraSpin:
		return ExtraSpin{Count: qty}, nil
	case models.RewardTreasureChest:
		return ChestGrant{Count: qty}, nil
	default:
		return nil, &ConfigurationError{Kind: "reward_type", Err: fmt.Errorf("reward %s has unknown type %q", def.Code, def.RewardType)}
	}
}

// payoutValue is the amount recorded on the reward log.
func payoutValue(p Payout) decimal.Decimal {
	switch v := p.(type) {
	case Coins:
		return v.Amount
	case CashUSD:
		return v.Amount
	case OfferBoost:
		return decimal.NewFromInt(int64(v.Pct))
	case PtcDiscount:
		return decimal.NewFromInt(int64(v.Pct))
	case ExtraSpin:
		return decimal.NewFromInt(int64(v.Count))
	case ChestGrant:
		return decimal.NewFromInt(int64(v.Count))
	default:
		panic(fmt.Sprintf("unhandled payout %T", p))
	}
}

// Awarded is what applying a payout wrote: a ledger entry for currency payouts or an
// inventory grant for perks.
type Awarded struct {
	Entry *models.LedgerEntry
	Grant *models.UserReward
}

// awardSource identifies the event a payout belongs to.
type awardSource struct {
	userID  uint
	source  string
	refType string
	refID   string
}

// applyPayout credits currency payouts and stores perks in the inventory. A zero coin
// payout writes nothing.
func applyPayout(tx *Tx, rc *config.RewardConfig, p Payout, src awardSource, now time.Time) (Awarded, error) {
	var inv Inventory
	var ledger Ledger
	credit := func(currency string, amount decimal.Decimal) (Awarded, error) {
		if !amount.IsPositive() {
			return Awarded{}, nil
		}
		entry, err := ledger.Credit(tx, Posting{
			UserID:         src.userID,
			Currency:       currency,
			Amount:         amount,
			RefType:        src.refType,
			RefID:          src.refID,
			IdempotencyKey: IdempotencyKey(src.refType, src.refID),
		}, now)
		if err != nil {
			return Awarded{}, err
		}
		return Awarded{Entry: &entry}, nil
	}
	grant := func(rewardType string, qty int, payload models.GrantPayload, ttl time.Duration) (Awarded, error) {
		g := models.UserReward{
			UserID:     src.userID,
			RewardType: rewardType,
			SourceType: src.source,
			SourceID:   src.refID,
			Quantity:   qty,
			Payload:    payload,
		}
		if ttl > 0 {
			exp := now.Add(ttl)
			g.ExpiresAt = &exp
		}
		g, err := inv.Grant(tx.DB(), g, now)
		if err != nil {
			return Awarded{}, err
		}
		return Awarded{Grant: &g}, nil
	}

	switch v := p.(type) {
	case Coins:
		return credit(models.CurrencyCoin, v.Amount)
	case CashUSD:
		return credit(models.CurrencyUSD, v.Amount)
	case OfferBoost:
		return grant(models.RewardOfferBoost, 1, models.GrantPayload{BoostPct: v.Pct}, time.Duration(v.Hours)*time.Hour)
	case PtcDiscount:
		return grant(models.RewardPtcDiscount, 1, models.GrantPayload{DiscountPct: v.Pct, DurationDays: v.Days}, time.Duration(v.Days)*24*time.Hour)
	case ExtraSpin:
		return grant(models.RewardExtraSpin, v.Count, models.GrantPayload{}, rc.GrantLifetime(models.RewardExtraSpin))
	case ChestGrant:
		return grant(models.RewardTreasureChest, v.Count, models.GrantPayload{}, rc.GrantLifetime(models.RewardTreasureChest))
	default:
		return Awarded{}, fmt.Errorf("unhandled payout %T", p)
	}
}
