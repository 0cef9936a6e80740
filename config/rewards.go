package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// FaucetConfig holds the faucet reward curve constants.
type FaucetConfig struct {
	BaseReward           int64   `toml:"base_reward"`
	GrowthRate           float64 `toml:"growth_rate"`
	MaxReward            int64   `toml:"max_reward"`
	BaseDailyTarget      int64   `toml:"base_daily_target"`
	TargetGrowthRate     float64 `toml:"target_growth_rate"`
	MaxDailyTarget       int64   `toml:"max_daily_target"`
	MaxStreakDays        int     `toml:"max_streak_days"`
	ClaimCooldownMinutes int     `toml:"claim_cooldown_minutes"`
}

// ClaimCooldown is the minimum interval between two claims of one user.
func (f FaucetConfig) ClaimCooldown() time.Duration {
	return time.Duration(f.ClaimCooldownMinutes) * time.Minute
}

// ChestConfig holds the weekly chest boundaries.
type ChestConfig struct {
	ResetWeekday      string `toml:"reset_weekday"`
	ResetHour         int    `toml:"reset_hour"`
	BaseCooldownHours int    `toml:"base_cooldown_hours"`
}

// BaseCooldown gates consecutive base chests.
func (c ChestConfig) BaseCooldown() time.Duration {
	return time.Duration(c.BaseCooldownHours) * time.Hour
}

// Weekday parses ResetWeekday; validated on load.
func (c ChestConfig) Weekday() time.Weekday {
	wd, _ := parseWeekday(c.ResetWeekday)
	return wd
}

// GrantConfig holds the default lifetime of each bonus grant type.
type GrantConfig struct {
	ExtraSpinHours     int `toml:"extra_spin_hours"`
	TreasureChestHours int `toml:"treasure_chest_hours"`
	OfferBoostHours    int `toml:"offer_boost_hours"`
	PtcDiscountDays    int `toml:"ptc_discount_days"`
}

// Level is one row of the level table. Quotas and the boost percentage belong to the
// status/sub-tier reached at that level.
type Level struct {
	Level         int    `toml:"level"`
	MinXP         int64  `toml:"min_xp"`
	Status        string `toml:"status"`
	SubTier       int    `toml:"sub_tier"`
	DailySpins    int    `toml:"daily_spins"`
	WeeklyChests  int    `toml:"weekly_chests"`
	OfferBoostPct int    `toml:"offer_boost_pct"`
}

// CatalogEntry seeds one wheel or chest reward definition.
type CatalogEntry struct {
	Code          string `toml:"code"`
	Kind          string `toml:"kind"`
	Label         string `toml:"label"`
	Weight        int    `toml:"weight"`
	RewardType    string `toml:"reward_type"`
	CoinValue     string `toml:"coin_value"`
	MinStatus     string `toml:"min_status"`
	MaxPerWeek    int    `toml:"max_per_week"`
	CooldownHours int    `toml:"cooldown_hours"`
	BoostPct      int    `toml:"boost_pct"`
	DurationHours int    `toml:"duration_hours"`
	Quantity      int    `toml:"quantity"`
	Disabled      bool   `toml:"disabled"`
}

// Value parses CoinValue; validated on load.
func (e CatalogEntry) Value() decimal.Decimal {
	if e.CoinValue == "" {
		return decimal.Zero
	}
	d, _ := decimal.NewFromString(e.CoinValue)
	return d
}

type rewardsFile struct {
	Faucet      FaucetConfig   `toml:"faucet"`
	Chest       ChestConfig    `toml:"chest"`
	Grants      GrantConfig    `toml:"grants"`
	StatusOrder []string       `toml:"status_order"`
	Levels      []Level        `toml:"levels"`
	Rewards     []CatalogEntry `toml:"rewards"`
}

// RewardConfig is the frozen reward configuration. It is built once at boot and shared
// read-only by every engine; accessors hand out copies.
type RewardConfig struct {
	Faucet FaucetConfig
	Chest  ChestConfig
	Grants GrantConfig

	statusRank map[string]int
	levels     []Level
	catalog    []CatalogEntry
}

var knownRewardTypes = map[string]bool{
	"coins":          true,
	"cash_usd":       true,
	"offer_boost":    true,
	"ptc_discount":   true,
	"extra_spin":     true,
	"treasure_chest": true,
}

// LoadRewards reads and validates the TOML reward configuration at path.
func LoadRewards(path string) (*RewardConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rewards config: %w", err)
	}
	return ParseRewards(b)
}

// ParseRewards decodes and validates a TOML reward configuration.
func ParseRewards(data []byte) (*RewardConfig, error) {
	var raw rewardsFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rewards config: %w", err)
	}
	applyRewardDefaults(&raw)
	if err := validateRewards(&raw); err != nil {
		return nil, err
	}

	rc := &RewardConfig{
		Faucet:     raw.Faucet,
		Chest:      raw.Chest,
		Grants:     raw.Grants,
		statusRank: make(map[string]int, len(raw.StatusOrder)),
		levels:     append([]Level(nil), raw.Levels...),
		catalog:    append([]CatalogEntry(nil), raw.Rewards...),
	}
	for i, s := range raw.StatusOrder {
		rc.statusRank[s] = i + 1
	}
	sort.Slice(rc.levels, func(i, j int) bool { return rc.levels[i].MinXP < rc.levels[j].MinXP })
	return rc, nil
}

func applyRewardDefaults(r *rewardsFile) {
	f := &r.Faucet
	if f.MaxStreakDays == 0 {
		f.MaxStreakDays = 30
	}
	if f.ClaimCooldownMinutes == 0 {
		f.ClaimCooldownMinutes = 20
	}
	if f.MaxReward == 0 {
		f.MaxReward = f.BaseReward
	}
	if f.MaxDailyTarget == 0 {
		f.MaxDailyTarget = f.BaseDailyTarget
	}
	if r.Chest.ResetWeekday == "" {
		r.Chest.ResetWeekday = "monday"
	}
	if r.Chest.BaseCooldownHours == 0 {
		r.Chest.BaseCooldownHours = 24
	}
	g := &r.Grants
	if g.ExtraSpinHours == 0 {
		g.ExtraSpinHours = 7 * 24
	}
	if g.TreasureChestHours == 0 {
		g.TreasureChestHours = 7 * 24
	}
	if g.OfferBoostHours == 0 {
		g.OfferBoostHours = 24
	}
	if g.PtcDiscountDays == 0 {
		g.PtcDiscountDays = 3
	}
}

func validateRewards(r *rewardsFile) error {
	f := r.Faucet
	if f.BaseReward <= 0 || f.MaxReward < f.BaseReward {
		return fmt.Errorf("faucet: base_reward must be positive and not above max_reward")
	}
	if f.BaseDailyTarget <= 0 || f.MaxDailyTarget < f.BaseDailyTarget {
		return fmt.Errorf("faucet: base_daily_target must be positive and not above max_daily_target")
	}
	if f.GrowthRate < 0 || f.TargetGrowthRate < 0 {
		return fmt.Errorf("faucet: growth rates must not be negative")
	}
	if _, ok := parseWeekday(r.Chest.ResetWeekday); !ok {
		return fmt.Errorf("chest: unknown reset_weekday %q", r.Chest.ResetWeekday)
	}
	if r.Chest.ResetHour < 0 || r.Chest.ResetHour > 23 {
		return fmt.Errorf("chest: reset_hour must be within 0-23")
	}
	if len(r.StatusOrder) == 0 {
		return fmt.Errorf("status_order must list at least one status")
	}
	known := make(map[string]bool, len(r.StatusOrder))
	for _, s := range r.StatusOrder {
		known[s] = true
	}
	if len(r.Levels) == 0 {
		return fmt.Errorf("levels must contain at least one row")
	}
	hasFloor := false
	for _, l := range r.Levels {
		if !known[l.Status] {
			return fmt.Errorf("level %d: unknown status %q", l.Level, l.Status)
		}
		if l.DailySpins < 0 || l.WeeklyChests < 0 {
			return fmt.Errorf("level %d: quotas must not be negative", l.Level)
		}
		if l.MinXP == 0 {
			hasFloor = true
		}
	}
	if !hasFloor {
		return fmt.Errorf("levels: one row must start at min_xp = 0")
	}
	codes := make(map[string]bool, len(r.Rewards))
	for _, e := range r.Rewards {
		if e.Code == "" || codes[e.Code] {
			return fmt.Errorf("reward %q: code must be unique and non-empty", e.Code)
		}
		codes[e.Code] = true
		if e.Kind != "wheel" && e.Kind != "chest" {
			return fmt.Errorf("reward %s: unknown kind %q", e.Code, e.Kind)
		}
		if !knownRewardTypes[e.RewardType] {
			return fmt.Errorf("reward %s: unknown reward_type %q", e.Code, e.RewardType)
		}
		if e.Weight < 0 {
			return fmt.Errorf("reward %s: weight must not be negative", e.Code)
		}
		if e.MinStatus != "" && !known[e.MinStatus] {
			return fmt.Errorf("reward %s: unknown min_status %q", e.Code, e.MinStatus)
		}
		if e.CoinValue != "" {
			d, err := decimal.NewFromString(e.CoinValue)
			if err != nil || d.IsNegative() {
				return fmt.Errorf("reward %s: coin_value must be a non-negative decimal", e.Code)
			}
		}
	}
	return nil
}

// LevelFor returns the highest level row reached with xp experience.
func (rc *RewardConfig) LevelFor(xp int64) Level {
	lvl := rc.levels[0]
	for _, l := range rc.levels {
		if l.MinXP <= xp {
			lvl = l
		}
	}
	return lvl
}

// StatusRank orders statuses; an empty status ranks below every tier.
func (rc *RewardConfig) StatusRank(status string) int {
	return rc.statusRank[status]
}

// Levels returns a copy of the level table ordered by min_xp.
func (rc *RewardConfig) Levels() []Level {
	return append([]Level(nil), rc.levels...)
}

// Catalog returns a copy of the configured reward catalog.
func (rc *RewardConfig) Catalog() []CatalogEntry {
	return append([]CatalogEntry(nil), rc.catalog...)
}

// GrantLifetime is the default expiry of a grant of rewardType.
func (rc *RewardConfig) GrantLifetime(rewardType string) time.Duration {
	switch rewardType {
	case "extra_spin":
		return time.Duration(rc.Grants.ExtraSpinHours) * time.Hour
	case "treasure_chest":
		return time.Duration(rc.Grants.TreasureChestHours) * time.Hour
	case "offer_boost":
		return time.Duration(rc.Grants.OfferBoostHours) * time.Hour
	case "ptc_discount":
		return time.Duration(rc.Grants.PtcDiscountDays) * 24 * time.Hour
	default:
		return 0
	}
}

func parseWeekday(s string) (time.Weekday, bool) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return d, true
		}
	}
	return time.Sunday, false
}
