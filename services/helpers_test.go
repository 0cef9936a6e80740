package services

import (
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/models"
)

const testRewardsTOML = `
status_order = ["bronze", "silver", "gold"]

[faucet]
base_reward = 12
growth_rate = 0.10
max_reward = 60
base_daily_target = 300
target_growth_rate = 0.10
max_daily_target = 2000
max_streak_days = 30
claim_cooldown_minutes = 20

[chest]
reset_weekday = "monday"
reset_hour = 0
base_cooldown_hours = 24

[grants]
extra_spin_hours = 168
treasure_chest_hours = 168
offer_boost_hours = 24
ptc_discount_days = 3

[[levels]]
level = 1
min_xp = 0
status = "bronze"
daily_spins = 1
weekly_chests = 1
offer_boost_pct = 5

[[levels]]
level = 10
min_xp = 10000
status = "gold"
daily_spins = 2
weekly_chests = 3
offer_boost_pct = 10
`

// Wednesday 2024-05-15 09:00:00 UTC.
var testEpoch = time.Date(2024, 5, 15, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock(t time.Time) *testClock { return &testClock{t: t} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// fixedRand always draws the same value modulo n.
type fixedRand int64

func (f fixedRand) Int63n(n int64) int64 { return int64(f) % n }

func testRewardConfig(t *testing.T) *config.RewardConfig {
	t.Helper()
	rc, err := config.ParseRewards([]byte(testRewardsTOML))
	if err != nil {
		t.Fatalf("ParseRewards() error = %v", err)
	}
	return rc
}

// newTestDB opens a private in-memory database. The pool holds a single connection so
// transactions run one after another, the way row locks serialize them on MySQL.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Second) },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&models.User{},
		&models.Balance{},
		&models.LedgerEntry{},
		&models.FaucetStreak{},
		&models.FaucetHistory{},
		&models.FaucetClaim{},
		&models.RewardDefinition{},
		&models.RewardLog{},
		&models.UserReward{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string, xp int64) models.User {
	t.Helper()
	u := models.User{Username: name, Experience: xp}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func createDefinition(t *testing.T, db *gorm.DB, def models.RewardDefinition) models.RewardDefinition {
	t.Helper()
	def.IsActive = true
	if def.Label == "" {
		def.Label = def.Code
	}
	if err := db.Create(&def).Error; err != nil {
		t.Fatalf("create definition %s: %v", def.Code, err)
	}
	return def
}

func coins(code, kind string, weight int, value int64) models.RewardDefinition {
	return models.RewardDefinition{
		Code:       code,
		Kind:       kind,
		Weight:     weight,
		RewardType: models.RewardCoins,
		CoinValue:  decimal.NewFromInt(value),
	}
}

type fixture struct {
	db      *gorm.DB
	rc      *config.RewardConfig
	clock   *testClock
	rewards *Rewards
}

func newFixture(t *testing.T, rng RandomSource) *fixture {
	t.Helper()
	db := newTestDB(t)
	rc := testRewardConfig(t)
	clock := newTestClock(testEpoch)
	return &fixture{
		db:    db,
		rc:    rc,
		clock: clock,
		rewards: NewRewards(Options{
			DB:     db,
			Config: rc,
			Random: rng,
			Clock:  clock.Now,
		}),
	}
}

func (f *fixture) balance(t *testing.T, userID uint, currency string) decimal.Decimal {
	t.Helper()
	var b models.Balance
	res := f.db.Where("user_id = ? AND currency = ?", userID, currency).Limit(1).Find(&b)
	if res.Error != nil {
		t.Fatalf("load balance: %v", res.Error)
	}
	return b.Available
}

func (f *fixture) grant(t *testing.T, userID uint, rewardType string, qty int, at time.Time) models.UserReward {
	t.Helper()
	exp := at.Add(7 * 24 * time.Hour)
	g, err := Inventory{}.Grant(f.db, models.UserReward{
		UserID:     userID,
		RewardType: rewardType,
		SourceType: models.SourceAdmin,
		Quantity:   qty,
		ExpiresAt:  &exp,
	}, at)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	return g
}
