package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cppla/rewards/models"
)

// memoryCache keeps snapshots for a fixed hold on the test clock regardless of the ttl it
// is given, the way a cache with a coarse TTL would.
type memoryCache struct {
	mu        sync.Mutex
	clock     *testClock
	hold      time.Duration
	entries   map[uint]memoryEntry
	versions  map[uint]int64
	lastTTL   time.Duration
	onVersion func()
}

type memoryEntry struct {
	st      Status
	expires time.Time
}

func newMemoryCache(clock *testClock) *memoryCache {
	return &memoryCache{
		clock:    clock,
		hold:     time.Hour,
		entries:  map[uint]memoryEntry{},
		versions: map[uint]int64{},
	}
}

func (c *memoryCache) Get(_ context.Context, userID uint) (*Status, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[userID]
	if !ok || !c.clock.Now().Before(e.expires) {
		return nil, false
	}
	st := e.st
	return &st, true
}

func (c *memoryCache) Version(_ context.Context, userID uint) (int64, bool) {
	c.mu.Lock()
	v := c.versions[userID]
	hook := c.onVersion
	c.onVersion = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return v, true
}

func (c *memoryCache) Set(_ context.Context, userID uint, version int64, st *Status, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastTTL = ttl
	if c.versions[userID] != version {
		return
	}
	c.entries[userID] = memoryEntry{st: *st, expires: c.clock.Now().Add(c.hold)}
}

func (c *memoryCache) Invalidate(_ context.Context, userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[userID]++
	delete(c.entries, userID)
}

func (c *memoryCache) cached(userID uint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[userID]
	return ok
}

func newCachedFixture(t *testing.T) (*fixture, *memoryCache) {
	t.Helper()
	f := newFixture(t, nil)
	cache := newMemoryCache(f.clock)
	f.rewards = NewRewards(Options{DB: f.db, Config: f.rc, Clock: f.clock.Now, Cache: cache})
	return f, cache
}

func TestStatusCacheExpiresAtDailyReset(t *testing.T) {
	f, cache := newCachedFixture(t)
	u := createUser(t, f.db, "alice", 0)
	createDefinition(t, f.db, coins("wheel_10", models.KindWheel, 1, 10))
	ctx := context.Background()

	f.clock.Set(time.Date(2024, 5, 15, 23, 59, 50, 0, time.UTC))
	if _, err := f.rewards.Spin(ctx, u.ID); err != nil {
		t.Fatalf("Spin() error = %v", err)
	}
	st, err := f.rewards.Status(ctx, u.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.Wheel.BaseRemaining != 0 {
		t.Fatalf("BaseRemaining = %d, want 0", st.Wheel.BaseRemaining)
	}
	if cache.lastTTL != 10*time.Second {
		t.Errorf("stored for %v, want 10s until midnight", cache.lastTTL)
	}

	f.clock.Advance(20 * time.Second)
	st, err = f.rewards.Status(ctx, u.ID)
	if err != nil {
		t.Fatalf("Status() after reset error = %v", err)
	}
	if st.Wheel.BaseRemaining != 1 {
		t.Errorf("BaseRemaining after reset = %d, want 1", st.Wheel.BaseRemaining)
	}
	if want := time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC); !st.Wheel.NextResetAt.Equal(want) {
		t.Errorf("NextResetAt = %v, want %v", st.Wheel.NextResetAt, want)
	}
	if _, err := f.rewards.Spin(ctx, u.ID); err != nil {
		t.Errorf("Spin() after reset error = %v", err)
	}
}

func TestStatusCacheRefreshesCountdowns(t *testing.T) {
	f, _ := newCachedFixture(t)
	u := createUser(t, f.db, "bob", 0)
	ctx := context.Background()

	if _, err := f.rewards.Claim(ctx, ClaimRequest{UserID: u.ID}); err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	first, err := f.rewards.Status(ctx, u.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if first.Faucet.CooldownRemainingSec != 20*60 {
		t.Fatalf("CooldownRemainingSec = %d, want 1200", first.Faucet.CooldownRemainingSec)
	}

	f.clock.Advance(5 * time.Minute)
	second, err := f.rewards.Status(ctx, u.ID)
	if err != nil {
		t.Fatalf("cached Status() error = %v", err)
	}
	if !second.GeneratedAt.Equal(first.GeneratedAt) {
		t.Fatalf("GeneratedAt = %v, want the cached snapshot", second.GeneratedAt)
	}
	if second.Faucet.CooldownRemainingSec != 15*60 {
		t.Errorf("cached CooldownRemainingSec = %d, want 900", second.Faucet.CooldownRemainingSec)
	}

	f.clock.Advance(15 * time.Minute)
	third, err := f.rewards.Status(ctx, u.ID)
	if err != nil {
		t.Fatalf("Status() after cooldown error = %v", err)
	}
	if third.GeneratedAt.Equal(first.GeneratedAt) || third.Faucet.CooldownRemainingSec != 0 {
		t.Errorf("Status() after cooldown = %+v, want a fresh snapshot", third.Faucet)
	}
}

func TestStatusNotStoredAfterConcurrentMutation(t *testing.T) {
	f, cache := newCachedFixture(t)
	u := createUser(t, f.db, "carol", 0)
	createDefinition(t, f.db, coins("wheel_10", models.KindWheel, 1, 10))
	ctx := context.Background()

	// a spin commits after the status read its version
	cache.onVersion = func() {
		if _, err := f.rewards.Spin(ctx, u.ID); err != nil {
			t.Errorf("Spin() error = %v", err)
		}
	}
	if _, err := f.rewards.Status(ctx, u.ID); err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if cache.cached(u.ID) {
		t.Fatal("status computed across a mutation was stored")
	}

	st, err := f.rewards.Status(ctx, u.ID)
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if !cache.cached(u.ID) || st.Wheel.BaseRemaining != 0 {
		t.Errorf("second Status() cached=%v base=%d, want stored with 0 spins", cache.cached(u.ID), st.Wheel.BaseRemaining)
	}
}
