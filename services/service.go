package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/models"
)

// Status is the combined reward state of one user. All times are UTC.
type Status struct {
	Faucet      FaucetStatus        `json:"faucet"`
	Wheel       WheelStatus         `json:"wheel"`
	Chest       ChestStatus         `json:"chest"`
	Level       config.Level        `json:"level"`
	Perks       []models.UserReward `json:"perks"`
	Balances    []models.Balance    `json:"balances"`
	GeneratedAt time.Time           `json:"generated_at"`
}

// StatusCache stores status snapshots per user. Implementations must tolerate being
// unavailable; a miss simply recomputes.
type StatusCache interface {
	Get(ctx context.Context, userID uint) (*Status, bool)
	// Version returns the user's invalidation counter. ok is false when it cannot be read,
	// in which case the snapshot is not stored.
	Version(ctx context.Context, userID uint) (version int64, ok bool)
	// Set stores s for at most ttl unless the user was invalidated after version was read.
	Set(ctx context.Context, userID uint, version int64, s *Status, ttl time.Duration)
	Invalidate(ctx context.Context, userID uint)
}

// Options configures NewRewards.
type Options struct {
	DB              *gorm.DB
	Config          *config.RewardConfig
	TxTimeout       time.Duration
	ConflictRetries int
	CatalogTTL      time.Duration
	Cache           StatusCache
	Random          RandomSource
	Clock           func() time.Time
	Logger          *zap.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// Rewards wires the engines together and is what the HTTP layer talks to.
type Rewards struct {
	db      *gorm.DB
	rc      *config.RewardConfig
	cache   StatusCache
	now     func() time.Time
	log     *zap.Logger
	inv     Inventory
	Catalog *Catalog
	Faucet  *FaucetEngine
	Wheel   *WheelEngine
	Chest   *ChestEngine
	Ledger  *LedgerService
}

// NewRewards builds the engines from opts.
func NewRewards(opts Options) *Rewards {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	coord := NewCoordinator(opts.DB, opts.TxTimeout, opts.ConflictRetries, log, WithTracerProvider(opts.TracerProvider))
	catalog := NewCatalog(opts.DB, opts.CatalogTTL, now)
	return &Rewards{
		db:      opts.DB,
		rc:      opts.Config,
		cache:   opts.Cache,
		now:     now,
		log:     log,
		Catalog: catalog,
		Faucet:  NewFaucetEngine(coord, opts.Config.Faucet, now, log.Named("faucet")),
		Wheel:   NewWheelEngine(coord, catalog, opts.Config, opts.Random, now, log.Named("wheel")),
		Chest:   NewChestEngine(coord, catalog, opts.Config, opts.Random, now, log.Named("chest")),
		Ledger:  NewLedgerService(opts.DB, coord, now, log.Named("ledger")),
	}
}

// Claim runs a faucet claim.
func (r *Rewards) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	res, err := r.Faucet.Claim(ctx, req)
	if err == nil {
		r.invalidate(ctx, req.UserID)
	}
	return res, err
}

// Spin runs a wheel spin.
func (r *Rewards) Spin(ctx context.Context, userID uint) (*SpinResult, error) {
	res, err := r.Wheel.Spin(ctx, userID)
	if err == nil {
		r.invalidate(ctx, userID)
	}
	return res, err
}

// Open runs a chest opening. An empty opening still spends a slot, so the cache is
// invalidated whenever a result is returned.
func (r *Rewards) Open(ctx context.Context, userID uint) (*OpenResult, error) {
	res, err := r.Chest.Open(ctx, userID)
	if res != nil {
		r.invalidate(ctx, userID)
	}
	return res, err
}

// Credit applies an external credit such as an offerwall postback.
func (r *Rewards) Credit(ctx context.Context, p Posting) (models.LedgerEntry, bool, error) {
	entry, applied, err := r.Ledger.Credit(ctx, p)
	if applied {
		r.invalidate(ctx, p.UserID)
	}
	return entry, applied, err
}

// Reverse claws back an external credit.
func (r *Rewards) Reverse(ctx context.Context, p Posting) (models.LedgerEntry, bool, error) {
	entry, applied, err := r.Ledger.Reverse(ctx, p)
	if applied {
		r.invalidate(ctx, p.UserID)
	}
	return entry, applied, err
}

// Balances lists the user's balances.
func (r *Rewards) Balances(ctx context.Context, userID uint) ([]models.Balance, error) {
	return r.Ledger.Balances(ctx, userID)
}

// History pages through the user's ledger.
func (r *Rewards) History(ctx context.Context, userID uint, page, size int) ([]models.LedgerEntry, int64, error) {
	return r.Ledger.History(ctx, userID, page, size)
}

// Status returns the user's combined reward state. Sections are read concurrently outside
// any transaction, so they may straddle a concurrent mutation.
func (r *Rewards) Status(ctx context.Context, userID uint) (*Status, error) {
	now := r.now().UTC()
	var version int64
	cacheable := false
	if r.cache != nil {
		if st, ok := r.cache.Get(ctx, userID); ok && now.Before(st.validUntil(st.GeneratedAt)) {
			st.refresh(now)
			return st, nil
		}
		// read before the sections so a mutation committing meanwhile blocks the store
		version, cacheable = r.cache.Version(ctx, userID)
	}

	level, err := readUserLevel(r.db.WithContext(ctx), r.rc, userID)
	if err != nil {
		return nil, err
	}
	st := &Status{Level: level, GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		st.Faucet, err = r.Faucet.Status(gctx, r.db, userID)
		return err
	})
	g.Go(func() (err error) {
		st.Wheel, err = r.Wheel.Status(gctx, r.db, userID)
		return err
	})
	g.Go(func() (err error) {
		st.Chest, err = r.Chest.Status(gctx, r.db, userID)
		return err
	})
	g.Go(func() (err error) {
		st.Perks, err = r.inv.Active(r.db.WithContext(gctx), userID, now)
		return err
	})
	g.Go(func() (err error) {
		st.Balances, err = loadBalances(r.db.WithContext(gctx), userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if cacheable {
		if ttl := st.validUntil(now).Sub(now); ttl > 0 {
			r.cache.Set(ctx, userID, version, st, ttl)
		}
	}
	return st, nil
}

// validUntil is the first moment a snapshot taken at now goes stale without any mutation:
// a day or week reset, a cooldown running out or a perk expiring.
func (s *Status) validUntil(now time.Time) time.Time {
	until := s.Faucet.NextResetAt
	for _, t := range []time.Time{s.Wheel.NextResetAt, s.Chest.NextResetAt} {
		if t.Before(until) {
			until = t
		}
	}
	earlier := func(t *time.Time) {
		if t != nil && t.After(now) && t.Before(until) {
			until = *t
		}
	}
	earlier(s.Faucet.NextClaimAt)
	earlier(s.Chest.NextBaseAt)
	for i := range s.Perks {
		earlier(s.Perks[i].ExpiresAt)
	}
	return until
}

// refresh recomputes the countdowns of a cached snapshot.
func (s *Status) refresh(now time.Time) {
	if s.Faucet.NextClaimAt != nil {
		s.Faucet.CooldownRemainingSec = int64(remaining(*s.Faucet.NextClaimAt, now).Seconds())
	}
	if s.Chest.NextBaseAt != nil {
		s.Chest.CooldownRemainingSec = int64(remaining(*s.Chest.NextBaseAt, now).Seconds())
	}
}

// ExpireGrants deactivates expired inventory grants.
func (r *Rewards) ExpireGrants(ctx context.Context) (int64, error) {
	return ExpireGrants(ctx, r.db, r.now().UTC())
}

func (r *Rewards) invalidate(ctx context.Context, userID uint) {
	if r.cache != nil {
		r.cache.Invalidate(ctx, userID)
	}
}
