package services

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/rewards/config"
	"github.com/cppla/rewards/models"
)

const catalogCacheSize = 8

type cachedCatalog struct {
	defs     []models.RewardDefinition
	loadedAt time.Time
}

// Catalog serves the active reward definitions of a kind. Lookups are cached for ttl and
// concurrent misses share one query. It is read before a transaction opens, never inside one.
type Catalog struct {
	db    *gorm.DB
	cache *lru.Cache
	group singleflight.Group
	ttl   time.Duration
	now   func() time.Time
}

// NewCatalog creates a catalog cache. A zero ttl disables caching.
func NewCatalog(db *gorm.DB, ttl time.Duration, now func() time.Time) *Catalog {
	cache, _ := lru.New(catalogCacheSize)
	if now == nil {
		now = time.Now
	}
	return &Catalog{db: db, cache: cache, ttl: ttl, now: now}
}

// Active returns the active definitions of kind ordered by id. The returned slice is a copy.
func (c *Catalog) Active(ctx context.Context, kind string) ([]models.RewardDefinition, error) {
	if c.ttl > 0 {
		if v, ok := c.cache.Get(kind); ok {
			entry := v.(cachedCatalog)
			if c.now().Sub(entry.loadedAt) < c.ttl {
				return append([]models.RewardDefinition(nil), entry.defs...), nil
			}
			c.cache.Remove(kind)
		}
	}

	v, err, _ := c.group.Do(kind, func() (interface{}, error) {
		var defs []models.RewardDefinition
		err := c.db.WithContext(ctx).
			Where("kind = ? AND is_active = ?", kind, true).
			Order("id ASC").
			Find(&defs).Error
		if err != nil {
			return nil, repoErr("list", "reward_definition", err)
		}
		if c.ttl > 0 {
			c.cache.Add(kind, cachedCatalog{defs: defs, loadedAt: c.now()})
		}
		return defs, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]models.RewardDefinition(nil), v.([]models.RewardDefinition)...), nil
}

// Invalidate drops every cached catalog.
func (c *Catalog) Invalidate() {
	c.cache.Purge()
}

// SeedCatalog upserts the configured catalog by code. Definitions missing from the
// configuration are deactivated rather than deleted because reward logs reference them.
func SeedCatalog(ctx context.Context, db *gorm.DB, rc *config.RewardConfig) error {
	entries := rc.Catalog()
	if len(entries) == 0 {
		return nil
	}
	defs := make([]models.RewardDefinition, 0, len(entries))
	codes := make([]string, 0, len(entries))
	for _, e := range entries {
		defs = append(defs, models.RewardDefinition{
			Code:          e.Code,
			Kind:          e.Kind,
			Label:         e.Label,
			Weight:        e.Weight,
			RewardType:    e.RewardType,
			CoinValue:     e.Value(),
			MinStatus:     e.MinStatus,
			MaxPerWeek:    e.MaxPerWeek,
			CooldownHours: e.CooldownHours,
			BoostPct:      e.BoostPct,
			DurationHours: e.DurationHours,
			Quantity:      e.Quantity,
			IsActive:      !e.Disabled,
		})
		codes = append(codes, e.Code)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"kind", "label", "weight", "reward_type", "coin_value", "min_status", "max_per_week",
				"cooldown_hours", "boost_pct", "duration_hours", "quantity", "is_active", "updated_at",
			}),
		}).Create(&defs).Error
		if err != nil {
			return repoErr("upsert", "reward_definition", err)
		}
		err = tx.Model(&models.RewardDefinition{}).
			Where("code NOT IN ?", codes).
			Update("is_active", false).Error
		return repoErr("deactivate", "reward_definition", err)
	})
}
