package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/rewards/models"
)

// Coordinator runs each engine operation as one transaction: commit when the callback
// returns nil, rollback on error or panic, connection released on every path.
type Coordinator struct {
	db      *gorm.DB
	timeout time.Duration
	retries int
	tracer  trace.Tracer
	log     *zap.Logger
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTracerProvider records transaction spans with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) CoordinatorOption {
	return func(c *Coordinator) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName)
		}
	}
}

const tracerName = "github.com/cppla/rewards/services"

// NewCoordinator creates a coordinator. timeout bounds a whole transaction including lock
// waits; retries is how often a lock conflict is retried before ErrConcurrencyConflict surfaces.
func NewCoordinator(db *gorm.DB, timeout time.Duration, retries int, log *zap.Logger, opts ...CoordinatorOption) *Coordinator {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	if log == nil {
		log = zap.NewNop()
	}
	c := &Coordinator{
		db:      db,
		timeout: timeout,
		retries: retries,
		tracer:  otel.Tracer(tracerName),
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes fn inside a transaction. The transaction is detached from ctx cancellation
// so a caller giving up cannot abort a commit in flight; the coordinator's own timeout
// still applies.
func (c *Coordinator) Run(ctx context.Context, name string, fn func(tx *Tx) error) error {
	base := context.WithoutCancel(ctx)
	var err error
	for attempt := 0; ; attempt++ {
		err = c.runOnce(base, name, attempt, fn)
		if !errors.Is(err, ErrConcurrencyConflict) || attempt >= c.retries {
			return err
		}
		c.log.Debug("retrying transaction after lock conflict", zap.String("op", name), zap.Int("attempt", attempt+1))
	}
}

func (c *Coordinator) runOnce(ctx context.Context, name string, attempt int, fn func(tx *Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "rewards."+name, trace.WithAttributes(attribute.Int("attempt", attempt)))
	defer span.End()

	err := c.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		return fn(&Tx{db: gtx})
	})
	if err == nil {
		return nil
	}
	if isLockConflict(err) || errors.Is(err, context.DeadlineExceeded) {
		err = ErrConcurrencyConflict
	}
	if !IsNotEligible(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Tx is the handle passed to transactional callbacks.
type Tx struct {
	db *gorm.DB
}

// DB exposes the transaction session for plain reads and writes.
func (t *Tx) DB() *gorm.DB {
	return t.db
}

func (t *Tx) forUpdate() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockUser row-locks the user. It serializes wheel and chest operations of one user even
// before the user has any reward log rows.
func (t *Tx) LockUser(userID uint) (models.User, error) {
	var user models.User
	if err := t.forUpdate().First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, repoErr("lock", "user", err)
	}
	return user, nil
}

// LockStreak row-locks the faucet streak, creating it on first touch.
func (t *Tx) LockStreak(userID uint, now time.Time) (models.FaucetStreak, error) {
	fresh := models.FaucetStreak{UserID: userID, CurrentDay: 1, StreakDate: DayStart(now)}
	if err := t.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return fresh, repoErr("create", "faucet_streak", err)
	}
	var streak models.FaucetStreak
	if err := t.forUpdate().Where("user_id = ?", userID).First(&streak).Error; err != nil {
		return streak, repoErr("lock", "faucet_streak", err)
	}
	return streak, nil
}

// LockBalance row-locks the balance, creating an empty one on first touch.
func (t *Tx) LockBalance(userID uint, currency string) (models.Balance, error) {
	fresh := models.Balance{UserID: userID, Currency: currency, Available: decimal.Zero, Pending: decimal.Zero}
	err := t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "currency"}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		return fresh, repoErr("create", "balance", err)
	}
	var bal models.Balance
	if err := t.forUpdate().Where("user_id = ? AND currency = ?", userID, currency).First(&bal).Error; err != nil {
		return bal, repoErr("lock", "balance", err)
	}
	return bal, nil
}
