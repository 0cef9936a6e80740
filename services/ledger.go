package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/rewards/models"
)

// Posting describes one balance change.
type Posting struct {
	UserID         uint
	Currency       string
	Amount         decimal.Decimal
	RefType        string
	RefID          string
	IdempotencyKey string
}

func (p Posting) validate() error {
	if !p.Amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, p.Amount)
	}
	if p.IdempotencyKey == "" {
		return errors.New("posting requires an idempotency key")
	}
	if p.Currency == "" {
		return errors.New("posting requires a currency")
	}
	return nil
}

// IdempotencyKey builds the ledger key of an engine event.
func IdempotencyKey(refType, refID string) string {
	return refType + ":" + refID
}

// Ledger applies postings inside a caller's transaction. Every applied posting produces
// exactly one ledger entry and one balance update.
type Ledger struct{}

// Credit adds p.Amount to the available balance, creating the balance row if needed.
// A posting whose key was already applied returns the existing entry and ErrDuplicateIdempotencyKey.
func (Ledger) Credit(tx *Tx, p Posting, now time.Time) (models.LedgerEntry, error) {
	return post(tx, p, models.EntryCredit, now)
}

// Debit subtracts p.Amount. It never produces a negative balance; an overdraw returns
// *InsufficientFundsError and writes nothing.
func (Ledger) Debit(tx *Tx, p Posting, now time.Time) (models.LedgerEntry, error) {
	return post(tx, p, models.EntryDebit, now)
}

func post(tx *Tx, p Posting, entryType string, now time.Time) (models.LedgerEntry, error) {
	if err := p.validate(); err != nil {
		return models.LedgerEntry{}, err
	}

	var existing models.LedgerEntry
	res := tx.DB().Where("idempotency_key = ?", p.IdempotencyKey).Limit(1).Find(&existing)
	if res.Error != nil {
		return existing, repoErr("find", "ledger_entry", res.Error)
	}
	if res.RowsAffected > 0 {
		return existing, ErrDuplicateIdempotencyKey
	}

	bal, err := tx.LockBalance(p.UserID, p.Currency)
	if err != nil {
		return models.LedgerEntry{}, err
	}

	after := bal.Available.Add(p.Amount)
	if entryType == models.EntryDebit {
		if bal.Available.LessThan(p.Amount) {
			return models.LedgerEntry{}, &InsufficientFundsError{
				Currency:  p.Currency,
				Available: bal.Available,
				Requested: p.Amount,
			}
		}
		after = bal.Available.Sub(p.Amount)
	}

	entry := models.LedgerEntry{
		UserID:         p.UserID,
		Currency:       p.Currency,
		EntryType:      entryType,
		Amount:         p.Amount,
		BalanceAfter:   after,
		RefType:        p.RefType,
		RefID:          p.RefID,
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      now,
	}
	if err := tx.DB().Create(&entry).Error; err != nil {
		if isDuplicateKey(err) {
			return entry, ErrDuplicateIdempotencyKey
		}
		return entry, repoErr("create", "ledger_entry", err)
	}

	err = tx.DB().Model(&models.Balance{}).
		Where("id = ?", bal.ID).
		Updates(map[string]interface{}{"available": after, "updated_at": now}).Error
	if err != nil {
		return entry, repoErr("update", "balance", err)
	}
	return entry, nil
}

// LedgerService exposes the ledger to collaborators outside the reward engines, such as
// offerwall postbacks, plus the wallet read APIs.
type LedgerService struct {
	coord  *Coordinator
	db     *gorm.DB
	ledger Ledger
	now    func() time.Time
	log    *zap.Logger
}

// NewLedgerService creates a ledger service.
func NewLedgerService(db *gorm.DB, coord *Coordinator, now func() time.Time, log *zap.Logger) *LedgerService {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LedgerService{coord: coord, db: db, now: now, log: log}
}

// Credit applies p in its own transaction. applied is false when the key was seen before,
// in which case the original entry is returned and err is nil.
func (s *LedgerService) Credit(ctx context.Context, p Posting) (entry models.LedgerEntry, applied bool, err error) {
	return s.apply(ctx, "ledger.credit", p, s.ledger.Credit)
}

// Reverse debits p, typically to claw back a charged-back offer.
func (s *LedgerService) Reverse(ctx context.Context, p Posting) (entry models.LedgerEntry, applied bool, err error) {
	return s.apply(ctx, "ledger.reverse", p, s.ledger.Debit)
}

func (s *LedgerService) apply(ctx context.Context, name string, p Posting,
	fn func(*Tx, Posting, time.Time) (models.LedgerEntry, error)) (models.LedgerEntry, bool, error) {
	now := s.now().UTC()
	var entry models.LedgerEntry
	err := s.coord.Run(ctx, name, func(tx *Tx) error {
		var err error
		entry, err = fn(tx, p, now)
		return err
	})
	if errors.Is(err, ErrDuplicateIdempotencyKey) {
		s.log.Debug("posting already applied", zap.String("key", p.IdempotencyKey))
		return entry, false, nil
	}
	if err != nil {
		return models.LedgerEntry{}, false, err
	}
	s.log.Info("ledger posting applied",
		zap.String("op", name),
		zap.Uint("user_id", p.UserID),
		zap.String("currency", p.Currency),
		zap.String("amount", p.Amount.String()),
		zap.String("key", p.IdempotencyKey))
	return entry, true, nil
}

// Balances lists the user's balances ordered by currency.
func (s *LedgerService) Balances(ctx context.Context, userID uint) ([]models.Balance, error) {
	return loadBalances(s.db.WithContext(ctx), userID)
}

// History pages through the user's ledger, newest first.
func (s *LedgerService) History(ctx context.Context, userID uint, page, size int) ([]models.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	db := s.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("user_id = ?", userID).Session(&gorm.Session{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, repoErr("count", "ledger_entry", err)
	}
	var entries []models.LedgerEntry
	err := db.Order("created_at DESC, id DESC").Offset((page - 1) * size).Limit(size).Find(&entries).Error
	if err != nil {
		return nil, 0, repoErr("list", "ledger_entry", err)
	}
	return entries, total, nil
}

func loadBalances(db *gorm.DB, userID uint) ([]models.Balance, error) {
	var balances []models.Balance
	if err := db.Where("user_id = ?", userID).Order("currency ASC").Find(&balances).Error; err != nil {
		return nil, repoErr("list", "balance", err)
	}
	return balances, nil
}
