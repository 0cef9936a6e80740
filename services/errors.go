package services

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Reason identifies why a user is not eligible for a reward right now.
type Reason string

const (
	ReasonCooldownNotExpired Reason = "cooldown_not_expired"
	ReasonNoSpinsAvailable   Reason = "no_spins_available"
	ReasonNoChestsAvailable  Reason = "no_chests_available"
	ReasonChestCooldown      Reason = "chest_cooldown"
	ReasonMaxRewardLimit     Reason = "max_reward_limit"
	ReasonRewardCooldown     Reason = "reward_cooldown"
)

var (
	ErrNotEligible        = errors.New("not eligible")
	ErrCooldownNotExpired = &NotEligibleError{Reason: ReasonCooldownNotExpired}
	ErrNoSpinsAvailable   = &NotEligibleError{Reason: ReasonNoSpinsAvailable}
	ErrNoChestsAvailable  = &NotEligibleError{Reason: ReasonNoChestsAvailable}
	ErrChestCooldown      = &NotEligibleError{Reason: ReasonChestCooldown}
	ErrMaxRewardLimit     = &NotEligibleError{Reason: ReasonMaxRewardLimit}
	ErrRewardCooldown     = &NotEligibleError{Reason: ReasonRewardCooldown}

	ErrNoRewardsConfigured     = errors.New("no rewards configured")
	ErrConcurrencyConflict     = errors.New("concurrent update conflict")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already applied")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidAmount           = errors.New("amount must be positive")
)

// NotEligibleError is a user facing rejection. RetryAfter is set for cooldowns,
// Remaining for quota based rejections.
type NotEligibleError struct {
	Reason     Reason
	RetryAfter time.Duration
	Remaining  int
}

func (e *NotEligibleError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("not eligible: %s (retry after %s)", e.Reason, e.RetryAfter.Round(time.Second))
	}
	return fmt.Sprintf("not eligible: %s", e.Reason)
}

// Is matches ErrNotEligible and any NotEligibleError with the same reason.
func (e *NotEligibleError) Is(target error) bool {
	if target == ErrNotEligible {
		return true
	}
	t, ok := target.(*NotEligibleError)
	return ok && t.Reason == e.Reason
}

func notEligible(reason Reason, retryAfter time.Duration) *NotEligibleError {
	return &NotEligibleError{Reason: reason, RetryAfter: retryAfter}
}

// ConfigurationError is an operator facing failure; the engine never substitutes a default.
type ConfigurationError struct {
	Kind string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error (%s): %v", e.Kind, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// InsufficientFundsError is returned by debits that would overdraw a balance.
type InsufficientFundsError struct {
	Currency  string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient %s funds: available %s, requested %s", e.Currency, e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// RepositoryError represents a storage failure during an engine operation.
type RepositoryError struct {
	Operation string
	Entity    string
	Err       error
}

func (re *RepositoryError) Error() string {
	return fmt.Sprintf("repository error during %s for %s: %v", re.Operation, re.Entity, re.Err)
}

func (re *RepositoryError) Unwrap() error {
	return re.Err
}

func repoErr(operation, entity string, err error) error {
	if err == nil {
		return nil
	}
	if isLockConflict(err) {
		return ErrConcurrencyConflict
	}
	return &RepositoryError{Operation: operation, Entity: entity, Err: err}
}

// isLockConflict reports lock wait timeouts and deadlocks.
func isLockConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConcurrencyConflict) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1205 lock wait timeout, 1213 deadlock
		return myErr.Number == 1205 || myErr.Number == 1213
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsNotEligible checks if err is a user facing eligibility rejection.
func IsNotEligible(err error) bool {
	return errors.Is(err, ErrNotEligible)
}

// IsConfigurationError checks if err is an operator facing configuration failure.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
