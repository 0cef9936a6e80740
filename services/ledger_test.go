package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cppla/rewards/models"
)

func TestLedgerCreditsSum(t *testing.T) {
	f := newFixture(t, nil)
	u := createUser(t, f.db, "alice", 0)
	ctx := context.Background()

	amounts := []string{"12", "0.5", "100.25", "0.00000001"}
	want := decimal.Zero
	for i, a := range amounts {
		amt := decimal.RequireFromString(a)
		want = want.Add(amt)
		entry, applied, err := f.rewards.Credit(ctx, Posting{
			UserID:         u.ID,
			Currency:       models.CurrencyCoin,
			Amount:         amt,
			RefType:        "offerwall",
			RefID:          fmt.Sprint(i),
			IdempotencyKey: IdempotencyKey("offerwall", fmt.Sprint(i)),
		})
		if err != nil || !applied {
			t.Fatalf("Credit(%s) = applied %v, err %v", a, applied, err)
		}
		if !entry.BalanceAfter.Equal(want) {
			t.Errorf("BalanceAfter = %s, want %s", entry.BalanceAfter, want)
		}
	}
	if got := f.balance(t, u.ID, models.CurrencyCoin); !got.Equal(want) {
		t.Errorf("balance = %s, want %s", got, want)
	}

	var n int64
	f.db.Model(&models.LedgerEntry{}).Where("user_id = ?", u.ID).Count(&n)
	if n != int64(len(amounts)) {
		t.Errorf("ledger rows = %d, want %d", n, len(amounts))
	}
}

func TestLedgerDuplicateKeyIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	u := createUser(t, f.db, "bob", 0)
	ctx := context.Background()
	p := Posting{
		UserID:         u.ID,
		Currency:       models.CurrencyUSD,
		Amount:         decimal.RequireFromString("1.50"),
		RefType:        "offerwall",
		RefID:          "tx-1",
		IdempotencyKey: IdempotencyKey("offerwall", "tx-1"),
	}

	first, applied, err := f.rewards.Credit(ctx, p)
	if err != nil || !applied {
		t.Fatalf("first Credit() = %v, %v", applied, err)
	}
	again, applied, err := f.rewards.Credit(ctx, p)
	if err != nil {
		t.Fatalf("repeated Credit() error = %v", err)
	}
	if applied {
		t.Error("repeated Credit() applied twice")
	}
	if again.ID != first.ID {
		t.Errorf("repeated Credit() returned entry %d, want %d", again.ID, first.ID)
	}
	if got := f.balance(t, u.ID, models.CurrencyUSD); !got.Equal(p.Amount) {
		t.Errorf("balance = %s, want %s", got, p.Amount)
	}
}

func TestLedgerDebit(t *testing.T) {
	f := newFixture(t, nil)
	u := createUser(t, f.db, "carol", 0)
	ctx := context.Background()

	_, _, err := f.rewards.Credit(ctx, Posting{
		UserID: u.ID, Currency: models.CurrencyCoin, Amount: decimal.NewFromInt(10),
		RefType: "offerwall", RefID: "a", IdempotencyKey: "offerwall:a",
	})
	if err != nil {
		t.Fatalf("Credit() error = %v", err)
	}

	_, _, err = f.rewards.Reverse(ctx, Posting{
		UserID: u.ID, Currency: models.CurrencyCoin, Amount: decimal.NewFromInt(11),
		RefType: "chargeback", RefID: "a", IdempotencyKey: "chargeback:a",
	})
	var insufficient *InsufficientFundsError
	if !errors.As(err, &insufficient) || !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraw error = %v, want InsufficientFundsError", err)
	}
	if !insufficient.Available.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Available = %s, want 10", insufficient.Available)
	}
	if got := f.balance(t, u.ID, models.CurrencyCoin); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("balance after rejected debit = %s, want 10", got)
	}

	entry, applied, err := f.rewards.Reverse(ctx, Posting{
		UserID: u.ID, Currency: models.CurrencyCoin, Amount: decimal.NewFromInt(10),
		RefType: "chargeback", RefID: "a", IdempotencyKey: "chargeback:a",
	})
	if err != nil || !applied {
		t.Fatalf("Reverse() = %v, %v", applied, err)
	}
	if entry.EntryType != models.EntryDebit || !entry.BalanceAfter.IsZero() {
		t.Errorf("entry = %s %s, want debit to zero", entry.EntryType, entry.BalanceAfter)
	}
}

func TestLedgerRejectsInvalidPostings(t *testing.T) {
	f := newFixture(t, nil)
	u := createUser(t, f.db, "dave", 0)
	ctx := context.Background()

	_, _, err := f.rewards.Credit(ctx, Posting{
		UserID: u.ID, Currency: models.CurrencyCoin, Amount: decimal.Zero, IdempotencyKey: "k",
	})
	if !errors.Is(err, ErrInvalidAmount) {
		t.Errorf("zero amount error = %v, want ErrInvalidAmount", err)
	}
	_, _, err = f.rewards.Credit(ctx, Posting{
		UserID: u.ID, Currency: models.CurrencyCoin, Amount: decimal.NewFromInt(1),
	})
	if err == nil {
		t.Error("missing idempotency key accepted")
	}
}

func TestLedgerHistoryPages(t *testing.T) {
	f := newFixture(t, nil)
	u := createUser(t, f.db, "erin", 0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _, err := f.rewards.Credit(ctx, Posting{
			UserID: u.ID, Currency: models.CurrencyCoin, Amount: decimal.NewFromInt(int64(i + 1)),
			RefType: "offerwall", RefID: fmt.Sprint(i), IdempotencyKey: fmt.Sprintf("offerwall:%d", i),
		})
		if err != nil {
			t.Fatalf("Credit() error = %v", err)
		}
	}

	entries, total, err := f.rewards.History(ctx, u.ID, 2, 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if total != 5 || len(entries) != 2 {
		t.Fatalf("History() = %d entries of %d", len(entries), total)
	}
	// all entries share a timestamp, so id breaks the tie newest first
	if entries[0].RefID != "2" || entries[1].RefID != "1" {
		t.Errorf("page 2 = %s,%s want 2,1", entries[0].RefID, entries[1].RefID)
	}

	balances, err := f.rewards.Balances(ctx, u.ID)
	if err != nil || len(balances) != 1 || !balances[0].Available.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Balances() = %+v, %v", balances, err)
	}
}
