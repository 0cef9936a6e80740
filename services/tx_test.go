package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/cppla/rewards/models"
)

func countUsers(t *testing.T, f *fixture) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(&models.User{}).Count(&n).Error; err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

func TestCoordinatorRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	coord := NewCoordinator(f.db, time.Second, 0, nil)
	boom := errors.New("boom")

	err := coord.Run(context.Background(), "test", func(tx *Tx) error {
		if err := tx.DB().Create(&models.User{Username: "ghost"}).Error; err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want boom", err)
	}
	if n := countUsers(t, f); n != 0 {
		t.Errorf("users after rollback = %d", n)
	}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic was swallowed")
			}
		}()
		_ = coord.Run(context.Background(), "test", func(tx *Tx) error {
			tx.DB().Create(&models.User{Username: "ghost"})
			panic("mid transaction")
		})
	}()
	if n := countUsers(t, f); n != 0 {
		t.Errorf("users after panic = %d", n)
	}
}

func TestCoordinatorRetriesConflicts(t *testing.T) {
	f := newFixture(t, nil)
	coord := NewCoordinator(f.db, time.Second, 2, nil)

	calls := 0
	err := coord.Run(context.Background(), "test", func(tx *Tx) error {
		calls++
		if calls == 1 {
			return ErrConcurrencyConflict
		}
		return tx.DB().Create(&models.User{Username: "retry"}).Error
	})
	if err != nil || calls != 2 {
		t.Fatalf("Run() = %v after %d calls", err, calls)
	}

	calls = 0
	err = coord.Run(context.Background(), "test", func(tx *Tx) error {
		calls++
		return ErrConcurrencyConflict
	})
	if !errors.Is(err, ErrConcurrencyConflict) || calls != 3 {
		t.Errorf("Run() = %v after %d calls, want conflict after 3", err, calls)
	}
}

func TestCoordinatorIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t, nil)
	coord := NewCoordinator(f.db, time.Second, 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := coord.Run(ctx, "test", func(tx *Tx) error {
		return tx.DB().Create(&models.User{Username: "committed"}).Error
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n := countUsers(t, f); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
}

func TestCoordinatorRecordsSpans(t *testing.T) {
	f := newFixture(t, nil)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	coord := NewCoordinator(f.db, time.Second, 0, nil, WithTracerProvider(tp))

	cases := []struct {
		op     string
		err    error
		status codes.Code
		desc   string
	}{
		{"wheel.spin", errors.New("boom"), codes.Error, "boom"},
		{"faucet.claim", notEligible(ReasonCooldownNotExpired, time.Minute), codes.Unset, ""},
		{"chest.open", nil, codes.Unset, ""},
	}
	for _, tc := range cases {
		_ = coord.Run(context.Background(), tc.op, func(tx *Tx) error { return tc.err })
	}

	spans := sr.Ended()
	if len(spans) != len(cases) {
		t.Fatalf("ended spans = %d, want %d", len(spans), len(cases))
	}
	for i, tc := range cases {
		s := spans[i]
		if want := "rewards." + tc.op; s.Name() != want {
			t.Errorf("span %d name = %q, want %q", i, s.Name(), want)
		}
		if s.Status().Code != tc.status || s.Status().Description != tc.desc {
			t.Errorf("%s status = %+v, want %v %q", s.Name(), s.Status(), tc.status, tc.desc)
		}
	}
	if ev := spans[0].Events(); len(ev) == 0 || ev[0].Name != "exception" {
		t.Errorf("failed span events = %+v, want a recorded exception", ev)
	}
}
