package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/store"
	"github.com/punchamoorthee/finledger/internal/store/memory"
)

func TestBreakerOpensOnInfrastructureFailures(t *testing.T) {
	inner := memory.New()
	b := store.NewBreakerStore(inner, store.BreakerConfig{
		MaxFailures:      2,
		OpenTimeout:      time.Minute,
		HalfOpenRequests: 1,
	}, nil)
	ctx := context.Background()
	dbDown := errors.New("connection refused")

	for i := 0; i < 2; i++ {
		err := b.WithTx(ctx, func(tx store.Tx) error { return dbDown })
		if !errors.Is(err, dbDown) {
			t.Fatalf("attempt %d: error = %v, want connection refused", i, err)
		}
	}

	if b.State() != gobreaker.StateOpen {
		t.Fatalf("state = %s, want open", b.State())
	}

	called := false
	err := b.WithTx(ctx, func(tx store.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
	if called {
		t.Error("fn should not run while the circuit is open")
	}

	if _, err := b.ListAccounts(ctx, "u1"); !errors.Is(err, domain.ErrUnavailable) {
		t.Errorf("read error = %v, want ErrUnavailable", err)
	}
}

func TestBreakerIgnoresBusinessErrors(t *testing.T) {
	b := store.NewBreakerStore(memory.New(), store.BreakerConfig{
		MaxFailures: 1,
		OpenTimeout: time.Minute,
	}, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := b.GetAccount(ctx, "missing")
		if !domain.IsNotFound(err) {
			t.Fatalf("GetAccount error = %v, want not found", err)
		}
	}

	if b.State() != gobreaker.StateClosed {
		t.Errorf("state = %s, want closed", b.State())
	}
}
