package main

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/finledger/internal/domain"
)

const sample = `
owners:
  - id: u1
    accounts:
      - {id: u1-checking, name: Checking, type: checking, initial_balance: "12.50"}
      - {name: Jar}
    categories:
      - {name: Food}
generate:
  owner: bench
  count: 3
  initial_balance: "100"
`

func TestFixtureAccounts(t *testing.T) {
	f, err := parseFixture([]byte(sample))
	if err != nil {
		t.Fatalf("parseFixture failed: %v", err)
	}
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	accounts, err := f.accounts(now)
	if err != nil {
		t.Fatalf("accounts failed: %v", err)
	}
	if len(accounts) != 5 {
		t.Fatalf("got %d accounts, want 5", len(accounts))
	}

	first := accounts[0]
	if first.ID != "u1-checking" || first.Type != domain.AccountChecking || !first.Balance.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("first account = %+v", first)
	}
	if !first.InitialBalance.Equal(first.Balance) || !first.CreatedAt.Equal(now) {
		t.Errorf("initial balance/created = %s/%s", first.InitialBalance, first.CreatedAt)
	}
	if jar := accounts[1]; jar.ID != "u1-acct-2" || jar.Type != domain.AccountOther || !jar.Balance.IsZero() {
		t.Errorf("defaulted account = %+v", jar)
	}
	if gen := accounts[4]; gen.ID != "bench-3" || gen.OwnerID != "bench" || !gen.Balance.Equal(decimal.NewFromInt(100)) {
		t.Errorf("generated account = %+v", gen)
	}
	if len(f.Owners[0].Categories) != 1 || f.Owners[0].Categories[0].Name != "Food" {
		t.Errorf("categories = %+v", f.Owners[0].Categories)
	}
}

func TestFixtureRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad balance", "owners: [{id: u1, accounts: [{name: A, initial_balance: lots}]}]", "initial_balance"},
		{"bad type", "owners: [{id: u1, accounts: [{name: A, type: vault}]}]", "unknown type"},
		{"missing name", "owners: [{id: u1, accounts: [{type: cash}]}]", "name is required"},
		{"missing owner", "owners: [{accounts: [{name: A}]}]", "owner without id"},
		{"generate without owner", "generate: {count: 2}", "owner is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := parseFixture([]byte(tt.yaml))
			if err != nil {
				t.Fatalf("parseFixture failed: %v", err)
			}
			if _, err := f.accounts(time.Now()); err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("accounts() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestParseFixtureMalformed(t *testing.T) {
	if _, err := parseFixture([]byte("owners: {")); err == nil {
		t.Error("expected a parse error")
	}
}
