package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/punchamoorthee/finledger/internal/domain"
)

// Fixture describes the owners, accounts and categories to load.
type Fixture struct {
	Owners   []OwnerFixture   `yaml:"owners"`
	Generate *GenerateFixture `yaml:"generate"`
}

type OwnerFixture struct {
	ID         string            `yaml:"id"`
	Accounts   []AccountFixture  `yaml:"accounts"`
	Categories []CategoryFixture `yaml:"categories"`
}

type AccountFixture struct {
	ID             string `yaml:"id"`
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	InitialBalance string `yaml:"initial_balance"`
}

type CategoryFixture struct {
	Name  string `yaml:"name"`
	Color string `yaml:"color"`
	Icon  string `yaml:"icon"`
}

// GenerateFixture produces Count numbered accounts for one owner, used by
// the transfer benchmark.
type GenerateFixture struct {
	Owner          string `yaml:"owner"`
	Count          int    `yaml:"count"`
	IDPrefix       string `yaml:"id_prefix"`
	InitialBalance string `yaml:"initial_balance"`
}

func loadFixture(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return parseFixture(raw)
}

func parseFixture(raw []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &f, nil
}

// accounts expands the fixture into account records stamped with now.
func (f *Fixture) accounts(now time.Time) ([]domain.Account, error) {
	var out []domain.Account
	for _, o := range f.Owners {
		if o.ID == "" {
			return nil, fmt.Errorf("owner without id")
		}
		for i, a := range o.Accounts {
			id := a.ID
			if id == "" {
				id = fmt.Sprintf("%s-acct-%d", o.ID, i+1)
			}
			acct, err := newAccount(id, o.ID, a.Name, a.Type, a.InitialBalance, now)
			if err != nil {
				return nil, err
			}
			out = append(out, acct)
		}
	}

	if g := f.Generate; g != nil && g.Count > 0 {
		if g.Owner == "" {
			return nil, fmt.Errorf("generate: owner is required")
		}
		prefix := g.IDPrefix
		if prefix == "" {
			prefix = "bench-"
		}
		for i := 1; i <= g.Count; i++ {
			id := fmt.Sprintf("%s%d", prefix, i)
			acct, err := newAccount(id, g.Owner, fmt.Sprintf("Account %d", i), string(domain.AccountChecking), g.InitialBalance, now)
			if err != nil {
				return nil, err
			}
			out = append(out, acct)
		}
	}
	return out, nil
}

func newAccount(id, owner, name, typ, initial string, now time.Time) (domain.Account, error) {
	balance := decimal.Zero
	if initial != "" {
		var err error
		if balance, err = decimal.NewFromString(initial); err != nil {
			return domain.Account{}, fmt.Errorf("account %s: bad initial_balance %q", id, initial)
		}
	}
	t := domain.AccountType(typ)
	if t == "" {
		t = domain.AccountOther
	}
	if !t.Valid() {
		return domain.Account{}, fmt.Errorf("account %s: unknown type %q", id, typ)
	}
	if name == "" {
		return domain.Account{}, fmt.Errorf("account %s: name is required", id)
	}
	return domain.Account{
		ID:             id,
		OwnerID:        owner,
		Name:           name,
		Type:           t,
		Balance:        balance,
		InitialBalance: balance,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}
