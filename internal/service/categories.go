package service

import (
	"context"
	"strings"
	"time"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/store"
)

type CreateCategoryInput struct {
	OwnerID string `json:"owner_id"`
	Name    string `json:"name"`
	Color   string `json:"color"`
	Icon    string `json:"icon"`
}

func (l *Ledger) CreateCategory(ctx context.Context, in CreateCategoryInput) (_ *domain.Category, err error) {
	defer l.observe("create_category", time.Now(), &err)

	if err := requireOwner(in.OwnerID); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, domain.Errorf(domain.ErrValidation, "category name is required")
	}
	if strings.EqualFold(in.Name, domain.TransferCategoryName) {
		return nil, domain.Errorf(domain.ErrValidation, "category name %q is reserved", in.Name)
	}

	c := &domain.Category{
		ID:        l.newID(),
		OwnerID:   in.OwnerID,
		Name:      in.Name,
		Color:     in.Color,
		Icon:      in.Icon,
		CreatedAt: l.now(),
	}
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		return tx.InsertCategory(ctx, c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (l *Ledger) ListCategories(ctx context.Context, ownerID string) (_ []domain.Category, err error) {
	defer l.observe("list_categories", time.Now(), &err)

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	return l.store.ListCategories(ctx, ownerID)
}

// DeleteCategory removes a user category that no transaction references.
func (l *Ledger) DeleteCategory(ctx context.Context, ownerID, id string) (err error) {
	defer l.observe("delete_category", time.Now(), &err)

	return l.store.WithTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCategory(ctx, id)
		if err != nil {
			return err
		}
		if c.OwnerID != ownerID {
			return domain.Errorf(domain.ErrForbidden, "category %s belongs to another owner", id)
		}
		if c.System {
			return domain.Errorf(domain.ErrValidation, "category %q is managed by the ledger", c.Name)
		}
		n, err := tx.CountCategoryTransactions(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return domain.Errorf(domain.ErrInvalidState, "category %s is referenced by %d transactions", id, n)
		}
		return tx.DeleteCategory(ctx, id)
	})
}
