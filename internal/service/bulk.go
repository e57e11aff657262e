package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/store"
)

// BulkPolicy decides what happens to ids that cannot be transitioned.
type BulkPolicy string

const (
	// BulkSkip records the id as skipped and carries on.
	BulkSkip BulkPolicy = "skip"
	// BulkStrict aborts the whole group on the first such id.
	BulkStrict BulkPolicy = "strict"
)

func (p BulkPolicy) Valid() bool {
	return p == "" || p == BulkSkip || p == BulkStrict
}

type BulkSkipped struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkResult reports how many records changed. Both legs of a transfer
// count, so archiving one leg id can change two records.
type BulkResult struct {
	Changed int           `json:"changed"`
	Skipped []BulkSkipped `json:"skipped"`
}

func (l *Ledger) ArchiveMany(ctx context.Context, ownerID string, ids []string, policy BulkPolicy) (*BulkResult, error) {
	return l.bulk(ctx, ownerID, ids, policy, actionArchive)
}

func (l *Ledger) RestoreMany(ctx context.Context, ownerID string, ids []string, policy BulkPolicy) (*BulkResult, error) {
	return l.bulk(ctx, ownerID, ids, policy, actionRestore)
}

func (l *Ledger) PermanentlyDeleteMany(ctx context.Context, ownerID string, ids []string, policy BulkPolicy) (*BulkResult, error) {
	return l.bulk(ctx, ownerID, ids, policy, actionDelete)
}

// bulk runs act for every id inside one atomic group. Ids already in the
// target state are skipped silently; the policy governs the rest.
func (l *Ledger) bulk(ctx context.Context, ownerID string, ids []string, policy BulkPolicy, act action) (_ *BulkResult, err error) {
	op := act.String() + "_many"
	defer l.observe(op, time.Now(), &err)

	if err := requireOwner(ownerID); err != nil {
		return nil, err
	}
	if !policy.Valid() {
		return nil, domain.Errorf(domain.ErrValidation, "unknown bulk policy %q", policy)
	}
	if policy == "" {
		policy = BulkSkip
	}
	ids = dedupe(ids)

	var res *BulkResult
	err = l.store.WithTx(ctx, func(tx store.Tx) error {
		res = &BulkResult{Skipped: []BulkSkipped{}}
		for _, id := range ids {
			n, reason, err := l.bulkItem(ctx, tx, ownerID, id, act)
			if err != nil {
				// A conflict means the store aborted the group; nothing can follow it.
				if policy == BulkStrict || !domain.IsBusinessError(err) || errors.Is(err, domain.ErrConflict) {
					return err
				}
				reason = domain.ClassifyError(err)
			}
			if reason != "" {
				res.Skipped = append(res.Skipped, BulkSkipped{ID: id, Reason: reason})
				continue
			}
			res.Changed += n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i := 0; i < res.Changed; i++ {
		l.metrics.ObserveBulkItem(op, "changed")
	}
	for range res.Skipped {
		l.metrics.ObserveBulkItem(op, "skipped")
	}
	l.logger.Debug("bulk operation applied",
		zap.String("operation", op),
		zap.Int("requested", len(ids)),
		zap.Int("changed", res.Changed),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

// bulkItem returns the number of records changed for id, or a reason when
// id was already in the target state.
func (l *Ledger) bulkItem(ctx context.Context, tx store.Tx, ownerID, id string, act action) (int, string, error) {
	t, err := tx.GetTransaction(ctx, id)
	if domain.IsNotFound(err) && act == actionDelete {
		return 0, "already_deleted", nil
	}
	if err != nil {
		return 0, "", err
	}
	// Ownership is checked before the state so other owners learn nothing.
	if _, err := lockOwnedAccounts(ctx, tx, ownerID, t.AccountID); err != nil {
		return 0, "", err
	}
	if act.done(t) {
		if act == actionArchive {
			return 0, "already_archived", nil
		}
		return 0, "already_active", nil
	}
	res, err := l.apply(ctx, tx, ownerID, t, act)
	if err != nil {
		return 0, "", err
	}
	return len(res.Affected), "", nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
