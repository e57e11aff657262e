package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/punchamoorthee/finledger/internal/domain"
	"github.com/punchamoorthee/finledger/internal/store"
)

func requestHash(v any) (string, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("hash request: %w", err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// Keys are scoped per owner so two users can never collide.
func scopedKey(ownerID, key string) string {
	return ownerID + ":" + key
}

// replay decodes a stored response into out when key was already used for
// the same request. It reports whether a replay happened.
func (l *Ledger) replay(ctx context.Context, tx store.Tx, op, ownerID, key, hash string, out any) (bool, error) {
	if key == "" {
		return false, nil
	}
	rec, err := tx.GetIdempotencyRecord(ctx, scopedKey(ownerID, key))
	if domain.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if rec.Operation != op || rec.RequestHash != hash {
		return false, domain.Errorf(domain.ErrIdempotencyMismatch, "key %q", key)
	}
	if err := json.Unmarshal(rec.Response, out); err != nil {
		return false, fmt.Errorf("decode stored response for key %q: %w", key, err)
	}
	return true, nil
}

// remember stores resp under key in the same atomic group as the mutation.
func (l *Ledger) remember(ctx context.Context, tx store.Tx, op, ownerID, key, hash string, resp any) error {
	if key == "" {
		return nil
	}
	body, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode response for key %q: %w", key, err)
	}
	return tx.PutIdempotencyRecord(ctx, &domain.IdempotencyRecord{
		Key:         scopedKey(ownerID, key),
		Operation:   op,
		RequestHash: hash,
		Response:    body,
		CreatedAt:   l.now(),
	})
}
