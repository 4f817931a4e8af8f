// Copyright 2025 Certen Protocol
//
// Store exposes the validator's seven persistence operations over the
// bundle/transactions schema. Each method is a single pooled-connection
// round trip; there are no multi-operation transactions.

package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
)

// Interface is the full persistence surface *Store implements, so an
// in-memory fake can stand in for a live Postgres-backed Store in tests.
// The audit package declares its own narrower TxStore instead.
type Interface interface {
	GetBundle(ctx context.Context, id string) (*Bundle, error)
	InsertBundle(ctx context.Context, b Bundle) error
	GetTx(ctx context.Context, id string) (*Transaction, error)
	InsertTx(ctx context.Context, tx Transaction) error
	UpdateTx(ctx context.Context, tx Transaction) error
	ListOutstanding(ctx context.Context) ([]Transaction, error)
	DeleteTxs(ctx context.Context, currentEpoch, retention uint64) (int64, error)
}

// Store is the repository over the bundle/transactions/validators/leaders schema.
type Store struct {
	client *Client
}

var _ Interface = (*Store)(nil)

// NewStore wraps an already-connected Client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

func encodeEpoch(epoch uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, epoch)
	return buf
}

func decodeEpoch(b []byte) uint64 {
	if len(b) < 8 {
		padded := make([]byte, 8)
		copy(padded[8-len(b):], b)
		b = padded
	}
	return binary.BigEndian.Uint64(b)
}

// GetBundle fetches the bundle row for id.
func (s *Store) GetBundle(ctx context.Context, id string) (*Bundle, error) {
	var b Bundle
	row := s.client.QueryRowContext(ctx,
		`SELECT id, owner_address, block_height FROM bundle WHERE id = $1`, id)
	if err := row.Scan(&b.ID, &b.OwnerAddress, &b.BlockHeight); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBundleNotFound
		}
		return nil, fmt.Errorf("get bundle %s: %w", id, err)
	}
	return &b, nil
}

// InsertBundle inserts a bundle row. Re-inserting an id already present is a no-op.
func (s *Store) InsertBundle(ctx context.Context, b Bundle) error {
	_, err := s.client.ExecContext(ctx,
		`INSERT INTO bundle (id, owner_address, block_height)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO NOTHING`,
		b.ID, b.OwnerAddress, b.BlockHeight)
	if err != nil {
		return fmt.Errorf("insert bundle %s: %w", b.ID, err)
	}
	return nil
}

// InsertTx inserts a transaction row. Re-inserting an id already present is a no-op.
func (s *Store) InsertTx(ctx context.Context, tx Transaction) error {
	_, err := s.client.ExecContext(ctx,
		`INSERT INTO transactions (id, epoch, block_promised, block_actual, signature, validated, bundle_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		tx.ID, encodeEpoch(tx.Epoch), tx.BlockPromised, tx.BlockActual, tx.Signature, tx.Validated, tx.BundleID)
	if err != nil {
		return fmt.Errorf("insert tx %s: %w", tx.ID, err)
	}
	return nil
}

// UpdateTx overwrites the mutable fields of an existing transaction row.
func (s *Store) UpdateTx(ctx context.Context, tx Transaction) error {
	result, err := s.client.ExecContext(ctx,
		`UPDATE transactions
		 SET epoch = $2, block_promised = $3, block_actual = $4, signature = $5, validated = $6, bundle_id = $7
		 WHERE id = $1`,
		tx.ID, encodeEpoch(tx.Epoch), tx.BlockPromised, tx.BlockActual, tx.Signature, tx.Validated, tx.BundleID)
	if err != nil {
		return fmt.Errorf("update tx %s: %w", tx.ID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tx %s: %w", tx.ID, err)
	}
	if rows == 0 {
		return ErrTxNotFound
	}
	return nil
}

// GetTx fetches the transaction row for id.
func (s *Store) GetTx(ctx context.Context, id string) (*Transaction, error) {
	var tx Transaction
	var epoch []byte
	row := s.client.QueryRowContext(ctx,
		`SELECT id, epoch, block_promised, block_actual, signature, validated, bundle_id
		 FROM transactions WHERE id = $1`, id)
	if err := row.Scan(&tx.ID, &epoch, &tx.BlockPromised, &tx.BlockActual, &tx.Signature, &tx.Validated, &tx.BundleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTxNotFound
		}
		return nil, fmt.Errorf("get tx %s: %w", id, err)
	}
	tx.Epoch = decodeEpoch(epoch)
	return &tx, nil
}

// ListOutstanding returns every transaction not yet attributed to a landed
// bundle (block_actual IS NULL) — receipts the bundler has promised but not
// yet honored, audited separately by ValidateTransactions.
func (s *Store) ListOutstanding(ctx context.Context) ([]Transaction, error) {
	rows, err := s.client.QueryContext(ctx,
		`SELECT id, epoch, block_promised, block_actual, signature, validated, bundle_id
		 FROM transactions WHERE block_actual IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("list outstanding txs: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var tx Transaction
		var epochBytes []byte
		if err := rows.Scan(&tx.ID, &epochBytes, &tx.BlockPromised, &tx.BlockActual, &tx.Signature, &tx.Validated, &tx.BundleID); err != nil {
			return nil, fmt.Errorf("list outstanding txs: %w", err)
		}
		tx.Epoch = decodeEpoch(epochBytes)
		out = append(out, tx)
	}
	return out, rows.Err()
}

// retentionEpochs returns the closed window of epochs to keep:
// {currentEpoch, currentEpoch-1, ..., currentEpoch-(retention-1)}, clamped
// at zero so it never wraps around uint64's underflow.
func retentionEpochs(currentEpoch, retention uint64) []uint64 {
	if retention == 0 {
		retention = 1
	}
	kept := make([]uint64, 0, retention)
	for i := uint64(0); i < retention && i <= currentEpoch; i++ {
		kept = append(kept, currentEpoch-i)
	}
	return kept
}

// DeleteTxs removes every transaction whose epoch falls outside the retention
// window {currentEpoch, currentEpoch-1, ..., currentEpoch-(retention-1)}.
// It returns the number of rows removed.
func (s *Store) DeleteTxs(ctx context.Context, currentEpoch uint64, retention uint64) (int64, error) {
	window := retentionEpochs(currentEpoch, retention)
	kept := make([][]byte, len(window))
	for i, e := range window {
		kept[i] = encodeEpoch(e)
	}

	args := make([]interface{}, len(kept))
	placeholders := ""
	for i, e := range kept {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
		args[i] = e
	}

	query := fmt.Sprintf(`DELETE FROM transactions WHERE epoch NOT IN (%s)`, placeholders)
	result, err := s.client.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete txs before epoch %d: %w", currentEpoch, err)
	}
	return result.RowsAffected()
}
