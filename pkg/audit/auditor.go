// Copyright 2025 Certen Protocol
//
// Auditor orchestrates one audit pass: enumerate the bundler's recent
// transactions, download and parse each mined bundle, verify each item's
// receipt, persist the outcome, and invoke the Slasher on any provable
// violation. No error escapes a single pass; RunPass logs every failure and
// returns only an Outcome summary to its caller.

package audit

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"github.com/certen/gateway-validator/pkg/bundle"
	"github.com/certen/gateway-validator/pkg/chain"
	"github.com/certen/gateway-validator/pkg/metrics"
	"github.com/certen/gateway-validator/pkg/receipt"
	"github.com/certen/gateway-validator/pkg/store"
)

// Outcome summarizes one audit pass, used only for log/metric lines — it is
// never persisted.
type Outcome struct {
	BundlesSeen     int
	ItemsPersisted  int
	SlashesCast     int
	FileErrors      int
	ParseErrors     int
	MissingReceipts int
}

// ChainClient is the capability RunPass needs from the gateway chain,
// narrow enough that tests can substitute a deterministic fake in place of
// *chain.Client.
type ChainClient interface {
	ListRecent(ctx context.Context, owner string, first int, after string) ([]chain.Transaction, bool, string, error)
	FetchPayload(ctx context.Context, txID string) (string, error)
}

// TxStore is the persistence capability RunPass and ValidateTransactions
// need. *store.Store satisfies it; tests substitute an in-memory fake.
type TxStore interface {
	GetBundle(ctx context.Context, id string) (*store.Bundle, error)
	InsertBundle(ctx context.Context, b store.Bundle) error
	GetTx(ctx context.Context, id string) (*store.Transaction, error)
	InsertTx(ctx context.Context, tx store.Transaction) error
	ListOutstanding(ctx context.Context) ([]store.Transaction, error)
}

// PeerFetcher is the fallback receipt source consulted when a receipt is
// not yet in the Store. *peer.Registry satisfies it.
type PeerFetcher interface {
	Fetch(ctx context.Context, txID string) (receipt.Receipt, error)
}

// SlashVoter casts a slashing vote. *slasher.Slasher satisfies it.
type SlashVoter interface {
	VoteSlash(bundlerAddress, violationTxID string, epoch uint64)
}

// BundlerIdentity is the subset of the bundler's identity the auditor needs.
// The public key itself is not threaded through here: RunPass takes a verify
// closure so the receipt package stays the only crypto/rsa import.
type BundlerIdentity struct {
	Address string
}

// Auditor holds the collaborators one audit pass needs.
type Auditor struct {
	Chain        ChainClient
	Store        TxStore
	Peers        PeerFetcher
	Slasher      SlashVoter
	Bundler      BundlerIdentity
	CurrentEpoch func() uint64
	Logger       *log.Logger
}

func (a *Auditor) logger() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.New(log.Writer(), "[audit] ", log.LstdFlags)
}

// RunPass executes one audit pass. It has no error result: it returns an
// Outcome summary to its caller (the scheduler task body); every internal
// failure is logged and either skips the current bundle/item or aborts the
// whole pass.
func (a *Auditor) RunPass(ctx context.Context, verify func(receipt.Receipt) (bool, error)) Outcome {
	var out Outcome
	passID := uuid.New().String()
	logger := a.logger()
	logger.Printf("pass %s: starting", passID)
	defer func() { logger.Printf("pass %s: done", passID) }()

	txs, _, _, err := a.Chain.ListRecent(ctx, a.Bundler.Address, 50, "")
	if err != nil {
		logger.Printf("pass %s: list_recent failed, aborting pass: %v", passID, err)
		metrics.AuditPassesTotal.WithLabelValues("aborted").Inc()
		return out
	}

	epochNow := a.CurrentEpoch()

	for _, tx := range txs {
		if tx.Block == nil {
			continue // unmined bundles are not audited
		}
		out.BundlesSeen++

		if _, err := a.Store.GetBundle(ctx, tx.ID); errors.Is(err, store.ErrBundleNotFound) {
			if err := a.Store.InsertBundle(ctx, store.Bundle{
				ID:           tx.ID,
				OwnerAddress: a.Bundler.Address,
				BlockHeight:  tx.Block.Height,
			}); err != nil {
				logger.Printf("bundle %s: insert failed, skipping: %v", tx.ID, err)
				continue
			}
		} else if err != nil {
			logger.Printf("bundle %s: get_bundle failed, skipping: %v", tx.ID, err)
			continue
		}

		path, err := a.Chain.FetchPayload(ctx, tx.ID)
		if err != nil {
			logger.Printf("bundle %s: fetch_payload failed: %v", tx.ID, err)
			out.FileErrors++
			continue
		}

		items, err := bundle.ParseFile(path)
		if err != nil {
			logger.Printf("bundle %s: parse failed: %v", tx.ID, err)
			out.ParseErrors++
			continue
		}

		for _, item := range items {
			a.auditItem(ctx, item, tx.ID, tx.Block.Height, epochNow, verify, &out)
		}
	}

	metrics.AuditPassesTotal.WithLabelValues("ok").Inc()
	return out
}

func (a *Auditor) auditItem(ctx context.Context, item bundle.Item, bundleID string, bundleHeight int64, epochNow uint64, verify func(receipt.Receipt) (bool, error), out *Outcome) {
	logger := a.logger()

	rcpt, ok := a.resolveReceipt(ctx, item)
	if !ok {
		out.MissingReceipts++
		return
	}

	valid, err := verify(rcpt)
	if err != nil {
		logger.Printf("item %s: receipt message could not be constructed: %v", item.TxID, err)
		return
	}

	if !valid {
		a.Slasher.VoteSlash(a.Bundler.Address, item.TxID, epochNow)
		metrics.SlashVotesCast.WithLabelValues(metrics.ViolationForgedReceipt).Inc()
		out.SlashesCast++
		return
	}

	if rcpt.Block > bundleHeight {
		// The receipt's promised height is above the height at which the
		// containing bundle landed (block_promised > block_actual); this is
		// counted as a late-inclusion violation and the item is not persisted.
		a.Slasher.VoteSlash(a.Bundler.Address, item.TxID, epochNow)
		metrics.SlashVotesCast.WithLabelValues(metrics.ViolationLateInclusion).Inc()
		out.SlashesCast++
		return
	}

	actual := bundleHeight
	err = a.Store.InsertTx(ctx, store.Transaction{
		ID:            item.TxID,
		Epoch:         epochNow,
		BlockPromised: rcpt.Block,
		BlockActual:   &actual,
		Signature:     []byte(rcpt.Signature),
		Validated:     true,
		BundleID:      &bundleID,
	})
	if err != nil {
		logger.Printf("item %s: insert_tx failed: %v", item.TxID, err)
		return
	}
	metrics.AuditItemsPersisted.Inc()
	out.ItemsPersisted++
}

func (a *Auditor) resolveReceipt(ctx context.Context, item bundle.Item) (receipt.Receipt, bool) {
	if tx, err := a.Store.GetTx(ctx, item.TxID); err == nil {
		return receipt.Receipt{Block: tx.BlockPromised, TxID: tx.ID, Signature: string(tx.Signature)}, true
	}

	if a.Peers == nil {
		return receipt.Receipt{}, false
	}
	r, err := a.Peers.Fetch(ctx, item.TxID)
	if err != nil {
		return receipt.Receipt{}, false
	}
	return r, true
}

// ValidateTransactions audits outstanding (not-yet-bundled) receipts against
// currentHeight to detect late bundling. It shares the Store with RunPass
// but no call path.
func (a *Auditor) ValidateTransactions(ctx context.Context, currentHeight int64) Outcome {
	var out Outcome
	logger := a.logger()

	outstanding, err := a.Store.ListOutstanding(ctx)
	if err != nil {
		logger.Printf("list_outstanding failed, aborting: %v", err)
		return out
	}

	epochNow := a.CurrentEpoch()
	for _, tx := range outstanding {
		if currentHeight < tx.BlockPromised {
			a.Slasher.VoteSlash(a.Bundler.Address, tx.ID, epochNow)
			metrics.SlashVotesCast.WithLabelValues(metrics.ViolationLateBundling).Inc()
			out.SlashesCast++
		}
	}
	return out
}
