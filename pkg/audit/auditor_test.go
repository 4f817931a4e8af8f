// Copyright 2025 Certen Protocol

package audit

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/certen/gateway-validator/pkg/chain"
	"github.com/certen/gateway-validator/pkg/receipt"
	"github.com/certen/gateway-validator/pkg/store"
)

// -- fixture builders, mirroring pkg/bundle's ANS-104 layout --

const sigTypeRSA4096 = 1
const rsaFieldLen = 512

func buildItem(signature, owner, data []byte) []byte {
	var b bytes.Buffer
	sigType := make([]byte, 2)
	binary.LittleEndian.PutUint16(sigType, sigTypeRSA4096)
	b.Write(sigType)
	b.Write(signature)
	b.Write(owner)
	b.WriteByte(0) // no target
	b.WriteByte(0) // no anchor
	b.Write(make([]byte, 8)) // tag count
	b.Write(make([]byte, 8)) // tag bytes
	b.Write(data)
	return b.Bytes()
}

func buildBundle(items [][]byte) []byte {
	var b bytes.Buffer
	count := make([]byte, 32)
	binary.LittleEndian.PutUint64(count, uint64(len(items)))
	b.Write(count)
	for _, item := range items {
		size := make([]byte, 32)
		binary.LittleEndian.PutUint64(size, uint64(len(item)))
		b.Write(size)
		b.Write(make([]byte, 32)) // id, unused by the parser
	}
	for _, item := range items {
		b.Write(item)
	}
	return b.Bytes()
}

func itemTxID(signature []byte) string {
	digest := sha256.Sum256(signature)
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// -- fakes --

// fakeChainClient serves one fixed bundle transaction and streams a
// pre-built bundle file from disk, standing in for *chain.Client so tests
// never touch the network.
type fakeChainClient struct {
	txs        []chain.Transaction
	bundlePath string
	listErr    error
	fetchErr   error
}

func (f *fakeChainClient) ListRecent(ctx context.Context, owner string, first int, after string) ([]chain.Transaction, bool, string, error) {
	if f.listErr != nil {
		return nil, false, "", f.listErr
	}
	return f.txs, false, "", nil
}

func (f *fakeChainClient) FetchPayload(ctx context.Context, txID string) (string, error) {
	if f.fetchErr != nil {
		return "", f.fetchErr
	}
	return f.bundlePath, nil
}

// fakeStore is an in-memory TxStore, keyed the way the real schema is.
type fakeStore struct {
	bundles     map[string]store.Bundle
	txs         map[string]store.Transaction
	insertedTxs []store.Transaction
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bundles: make(map[string]store.Bundle),
		txs:     make(map[string]store.Transaction),
	}
}

func (s *fakeStore) GetBundle(ctx context.Context, id string) (*store.Bundle, error) {
	b, ok := s.bundles[id]
	if !ok {
		return nil, store.ErrBundleNotFound
	}
	return &b, nil
}

func (s *fakeStore) InsertBundle(ctx context.Context, b store.Bundle) error {
	if _, ok := s.bundles[b.ID]; !ok {
		s.bundles[b.ID] = b
	}
	return nil
}

func (s *fakeStore) GetTx(ctx context.Context, id string) (*store.Transaction, error) {
	tx, ok := s.txs[id]
	if !ok {
		return nil, store.ErrTxNotFound
	}
	return &tx, nil
}

func (s *fakeStore) InsertTx(ctx context.Context, tx store.Transaction) error {
	if _, ok := s.txs[tx.ID]; !ok {
		s.txs[tx.ID] = tx
	}
	s.insertedTxs = append(s.insertedTxs, tx)
	return nil
}

func (s *fakeStore) ListOutstanding(ctx context.Context) ([]store.Transaction, error) {
	var out []store.Transaction
	for _, tx := range s.txs {
		if tx.BlockActual == nil {
			out = append(out, tx)
		}
	}
	return out, nil
}

// fakePeers is a PeerFetcher stub; empty unless a test seeds it.
type fakePeers struct {
	receipts map[string]receipt.Receipt
}

func (p *fakePeers) Fetch(ctx context.Context, txID string) (receipt.Receipt, error) {
	r, ok := p.receipts[txID]
	if !ok {
		return receipt.Receipt{}, errors.New("peer: transaction not found on any peer")
	}
	return r, nil
}

// recordingSlasher records every VoteSlash call instead of casting on-chain.
type recordingSlasher struct {
	votes []string // violationTxID per call
}

func (r *recordingSlasher) VoteSlash(bundlerAddress, violationTxID string, epoch uint64) {
	r.votes = append(r.votes, violationTxID)
}

func mustRSAKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

// writeBundleFile writes a single-item bundle containing one ANS-104 item
// signed with sig, returns the item's tx id and the bundle's file path.
func writeBundleFile(t *testing.T, dir string, sig []byte) (itemID, path string) {
	t.Helper()
	owner := bytes.Repeat([]byte{0xCD}, rsaFieldLen)
	item := buildItem(sig, owner, []byte("payload"))
	raw := buildBundle([][]byte{item})

	path = filepath.Join(dir, "bundle.bin")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatalf("write bundle fixture: %v", err)
	}
	return itemTxID(sig), path
}

func newAuditor(chainClient ChainClient, st TxStore, peers PeerFetcher, sl SlashVoter, epochNow uint64) *Auditor {
	return &Auditor{
		Chain:        chainClient,
		Store:        st,
		Peers:        peers,
		Slasher:      sl,
		Bundler:      BundlerIdentity{Address: "bundler-address"},
		CurrentEpoch: func() uint64 { return epochNow },
	}
}

func minedTx(id string, height int64) chain.Transaction {
	return chain.Transaction{ID: id, Block: &chain.Block{Height: height}}
}

// S1: a recent transaction with no mined block is skipped entirely.
func TestRunPassSkipsUnminedTransactions(t *testing.T) {
	chainClient := &fakeChainClient{txs: []chain.Transaction{{ID: "tx-unmined", Block: nil}}}
	st := newFakeStore()
	sl := &recordingSlasher{}

	a := newAuditor(chainClient, st, nil, sl, 1)
	out := a.RunPass(context.Background(), func(receipt.Receipt) (bool, error) { return true, nil })

	if out.BundlesSeen != 0 {
		t.Fatalf("expected 0 bundles seen, got %d", out.BundlesSeen)
	}
	if len(sl.votes) != 0 {
		t.Fatalf("expected no slash votes, got %v", sl.votes)
	}
}

// S2: a valid receipt at or before the bundle height persists and slashes nothing.
func TestRunPassHappyPathPersists(t *testing.T) {
	dir := t.TempDir()
	key := mustRSAKey(t)
	sig := bytes.Repeat([]byte{0xAB}, rsaFieldLen)
	itemID, path := writeBundleFile(t, dir, sig)

	chainClient := &fakeChainClient{txs: []chain.Transaction{minedTx("bundle-tx", 100)}, bundlePath: path}
	st := newFakeStore()
	sl := &recordingSlasher{}

	rcpt := receipt.Receipt{Block: 100, TxID: itemID}
	signed, err := receipt.Sign(rcpt, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rcpt.Signature = signed
	st.txs[itemID] = store.Transaction{ID: itemID, BlockPromised: 100, Signature: []byte(signed)}

	a := newAuditor(chainClient, st, nil, sl, 5)
	out := a.RunPass(context.Background(), func(r receipt.Receipt) (bool, error) {
		return receipt.Verify(r, &key.PublicKey)
	})

	if out.ItemsPersisted != 1 {
		t.Fatalf("expected 1 item persisted, got %d (votes=%v)", out.ItemsPersisted, sl.votes)
	}
	if len(sl.votes) != 0 {
		t.Fatalf("expected no slash votes, got %v", sl.votes)
	}
	if len(st.insertedTxs) != 1 || st.insertedTxs[0].BundleID == nil || *st.insertedTxs[0].BundleID != "bundle-tx" {
		t.Fatalf("expected inserted tx to reference the containing bundle id, got %+v", st.insertedTxs)
	}
	if string(st.insertedTxs[0].Signature) != signed {
		t.Fatalf("expected stored signature to be the verified receipt signature %q, got %q", signed, st.insertedTxs[0].Signature)
	}
}

// S3: the receipt is internally valid but promises a height after the
// bundle actually landed — late inclusion, slashable.
func TestRunPassSlashesLateInclusion(t *testing.T) {
	dir := t.TempDir()
	key := mustRSAKey(t)
	sig := bytes.Repeat([]byte{0xAB}, rsaFieldLen)
	itemID, path := writeBundleFile(t, dir, sig)

	chainClient := &fakeChainClient{txs: []chain.Transaction{minedTx("bundle-tx", 100)}, bundlePath: path}
	st := newFakeStore()
	sl := &recordingSlasher{}

	rcpt := receipt.Receipt{Block: 150, TxID: itemID} // promised after the bundle's actual height
	signed, err := receipt.Sign(rcpt, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	st.txs[itemID] = store.Transaction{ID: itemID, BlockPromised: 150, Signature: []byte(signed)}

	a := newAuditor(chainClient, st, nil, sl, 5)
	out := a.RunPass(context.Background(), func(r receipt.Receipt) (bool, error) {
		return receipt.Verify(r, &key.PublicKey)
	})

	if out.SlashesCast != 1 {
		t.Fatalf("expected 1 slash cast, got %d", out.SlashesCast)
	}
	if out.ItemsPersisted != 0 {
		t.Fatalf("expected no items persisted, got %d", out.ItemsPersisted)
	}
	if len(sl.votes) != 1 || sl.votes[0] != itemID {
		t.Fatalf("expected slash vote against %s, got %v", itemID, sl.votes)
	}
}

// S4: the signature does not verify against the bundler's key — forged
// receipt, slashable.
func TestRunPassSlashesForgedReceipt(t *testing.T) {
	dir := t.TempDir()
	key := mustRSAKey(t)
	forgerKey := mustRSAKey(t)
	sig := bytes.Repeat([]byte{0xAB}, rsaFieldLen)
	itemID, path := writeBundleFile(t, dir, sig)

	chainClient := &fakeChainClient{txs: []chain.Transaction{minedTx("bundle-tx", 100)}, bundlePath: path}
	st := newFakeStore()
	sl := &recordingSlasher{}

	rcpt := receipt.Receipt{Block: 100, TxID: itemID}
	signed, err := receipt.Sign(rcpt, forgerKey) // signed with the wrong key
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	st.txs[itemID] = store.Transaction{ID: itemID, BlockPromised: 100, Signature: []byte(signed)}

	a := newAuditor(chainClient, st, nil, sl, 5)
	out := a.RunPass(context.Background(), func(r receipt.Receipt) (bool, error) {
		return receipt.Verify(r, &key.PublicKey) // verifying against the genuine bundler key
	})

	if out.SlashesCast != 1 {
		t.Fatalf("expected 1 slash cast, got %d", out.SlashesCast)
	}
	if len(sl.votes) != 1 || sl.votes[0] != itemID {
		t.Fatalf("expected slash vote against %s, got %v", itemID, sl.votes)
	}
}

// No receipt in the Store or from any peer: neither persisted nor slashed,
// just counted as missing so the operator can see a gap.
func TestRunPassCountsMissingReceipt(t *testing.T) {
	dir := t.TempDir()
	sig := bytes.Repeat([]byte{0xAB}, rsaFieldLen)
	_, path := writeBundleFile(t, dir, sig)

	chainClient := &fakeChainClient{txs: []chain.Transaction{minedTx("bundle-tx", 100)}, bundlePath: path}
	st := newFakeStore()
	sl := &recordingSlasher{}
	peers := &fakePeers{receipts: map[string]receipt.Receipt{}}

	a := newAuditor(chainClient, st, peers, sl, 5)
	out := a.RunPass(context.Background(), func(receipt.Receipt) (bool, error) { return true, nil })

	if out.MissingReceipts != 1 {
		t.Fatalf("expected 1 missing receipt, got %d", out.MissingReceipts)
	}
	if len(sl.votes) != 0 {
		t.Fatalf("expected no slash votes for a merely-missing receipt, got %v", sl.votes)
	}
}

// ValidateTransactions slashes any outstanding transaction whose promised
// block has not yet arrived at currentHeight.
func TestValidateTransactionsSlashesOutstanding(t *testing.T) {
	st := newFakeStore()
	actual := int64(0)
	st.txs["tx-outstanding"] = store.Transaction{ID: "tx-outstanding", BlockPromised: 200, BlockActual: nil}
	st.txs["tx-settled"] = store.Transaction{ID: "tx-settled", BlockPromised: 50, BlockActual: &actual}

	sl := &recordingSlasher{}
	a := newAuditor(&fakeChainClient{}, st, nil, sl, 9)

	out := a.ValidateTransactions(context.Background(), 100)

	if out.SlashesCast != 1 {
		t.Fatalf("expected 1 slash cast, got %d", out.SlashesCast)
	}
	if len(sl.votes) != 1 || sl.votes[0] != "tx-outstanding" {
		t.Fatalf("expected vote against tx-outstanding, got %v", sl.votes)
	}
}
