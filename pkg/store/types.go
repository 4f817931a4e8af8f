// Copyright 2025 Certen Protocol
//
// Row types persisted by the store.

package store

// Bundle is one row of the bundle table: a mined bundler transaction the
// auditor observed on the gateway chain, keyed by its transaction id. The
// row is inserted before the bundle is downloaded or parsed.
type Bundle struct {
	ID           string
	OwnerAddress string
	BlockHeight  int64
}

// Transaction is one row of the transactions table: a chain transaction the
// auditor is tracking toward either bundle inclusion or a missed-deadline slash.
type Transaction struct {
	ID            string
	Epoch         uint64
	BlockPromised int64
	BlockActual   *int64
	Signature     []byte
	Validated     bool
	BundleID      *string
}

// Validator is one row of the validators table: a known peer validator.
type Validator struct {
	Address string
	URL     *string
}

// Leader is one row of the leaders table: an address permitted to propose bundles.
type Leader struct {
	Address string
}
