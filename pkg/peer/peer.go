// Copyright 2025 Certen Protocol
//
// Peer Fallback queries known validator peers for a receipt the local store
// does not have. The peer set itself is loaded once at startup from a YAML
// file, matching the corpus's config-file convention.

package peer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/certen/gateway-validator/pkg/receipt"
)

// ErrTxNotFound is returned when every configured peer fails to produce a receipt.
var ErrTxNotFound = errors.New("peer: transaction not found on any peer")

// Peer is one validator peer entry, read-only after load.
type Peer struct {
	Address string `yaml:"address"`
	URL     string `yaml:"url"`
}

// peersFile is the on-disk shape of the peer registry file.
type peersFile struct {
	Peers []Peer `yaml:"peers"`
}

// LoadFile reads a peer registry from a YAML file. A missing path yields an
// empty registry rather than an error, so peer fallback is optional.
func LoadFile(path string) ([]Peer, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("peer: read %s: %w", path, err)
	}
	var pf peersFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("peer: parse %s: %w", path, err)
	}
	return pf.Peers, nil
}

// HTTPClient is the capability Registry needs from its transport.
type HTTPClient interface {
	Execute(req *http.Request) (*http.Response, error)
}

// Registry queries a declared, ordered set of validator peers.
type Registry struct {
	peers  []Peer
	http   HTTPClient
	logger *log.Logger
}

// NewRegistry constructs a peer Registry over peers, queried in declared order.
func NewRegistry(peers []Peer, httpClient HTTPClient) *Registry {
	return &Registry{
		peers:  peers,
		http:   httpClient,
		logger: log.New(log.Writer(), "[peer] ", log.LstdFlags),
	}
}

// Fetch iterates the configured peers in order, issuing GET {peer.url}/tx/{txID}
// to each until one responds 2xx. No backoff; a non-2xx or transport error
// simply moves on to the next peer.
func (r *Registry) Fetch(ctx context.Context, txID string) (receipt.Receipt, error) {
	for _, p := range r.peers {
		url := fmt.Sprintf("%s/tx/%s", p.URL, txID)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			r.logger.Printf("peer %s: build request failed: %v", p.Address, err)
			continue
		}

		resp, err := r.http.Execute(req)
		if err != nil {
			r.logger.Printf("peer %s: transport error: %v", p.Address, err)
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			continue
		}

		var body struct {
			Block     int64  `json:"block"`
			TxID      string `json:"tx_id"`
			Signature string `json:"signature"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			r.logger.Printf("peer %s: malformed receipt body: %v", p.Address, err)
			continue
		}

		return receipt.Receipt{Block: body.Block, TxID: body.TxID, Signature: body.Signature}, nil
	}

	return receipt.Receipt{}, ErrTxNotFound
}
