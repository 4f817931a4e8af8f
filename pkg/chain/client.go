// Copyright 2025 Certen Protocol
//
// Chain Client queries the gateway chain for a principal's recent
// transactions and downloads a transaction's raw payload to disk.

package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// txQuery is the canonical GraphQL query for the recent-transactions lookup.
// Pinned byte-for-byte; changing it changes the percent-encoding regression vector.
const txQuery = `query($owners: [String!], $first: Int) { transactions(owners: $owners, first: $first) { pageInfo { hasNextPage } edges { cursor node { id owner { address } signature recipient tags { name value } block { height id timestamp } } } } }`

// HTTPClient is the capability the chain client needs from its transport,
// narrow enough that tests can substitute a deterministic fake.
type HTTPClient interface {
	Execute(req *http.Request) (*http.Response, error)
}

// httpx adapts *http.Client to HTTPClient with a fixed per-request timeout.
type httpx struct {
	client *http.Client
}

// NewHTTPClient returns an HTTPClient with a 30s per-request timeout.
func NewHTTPClient() HTTPClient {
	return &httpx{client: &http.Client{Timeout: 30 * time.Second}}
}

func (h *httpx) Execute(req *http.Request) (*http.Response, error) {
	return h.client.Do(req)
}

// Client is the chain client, bound to one gateway base URL.
type Client struct {
	baseURL string
	http    HTTPClient
	logger  *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient overrides the HTTP transport, primarily for tests.
func WithHTTPClient(h HTTPClient) ClientOption {
	return func(c *Client) { c.http = h }
}

// NewClient constructs a chain client against baseURL (e.g. "https://arweave.net").
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    NewHTTPClient(),
		logger:  log.New(log.Writer(), "[chain] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// queryURL builds the GraphQL endpoint URL with the query embedded (pinned) in
// the query string, matching the gateway's own URL-encoding convention.
func (c *Client) queryURL() string {
	return fmt.Sprintf("%s/graphql?query=%s", c.baseURL, percentEncode(txQuery))
}

// ListRecent returns the most recent transactions by owner, paged by first/after.
// first defaults to 10 when <= 0. after is either "" (meaning the literal null
// cursor) or a previously returned cursor.
func (c *Client) ListRecent(ctx context.Context, owner string, first int, after string) ([]Transaction, bool, string, error) {
	if first <= 0 {
		first = 10
	}

	var afterPtr *string
	if after != "" {
		afterPtr = &after
	}

	body := gqlRequestBody{
		Query: txQuery,
		Variables: gqlVariables{
			Owners: []string{owner},
			First:  first,
			After:  afterPtr,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, false, "", fmt.Errorf("chain: encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, false, "", fmt.Errorf("chain: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Execute(req)
	if err != nil {
		c.logger.Printf("list_recent transport error: %v", err)
		return nil, false, "", ErrUnknown
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var parsed gqlResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			c.logger.Printf("list_recent: malformed response body: %v", err)
			return nil, false, "", ErrUnknown
		}
		txs := make([]Transaction, 0, len(parsed.Data.Transactions.Edges))
		var endCursor string
		for _, edge := range parsed.Data.Transactions.Edges {
			txs = append(txs, edge.Node)
			endCursor = edge.Cursor
		}
		return txs, parsed.Data.Transactions.PageInfo.HasNextPage, endCursor, nil
	case http.StatusBadRequest:
		return nil, false, "", ErrMalformedQuery
	case http.StatusNotFound:
		return nil, false, "", ErrTxsNotFound
	case http.StatusInternalServerError:
		return nil, false, "", ErrInternalServerError
	case http.StatusGatewayTimeout:
		return nil, false, "", ErrGatewayTimeout
	default:
		return nil, false, "", ErrUnknown
	}
}

// FetchPayload GETs {baseURL}/{txID} and streams the body into ./bundles/{txID},
// returning the local path. Partial files are left on disk on failure.
func (c *Client) FetchPayload(ctx context.Context, txID string) (string, error) {
	dir := "bundles"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("chain: create bundles dir: %w", err)
	}
	path := filepath.Join(dir, txID)

	url := fmt.Sprintf("%s/%s", c.baseURL, txID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("chain: build request: %w", err)
	}

	resp, err := c.http.Execute(req)
	if err != nil {
		return "", fmt.Errorf("chain: fetch payload %s: %w", txID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("chain: fetch payload %s: unexpected status %d", txID, resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("chain: create %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("chain: write %s: %w", path, err)
	}

	c.logger.Printf("downloaded bundle %s content", txID)
	return path, nil
}

// CurrentHeight returns the gateway's current block height (GET /height),
// the value audit.Auditor.ValidateTransactions takes as its currentHeight.
func (c *Client) CurrentHeight(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/height", nil)
	if err != nil {
		return 0, fmt.Errorf("chain: build request: %w", err)
	}

	resp, err := c.http.Execute(req)
	if err != nil {
		return 0, fmt.Errorf("chain: fetch height: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("chain: fetch height: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("chain: read height: %w", err)
	}

	var height int64
	if _, err := fmt.Sscanf(string(body), "%d", &height); err != nil {
		return 0, fmt.Errorf("chain: parse height %q: %w", body, err)
	}
	return height, nil
}
