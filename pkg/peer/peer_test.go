// Copyright 2025 Certen Protocol

package peer

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
)

type fakeHTTPClient struct {
	responses []*http.Response
	calls     int
}

func (f *fakeHTTPClient) Execute(req *http.Request) (*http.Response, error) {
	resp := f.responses[f.calls]
	f.calls++
	return resp, nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestFetchFallsBackToSecondPeer(t *testing.T) {
	client := &fakeHTTPClient{
		responses: []*http.Response{
			jsonResponse(404, ""),
			jsonResponse(200, `{"block":5,"tx_id":"tx1","signature":"sig"}`),
		},
	}
	registry := NewRegistry([]Peer{
		{Address: "p1", URL: "http://p1.example"},
		{Address: "p2", URL: "http://p2.example"},
	}, client)

	r, err := registry.Fetch(context.Background(), "tx1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.TxID != "tx1" || r.Block != 5 {
		t.Fatalf("unexpected receipt: %+v", r)
	}
	if client.calls != 2 {
		t.Fatalf("expected exactly 2 peer calls, got %d", client.calls)
	}
}

func TestFetchExhaustsAllPeers(t *testing.T) {
	client := &fakeHTTPClient{
		responses: []*http.Response{
			jsonResponse(404, ""),
			jsonResponse(500, ""),
		},
	}
	registry := NewRegistry([]Peer{
		{Address: "p1", URL: "http://p1.example"},
		{Address: "p2", URL: "http://p2.example"},
	}, client)

	_, err := registry.Fetch(context.Background(), "tx1")
	if err != ErrTxNotFound {
		t.Fatalf("expected ErrTxNotFound, got %v", err)
	}
}
