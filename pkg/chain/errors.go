// Copyright 2025 Certen Protocol
//
// Sentinel errors for chain client operations.

package chain

import "errors"

var (
	// ErrMalformedQuery is returned when the gateway rejects the GraphQL query (HTTP 400).
	ErrMalformedQuery = errors.New("chain: malformed query")

	// ErrTxsNotFound is returned when the gateway has no record of the principal (HTTP 404).
	ErrTxsNotFound = errors.New("chain: transactions not found")

	// ErrInternalServerError is returned on a gateway-side failure (HTTP 500).
	ErrInternalServerError = errors.New("chain: internal server error")

	// ErrGatewayTimeout is returned when the gateway itself times out (HTTP 504).
	ErrGatewayTimeout = errors.New("chain: gateway timeout")

	// ErrUnknown covers any other non-2xx response or transport failure.
	ErrUnknown = errors.New("chain: unknown error")
)
