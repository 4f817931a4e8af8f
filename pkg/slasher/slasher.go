// Copyright 2025 Certen Protocol
//
// Slasher casts a slashing vote against the bundler when an audit invariant
// is violated. The voting transport is under active design upstream; this
// core guarantees only the idempotency contract (at most one cast per
// (bundler, violation, epoch) triple) and logs the decision.

package slasher

import (
	"log"
	"sync"
)

// Transport casts the actual on-chain vote. The default Transport only logs.
type Transport interface {
	CastVote(bundlerAddress, violationTxID string, epoch uint64)
}

// LoggingTransport logs every vote instead of casting it on-chain.
type LoggingTransport struct {
	logger *log.Logger
}

// NewLoggingTransport returns a Transport that only logs.
func NewLoggingTransport() *LoggingTransport {
	return &LoggingTransport{logger: log.New(log.Writer(), "[slasher] ", log.LstdFlags)}
}

func (t *LoggingTransport) CastVote(bundlerAddress, violationTxID string, epoch uint64) {
	t.logger.Printf("SLASH VOTE bundler=%s tx=%s epoch=%d", bundlerAddress, violationTxID, epoch)
}

type voteKey struct {
	bundlerAddress string
	violationTxID  string
	epoch          uint64
}

// Slasher deduplicates repeated VoteSlash calls for the same violation
// within the same epoch before handing the cast off to its Transport.
type Slasher struct {
	mu        sync.Mutex
	cast      map[voteKey]bool
	transport Transport
}

// New constructs a Slasher over transport.
func New(transport Transport) *Slasher {
	return &Slasher{
		cast:      make(map[voteKey]bool),
		transport: transport,
	}
}

// VoteSlash casts a slashing vote against bundlerAddress for violationTxID at
// epoch, unless that exact triple has already been cast.
func (s *Slasher) VoteSlash(bundlerAddress, violationTxID string, epoch uint64) {
	key := voteKey{bundlerAddress: bundlerAddress, violationTxID: violationTxID, epoch: epoch}

	s.mu.Lock()
	already := s.cast[key]
	if !already {
		s.cast[key] = true
	}
	s.mu.Unlock()

	if already {
		return
	}
	s.transport.CastVote(bundlerAddress, violationTxID, epoch)
}
