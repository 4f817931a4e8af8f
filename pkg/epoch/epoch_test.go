// Copyright 2025 Certen Protocol

package epoch

import (
	"testing"
	"time"
)

func TestCurrentIsMonotonicAndWindowed(t *testing.T) {
	base := time.Unix(epochLengthSeconds*7, 0)
	if got := Current(base); got != 7 {
		t.Fatalf("expected epoch 7, got %d", got)
	}

	justBefore := time.Unix(epochLengthSeconds*7-1, 0)
	if got := Current(justBefore); got != 6 {
		t.Fatalf("expected epoch 6, got %d", got)
	}

	later := base.Add(time.Hour)
	if Current(later) <= Current(base) {
		t.Fatalf("expected epoch to advance with time")
	}
}
