// Copyright 2025 Certen Protocol

package bundle

import "errors"

// ErrMalformedBundle is returned for a truncated header, an item whose
// declared size runs past EOF, or an unsupported signature type. It is a
// parse error, never a slashable offense.
var ErrMalformedBundle = errors.New("bundle: malformed container")
