// Copyright 2025 Certen Protocol
//
// Percent-encoding for the GraphQL query parameter. Go's net/url
// QueryEscape encodes spaces as "+", which does not match the gateway's
// encoder; this implements RFC 3986 percent-encoding directly (unreserved
// characters pass through, everything else becomes %XX uppercase hex).

package chain

import "strings"

func isUnreserved(b byte) bool {
	switch {
	case b >= 'A' && b <= 'Z', b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.' || b == '~':
		return true
	default:
		return false
	}
}

const hexDigits = "0123456789ABCDEF"

// percentEncode encodes s the way the gateway's query-string encoder does:
// unreserved characters pass through unescaped, everything else becomes a
// percent-encoded UTF-8 byte sequence.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hexDigits[c>>4])
		b.WriteByte(hexDigits[c&0x0f])
	}
	return b.String()
}
