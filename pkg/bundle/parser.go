// Copyright 2025 Certen Protocol
//
// Bundle Parser reads an ANS-104 bundle container from disk and yields the
// data items it holds. The byte layout:
//
//	offset 0:  u256 LE item count N (only the low 8 bytes are used)
//	offset 32: N x (u256 LE item size, 32-byte item id) headers, 64 bytes each
//	then:      N data items, each:
//	             u16 LE signature type (1 = RSA-4096: sig/owner 512 bytes each)
//	             signature (sig-type length)
//	             owner / public key (sig-type length)
//	             1 byte target-present flag [+ 32-byte target]
//	             1 byte anchor-present flag [+ 32-byte anchor]
//	             u64 LE number of tags
//	             u64 LE number of tag bytes
//	             tag bytes (Avro-encoded, present only if number of tag bytes > 0)
//	             remaining bytes of the item: data payload
//
// An item's tx_id is base64url-nopad(SHA-256(signature)).

package bundle

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"
)

const (
	sigTypeRSA4096 = 1
	rsaFieldLen    = 512
)

type header struct {
	size uint64
	id   [32]byte
}

// ParseFile opens path and parses its contents as an ANS-104 bundle container.
func ParseFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bundle: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw bundle container bytes into its data items.
func Parse(data []byte) ([]Item, error) {
	r := &reader{data: data}

	countBytes, err := r.take(32)
	if err != nil {
		return nil, ErrMalformedBundle
	}
	count := readLowU64LE(countBytes)

	headers := make([]header, 0, count)
	for i := uint64(0); i < count; i++ {
		sizeBytes, err := r.take(32)
		if err != nil {
			return nil, ErrMalformedBundle
		}
		idBytes, err := r.take(32)
		if err != nil {
			return nil, ErrMalformedBundle
		}
		var h header
		h.size = readLowU64LE(sizeBytes)
		copy(h.id[:], idBytes)
		headers = append(headers, h)
	}

	items := make([]Item, 0, count)
	for _, h := range headers {
		itemBytes, err := r.take(int(h.size))
		if err != nil {
			return nil, ErrMalformedBundle
		}
		item, err := parseItem(itemBytes)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, nil
}

func parseItem(data []byte) (Item, error) {
	r := &reader{data: data}

	sigTypeBytes, err := r.take(2)
	if err != nil {
		return Item{}, ErrMalformedBundle
	}
	sigType := binary.LittleEndian.Uint16(sigTypeBytes)
	if sigType != sigTypeRSA4096 {
		return Item{}, ErrMalformedBundle
	}

	signature, err := r.take(rsaFieldLen)
	if err != nil {
		return Item{}, ErrMalformedBundle
	}
	owner, err := r.take(rsaFieldLen)
	if err != nil {
		return Item{}, ErrMalformedBundle
	}

	item := Item{
		Signature: signature,
		Owner:     owner,
		TxID:      txIDFromSignature(signature),
	}

	targetFlag, err := r.take(1)
	if err != nil {
		return Item{}, ErrMalformedBundle
	}
	if targetFlag[0] != 0 {
		target, err := r.take(32)
		if err != nil {
			return Item{}, ErrMalformedBundle
		}
		item.Target = target
	}

	anchorFlag, err := r.take(1)
	if err != nil {
		return Item{}, ErrMalformedBundle
	}
	if anchorFlag[0] != 0 {
		anchor, err := r.take(32)
		if err != nil {
			return Item{}, ErrMalformedBundle
		}
		item.Anchor = anchor
	}

	numTagsBytes, err := r.take(8)
	if err != nil {
		return Item{}, ErrMalformedBundle
	}
	numTagBytesBytes, err := r.take(8)
	if err != nil {
		return Item{}, ErrMalformedBundle
	}
	numTags := binary.LittleEndian.Uint64(numTagsBytes)
	numTagBytes := binary.LittleEndian.Uint64(numTagBytesBytes)

	if numTagBytes > 0 {
		tagBytes, err := r.take(int(numTagBytes))
		if err != nil {
			return Item{}, ErrMalformedBundle
		}
		tags, err := decodeAvroTags(tagBytes, numTags)
		if err != nil {
			return Item{}, err
		}
		item.Tags = tags
	}

	item.Data = r.rest()
	return item, nil
}

func txIDFromSignature(signature []byte) string {
	digest := sha256.Sum256(signature)
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

func readLowU64LE(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b[:8])
}

// reader is a simple cursor over a byte slice, guarding every advance
// against running past the end of the buffer.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("bundle: truncated at offset %d (need %d, have %d)", r.pos, n, len(r.data)-r.pos)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) rest() []byte {
	b := r.data[r.pos:]
	r.pos = len(r.data)
	return b
}
