// Copyright 2025 Certen Protocol
//
// Minimal Avro decoder for the tag array format ANS-104 data items embed:
// an Avro array of {name: string, value: string} records, laid out as
// zigzag-varint-counted blocks terminated by a zero-length block.

package bundle

import "fmt"

// decodeAvroTags decodes an Avro-encoded array of {name, value} string pairs.
func decodeAvroTags(data []byte, expectedCount uint64) ([]Tag, error) {
	r := &reader{data: data}
	tags := make([]Tag, 0, expectedCount)

	for {
		count, err := readAvroLong(r)
		if err != nil {
			return nil, ErrMalformedBundle
		}
		if count == 0 {
			break
		}
		if count < 0 {
			// A negative block count is followed by its byte size; skip it,
			// since this core only needs the tags themselves.
			if _, err := readAvroLong(r); err != nil {
				return nil, ErrMalformedBundle
			}
			count = -count
		}

		for i := int64(0); i < count; i++ {
			name, err := readAvroString(r)
			if err != nil {
				return nil, ErrMalformedBundle
			}
			value, err := readAvroString(r)
			if err != nil {
				return nil, ErrMalformedBundle
			}
			tags = append(tags, Tag{Name: name, Value: value})
		}
	}

	return tags, nil
}

func readAvroLong(r *reader) (int64, error) {
	var result uint64
	var shift uint
	for {
		b, err := r.take(1)
		if err != nil {
			return 0, fmt.Errorf("bundle: truncated avro long")
		}
		result |= uint64(b[0]&0x7f) << shift
		if b[0]&0x80 == 0 {
			break
		}
		shift += 7
		if shift > 63 {
			return 0, fmt.Errorf("bundle: avro long overflow")
		}
	}
	return int64(result>>1) ^ -int64(result&1), nil
}

func readAvroString(r *reader) (string, error) {
	n, err := readAvroLong(r)
	if err != nil || n < 0 {
		return "", fmt.Errorf("bundle: malformed avro string length")
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
