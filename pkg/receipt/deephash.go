// Copyright 2025 Certen Protocol
//
// Deep-hash is the domain-separating tree hash used to build the canonical
// receipt-signing message. It is bit-exact to the bundling ecosystem's own
// deep-hash: a blob is hashed as SHA384(SHA384(tag) || SHA384(blob)) where
// tag is "blob"+len(blob); a list folds the same way over "list"+len(list).

package receipt

import (
	"crypto/sha512"
	"strconv"
)

func sha384(parts ...[]byte) []byte {
	h := sha512.New384()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// deepHashBlob hashes a single chunk.
func deepHashBlob(blob []byte) []byte {
	tag := []byte("blob" + strconv.Itoa(len(blob)))
	return sha384(sha384(tag), sha384(blob))
}

// deepHashList folds deepHashBlob over an ordered list of chunks.
func deepHashList(chunks [][]byte) []byte {
	acc := sha384([]byte("list" + strconv.Itoa(len(chunks))))
	for _, c := range chunks {
		acc = sha384(acc, deepHashBlob(c))
	}
	return acc
}
