package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// ShortHash returns the first n hex chars of the SHA-256 of b. n <= 0 or
// n > 64 returns all 64 chars.
func ShortHash(b []byte, n int) string {
	sum := sha256.Sum256(b)
	h := hex.EncodeToString(sum[:])
	if n <= 0 || n > len(h) {
		n = len(h)
	}
	return h[:n]
}

// RedactKey hides the id part of a storage key while keeping a stable
// fingerprint, so logs stay correlatable without leaking content hashes or
// user ids. "<prefix>:<category>:<id>" becomes "<prefix>:<category>:#<hash>".
func RedactKey(key string) string {
	colons := 0
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			colons++
			if colons == 2 {
				return key[:i+1] + "#" + ShortHash([]byte(key[i+1:]), 12)
			}
		}
	}
	return "#" + ShortHash([]byte(key), 16)
}
