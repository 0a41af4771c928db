package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxKeyLen is the longest storage key passed to providers (memcache limit).
const MaxKeyLen = 250

// StorageKey returns key unchanged when it fits MaxKeyLen. Longer keys keep a
// readable head and end with a hash of the full key.
func StorageKey(key string) string {
	if len(key) <= MaxKeyLen {
		return key
	}
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:16]) // 32 hex chars
	head := key[:MaxKeyLen-len(h)-1]
	return head + "#" + h
}
