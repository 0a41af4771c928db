package util

import (
	"strings"
	"testing"
)

func TestStorageKeyShortUnchanged(t *testing.T) {
	k := "spi:ibx-s@1-5"
	if got := StorageKey(k); got != k {
		t.Fatalf("short key changed: %q", got)
	}
}

func TestStorageKeyLongIsBoundedAndDistinct(t *testing.T) {
	a := "spi:" + strings.Repeat("a", 300) + "x"
	b := "spi:" + strings.Repeat("a", 300) + "y"
	ka, kb := StorageKey(a), StorageKey(b)
	if len(ka) != MaxKeyLen || len(kb) != MaxKeyLen {
		t.Fatalf("expected %d byte keys, got %d and %d", MaxKeyLen, len(ka), len(kb))
	}
	if ka == kb {
		t.Fatalf("long keys sharing a head must not collide")
	}
	if StorageKey(a) != ka {
		t.Fatalf("StorageKey must be deterministic")
	}
}
