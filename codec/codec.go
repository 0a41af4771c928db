// Package codec turns cached values into payload bytes and back.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names accepted by ByName.
const (
	NameJSON    = "json"
	NameMsgpack = "msgpack"
	NameCBOR    = "cbor"
)

// ByName returns the codec registered under name. An empty name selects
// msgpack.
func ByName[V any](name string) (Codec[V], error) {
	switch strings.ToLower(name) {
	case NameJSON:
		return JSON[V]{}, nil
	case "", NameMsgpack:
		return Msgpack[V]{}, nil
	case NameCBOR:
		return NewCBOR[V](true)
	default:
		return nil, fmt.Errorf("codec: unknown codec %q", name)
	}
}
