package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR stores cached entries as CBOR. Build it with NewCBOR; ByName("cbor")
// returns the deterministic form.
//
// Deterministic encoding sorts map keys, so a Content whose field maps were
// filled in a different order still produces the same entry bytes. Times are
// written as RFC3339Nano strings and survive a round trip through any
// provider without losing the zone offset.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR returns a CBOR codec. deterministic selects RFC 8949 core
// deterministic encoding; otherwise map keys are left unsorted.
//
// Decoding rejects maps with duplicate keys: such a payload was not written
// by this codec, and the failed decode reads as a cache miss.
func NewCBOR[V any](deterministic bool) (CBOR[V], error) {
	eo := cbor.PreferredUnsortedEncOptions()
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

// MustCBOR panics if NewCBOR fails. Meant for test fixtures.
func MustCBOR[V any](deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
