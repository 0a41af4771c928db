package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"strings"
	"testing"
)

func mustEncode(t *testing.T, e Entry) []byte {
	t.Helper()
	b, err := EncodeEntry(e)
	if err != nil {
		t.Fatalf("EncodeEntry error: %v", err)
	}
	return b
}

func mustDecode(t *testing.T, b []byte) Entry {
	t.Helper()
	e, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return e
}

func TestEntryRoundTrip(t *testing.T) {
	cases := []Entry{
		{},
		{Payload: []byte("hello")},
		{Tags: []Tag{{Name: "ibx-s-1", Version: 0}}, Payload: []byte{0, 1, 2}},
		{
			Tags: []Tag{
				{Name: "ibx-c-7", Version: 3},
				{Name: "ibx-ct-2", Version: math.MaxUint64},
			},
			Payload: []byte("payload"),
		},
	}
	for _, tc := range cases {
		got := mustDecode(t, mustEncode(t, tc))
		if len(got.Tags) != len(tc.Tags) {
			t.Fatalf("tag count: got %d want %d", len(got.Tags), len(tc.Tags))
		}
		for i := range tc.Tags {
			if got.Tags[i] != tc.Tags[i] {
				t.Fatalf("tag %d: got %+v want %+v", i, got.Tags[i], tc.Tags[i])
			}
		}
		if !bytes.Equal(got.Payload, tc.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, tc.Payload)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	enc := mustEncode(t, Entry{Tags: []Tag{{Name: "t", Version: 1}}, Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD) // add junk
	if _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestDecodeCorruptHeaders(t *testing.T) {
	enc := mustEncode(t, Entry{Payload: []byte("abc")})

	// bad magic
	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeEntry(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	// wrong version
	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeEntry(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	// wrong kind
	badKind := append([]byte(nil), enc...)
	badKind[5] = kindTagged + 1
	if _, err := DecodeEntry(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// short
	if _, err := DecodeEntry(enc[:5]); err == nil {
		t.Fatalf("expected error on short header")
	}
}

func TestDecodeTruncatedTags(t *testing.T) {
	enc := mustEncode(t, Entry{Tags: []Tag{{Name: "tag", Version: 9}}, Payload: []byte("v")})
	for cut := 8; cut < len(enc); cut++ {
		if _, err := DecodeEntry(enc[:cut]); err == nil {
			t.Fatalf("expected error for truncated entry at %d", cut)
		}
	}
}

func TestDecodeRejectsOversizedPayloadLength(t *testing.T) {
	enc := mustEncode(t, Entry{Payload: []byte("abc")})
	// payload length field sits right after the tag count (no tags)
	binary.BigEndian.PutUint32(enc[8:12], 1000)
	if _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on payload length beyond buffer")
	}
}

func TestEncodeTagLengthValidation(t *testing.T) {
	if _, err := EncodeEntry(Entry{Tags: []Tag{{Name: ""}}}); err == nil {
		t.Fatalf("EncodeEntry should error on empty tag")
	}
	long := strings.Repeat("a", 0x10000)
	if _, err := EncodeEntry(Entry{Tags: []Tag{{Name: long}}}); err == nil {
		t.Fatalf("EncodeEntry should error on tag length > 0xFFFF")
	}
	edge := strings.Repeat("b", 0xFFFF)
	b := mustEncode(t, Entry{Tags: []Tag{{Name: edge, Version: 1}}})
	if got := mustDecode(t, b); got.Tags[0].Name != edge {
		t.Fatalf("boundary tag did not round trip")
	}
}
