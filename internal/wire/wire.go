package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version    byte = 1
	kindTagged byte = 1

	maxTags   = 0xFFFF
	maxTagLen = 0xFFFF
)

var (
	ErrCorrupt = errors.New("tagcache: corrupt entry")
	magic4     = [...]byte{'T', 'A', 'G', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Tag is a tag name with the version it had when the entry was written.
type Tag struct {
	Name    string
	Version uint64
}

// Entry is a tagged cache entry.
type Entry struct {
	Tags    []Tag
	Payload []byte
}

// Tagged:
//
//	magic(4) | ver(1) | kind(1=tagged) | n(u16 be)
//	tagLen(u16 be) | tag(tagLen) | version(u64 be)   * n
//	vlen(u32 be) | payload(vlen)
func EncodeEntry(e Entry) ([]byte, error) {
	if len(e.Tags) > maxTags {
		return nil, fmt.Errorf("wire: too many tags: %d", len(e.Tags))
	}
	total := 4 + 1 + 1 + 2 + 4 + len(e.Payload)
	for _, t := range e.Tags {
		if l := len(t.Name); l == 0 || l > maxTagLen {
			return nil, fmt.Errorf("wire: invalid tag length %d", l)
		}
		total += 2 + len(t.Name) + 8
	}

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindTagged)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Tags)))
	buf.Write(u2[:])

	for _, t := range e.Tags {
		binary.BigEndian.PutUint16(u2[:], uint16(len(t.Name)))
		buf.Write(u2[:])
		buf.WriteString(t.Name)

		binary.BigEndian.PutUint64(u8[:], t.Version)
		buf.Write(u8[:])
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes(), nil
}

// DecodeEntry parses an encoded entry. Trailing bytes are rejected.
// The returned payload aliases b.
func DecodeEntry(b []byte) (Entry, error) {
	const hdr = 4 + 1 + 1 + 2
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindTagged {
		return Entry{}, ErrCorrupt
	}

	off := 6

	n := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2

	var tags []Tag
	if n > 0 {
		tags = make([]Tag, 0, n)
	}
	for i := 0; i < n; i++ {
		// tagLen
		if off+2 > len(b) {
			return Entry{}, ErrCorrupt
		}
		tlen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if tlen == 0 || tlen > len(b)-off {
			return Entry{}, ErrCorrupt
		}
		name := string(b[off : off+tlen])
		off += tlen

		// version
		if off+8 > len(b) {
			return Entry{}, ErrCorrupt
		}
		v := binary.BigEndian.Uint64(b[off : off+8])
		off += 8

		tags = append(tags, Tag{Name: name, Version: v})
	}

	// vlen
	if off+4 > len(b) {
		return Entry{}, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // strict: no trailing bytes
		return Entry{}, ErrCorrupt
	}

	return Entry{Tags: tags, Payload: b[off : off+vlen]}, nil
}
