package keys

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// Encoded keys are self-delimiting and sort bytewise in key order, so an
// index entry can be stored as Encode(indexKey) followed by
// Encode(primaryKey) and still iterate in (indexKey, primaryKey) order.
//
// Layout:
//
//	number: 0x10, 8 bytes of order-flipped IEEE-754
//	date:   0x20, 8 bytes of sign-flipped unix nanoseconds
//	string: 0x30, bytes with 0x00 escaped as 0x00 0xFF, then 0x00
//	binary: 0x40, same escaping as string
//	array:  0x50, encoded elements, then 0x00
const (
	tagEnd    byte = 0x00
	tagNumber byte = 0x10
	tagDate   byte = 0x20
	tagString byte = 0x30
	tagBinary byte = 0x40
	tagArray  byte = 0x50
	escape    byte = 0xFF
)

var ErrCorrupt = errors.New("corrupt key encoding")

// Encode returns the order-preserving byte form of k. Encoding the zero
// Key returns nil.
func Encode(k Key) []byte {
	if !k.Valid() {
		return nil
	}
	return appendKey(nil, k)
}

// Append appends the encoding of k to dst.
func Append(dst []byte, k Key) []byte {
	return appendKey(dst, k)
}

func appendKey(dst []byte, k Key) []byte {
	switch k.kind {
	case KindNumber:
		bits := math.Float64bits(k.num)
		if k.num == 0 {
			bits = 0 // fold -0 into +0
		}
		if bits&(1<<63) != 0 {
			bits = ^bits
		} else {
			bits |= 1 << 63
		}
		dst = append(dst, tagNumber)
		return binary.BigEndian.AppendUint64(dst, bits)
	case KindDate:
		dst = append(dst, tagDate)
		dst = binary.BigEndian.AppendUint64(dst, uint64(k.date.Unix())^(1<<63))
		return binary.BigEndian.AppendUint32(dst, uint32(k.date.Nanosecond()))
	case KindString:
		dst = append(dst, tagString)
		return appendEscaped(dst, []byte(k.str))
	case KindBinary:
		dst = append(dst, tagBinary)
		return appendEscaped(dst, k.bin)
	case KindArray:
		dst = append(dst, tagArray)
		for _, p := range k.arr {
			dst = appendKey(dst, p)
		}
		return append(dst, tagEnd)
	}
	return dst
}

func appendEscaped(dst, b []byte) []byte {
	for _, c := range b {
		dst = append(dst, c)
		if c == 0x00 {
			dst = append(dst, escape)
		}
	}
	return append(dst, 0x00)
}

// Decode parses one encoded key from the front of b and returns it along
// with the remaining bytes.
func Decode(b []byte) (Key, []byte, error) {
	if len(b) == 0 {
		return Key{}, nil, fmt.Errorf("%w: empty input", ErrCorrupt)
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case tagNumber:
		if len(rest) < 8 {
			return Key{}, nil, fmt.Errorf("%w: short number", ErrCorrupt)
		}
		bits := binary.BigEndian.Uint64(rest[:8])
		if bits&(1<<63) != 0 {
			bits &^= 1 << 63
		} else {
			bits = ^bits
		}
		return Number(math.Float64frombits(bits)), rest[8:], nil
	case tagDate:
		if len(rest) < 12 {
			return Key{}, nil, fmt.Errorf("%w: short date", ErrCorrupt)
		}
		sec := int64(binary.BigEndian.Uint64(rest[:8]) ^ (1 << 63))
		nsec := int64(binary.BigEndian.Uint32(rest[8:12]))
		return Date(time.Unix(sec, nsec).UTC()), rest[12:], nil
	case tagString, tagBinary:
		raw, tail, err := readEscaped(rest)
		if err != nil {
			return Key{}, nil, err
		}
		if tag == tagString {
			return String(string(raw)), tail, nil
		}
		return Key{kind: KindBinary, bin: raw}, tail, nil
	case tagArray:
		var parts []Key
		for {
			if len(rest) == 0 {
				return Key{}, nil, fmt.Errorf("%w: unterminated array", ErrCorrupt)
			}
			if rest[0] == tagEnd {
				return Key{kind: KindArray, arr: parts}, rest[1:], nil
			}
			var p Key
			var err error
			p, rest, err = Decode(rest)
			if err != nil {
				return Key{}, nil, err
			}
			parts = append(parts, p)
		}
	default:
		return Key{}, nil, fmt.Errorf("%w: unknown tag 0x%02x", ErrCorrupt, tag)
	}
}

// DecodeAll parses b, which must hold exactly one encoded key.
func DecodeAll(b []byte) (Key, error) {
	k, rest, err := Decode(b)
	if err != nil {
		return Key{}, err
	}
	if len(rest) != 0 {
		return Key{}, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(rest))
	}
	return k, nil
}

func readEscaped(b []byte) ([]byte, []byte, error) {
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != 0x00 {
			out = append(out, b[i])
			continue
		}
		if i+1 < len(b) && b[i+1] == escape {
			out = append(out, 0x00)
			i++
			continue
		}
		return out, b[i+1:], nil
	}
	return nil, nil, fmt.Errorf("%w: unterminated string", ErrCorrupt)
}
