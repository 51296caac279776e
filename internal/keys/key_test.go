package keys

import (
	"bytes"
	"errors"
	"math"
	"sort"
	"testing"
	"time"
)

// ordered lists keys in ascending order across every kind.
func ordered() []Key {
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Key{
		Number(math.Inf(-1)),
		Number(-1e9),
		Number(-1.5),
		Number(0),
		Number(0.25),
		Number(1),
		Number(2),
		Number(1e12),
		Number(math.Inf(1)),
		Date(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)),
		Date(time.Date(1500, 6, 1, 0, 0, 0, 0, time.UTC)),
		Date(time.Date(1969, 12, 31, 23, 59, 59, 999999999, time.UTC)),
		Date(time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)),
		Date(t0.Add(-time.Hour)),
		Date(t0),
		Date(t0.Add(time.Nanosecond)),
		Date(time.Date(2500, 1, 1, 0, 0, 0, 0, time.UTC)),
		Date(time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)),
		String(""),
		String("a"),
		String("a\x00"),
		String("a\x00b"),
		String("a\x01"),
		String("ab"),
		String("b"),
		Binary(nil),
		Binary([]byte{0}),
		Binary([]byte{0, 0}),
		Binary([]byte{1}),
		Array(),
		Array(Number(1)),
		Array(Number(1), Number(1)),
		Array(Number(1), String("x")),
		Array(Number(2)),
		Array(String("a")),
		Array(Array()),
	}
}

func TestCompareOrder(t *testing.T) {
	ks := ordered()
	for i := range ks {
		for j := range ks {
			got := Compare(ks[i], ks[j])
			want := 0
			if i < j {
				want = -1
			} else if i > j {
				want = 1
			}
			if got != want {
				t.Fatalf("Compare(%s, %s) = %d, want %d", ks[i], ks[j], got, want)
			}
		}
	}
}

func TestEncodingPreservesOrder(t *testing.T) {
	ks := ordered()
	for i := 0; i+1 < len(ks); i++ {
		a, b := Encode(ks[i]), Encode(ks[i+1])
		if bytes.Compare(a, b) >= 0 {
			t.Fatalf("Encode(%s) = %x not below Encode(%s) = %x", ks[i], a, ks[i+1], b)
		}
	}
}

func TestDecodeInvertsEncode(t *testing.T) {
	for _, k := range ordered() {
		got, err := DecodeAll(Encode(k))
		if err != nil {
			t.Fatalf("DecodeAll(%s): %v", k, err)
		}
		if !Equal(got, k) {
			t.Fatalf("DecodeAll(Encode(%s)) = %s", k, got)
		}
	}
}

func TestNumberRejectsNaN(t *testing.T) {
	if k := Number(math.NaN()); k.Valid() {
		t.Fatalf("Number(NaN) = %s, want the invalid key", k)
	}
}

func TestNegativeZeroEqualsZero(t *testing.T) {
	if !bytes.Equal(Encode(Number(math.Copysign(0, -1))), Encode(Number(0))) {
		t.Fatal("-0 and 0 should encode identically")
	}
}

func TestConcatenatedKeysSortAsTuples(t *testing.T) {
	entry := func(ik, pk Key) []byte { return Append(Encode(ik), pk) }

	entries := [][]byte{
		entry(String("b"), Number(1)),
		entry(String("a"), Number(3)),
		entry(String("ab"), Number(0)),
		entry(String("a"), Number(2)),
	}
	sort.Slice(entries, func(i, j int) bool { return bytes.Compare(entries[i], entries[j]) < 0 })

	want := []struct{ ik, pk Key }{
		{String("a"), Number(2)},
		{String("a"), Number(3)},
		{String("ab"), Number(0)},
		{String("b"), Number(1)},
	}
	for i, e := range entries {
		ik, rest, err := Decode(e)
		if err != nil {
			t.Fatal(err)
		}
		pk, err := DecodeAll(rest)
		if err != nil {
			t.Fatal(err)
		}
		if !Equal(ik, want[i].ik) || !Equal(pk, want[i].pk) {
			t.Fatalf("entry %d = (%s, %s), want (%s, %s)", i, ik, pk, want[i].ik, want[i].pk)
		}
	}
}

func TestDecodeCorrupt(t *testing.T) {
	for _, b := range [][]byte{
		nil,
		{0x99},
		{tagNumber, 1, 2},
		{tagString, 'a'},
		{tagArray, tagNumber},
	} {
		if _, _, err := Decode(b); !errors.Is(err, ErrCorrupt) {
			t.Fatalf("Decode(%x) err = %v, want ErrCorrupt", b, err)
		}
	}
}

func TestFromValue(t *testing.T) {
	k, err := FromValue([]any{1, "x", int64(3)})
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(k, Array(Number(1), String("x"), Number(3))) {
		t.Fatalf("FromValue = %s", k)
	}

	if _, err := FromValue(math.NaN()); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("NaN err = %v, want ErrInvalidKey", err)
	}
	if _, err := FromValue(true); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("bool err = %v, want ErrInvalidKey", err)
	}
	if _, err := FromValue(map[string]any{}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("map err = %v, want ErrInvalidKey", err)
	}
}

func TestInterface(t *testing.T) {
	got := Array(Number(1), String("a")).Interface().([]any)
	if len(got) != 2 || got[0] != 1.0 || got[1] != "a" {
		t.Fatalf("Interface() = %#v", got)
	}
	if (Key{}).Interface() != nil {
		t.Fatal("zero key should yield nil")
	}
}
