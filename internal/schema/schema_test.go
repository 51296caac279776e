package schema

import (
	"errors"
	"strings"
	"testing"
)

func TestStoreValidate(t *testing.T) {
	tests := []struct {
		name    string
		store   Store
		wantErr string
	}{
		{"out-of-line", Store{Name: "plain"}, ""},
		{"auto increment", Store{Name: "seq", AutoIncrement: true}, ""},
		{"inline", Store{Name: "fruits", KeyPath: []string{"id"}, AutoIncrement: true}, ""},
		{"compound", Store{Name: "pairs", KeyPath: []string{"a", "b.c"}}, ""},
		{"empty name", Store{}, "store name is empty"},
		{"reserved name", Store{Name: "_meta"}, "reserved"},
		{"bad path", Store{Name: "x", KeyPath: []string{"a..b"}}, "malformed field path"},
		{"compound autoinc", Store{Name: "x", KeyPath: []string{"a", "b"}, AutoIncrement: true}, "single-field key path"},
		{"index no path", Store{Name: "x", Indexes: []Index{{Name: "i"}}}, "key path is empty"},
		{"index no name", Store{Name: "x", Indexes: []Index{{KeyPath: []string{"a"}}}}, "index name is empty"},
		{"duplicate index", Store{Name: "x", Indexes: []Index{
			{Name: "i", KeyPath: []string{"a"}},
			{Name: "i", KeyPath: []string{"b"}},
		}}, "duplicate index"},
		{"multi-entry", Store{Name: "x", Indexes: []Index{{Name: "tags", KeyPath: []string{"tags"}, MultiEntry: true}}}, ""},
		{"multi-entry compound", Store{Name: "x", Indexes: []Index{
			{Name: "i", KeyPath: []string{"a", "b"}, MultiEntry: true},
		}}, "multi_entry needs a single key path"},
		{"seed without keys", Store{Name: "x", Data: []any{"a"}}, "seed data"},
		{"seed with generator", Store{Name: "x", AutoIncrement: true, Data: []any{"a"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.store.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("err = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDuplicateStores(t *testing.T) {
	err := Validate([]Store{{Name: "a"}, {Name: "a"}})
	if err == nil || !strings.Contains(err.Error(), `duplicate store "a"`) {
		t.Fatalf("err = %v", err)
	}
}

func TestSameDiscipline(t *testing.T) {
	a := Store{Name: "s", KeyPath: []string{"id"}, AutoIncrement: true}
	b := a
	b.Indexes = []Index{{Name: "i", KeyPath: []string{"x"}}}
	if !a.SameDiscipline(b) {
		t.Fatal("indexes do not change the key discipline")
	}
	b.KeyPath = []string{"other"}
	if a.SameDiscipline(b) {
		t.Fatal("different key path should differ")
	}
}

func TestStoreHelpers(t *testing.T) {
	s := Store{Name: "s", KeyPath: []string{"a", "b"}, Indexes: []Index{{Name: "by_x", KeyPath: []string{"x"}}}}
	if !s.Inline() || !s.Compound() {
		t.Fatal("two-field key path is inline and compound")
	}
	if _, ok := s.Index("by_x"); !ok {
		t.Fatal("Index(by_x) not found")
	}
	if _, ok := s.Index("nope"); ok {
		t.Fatal("Index(nope) should be missing")
	}
}

func TestFormatPath(t *testing.T) {
	if got := FormatPath([]string{"id"}); got != "id" {
		t.Errorf("single path = %q", got)
	}
	if got := FormatPath([]string{"a", "b.c"}); got != "[a, b.c]" {
		t.Errorf("compound path = %q", got)
	}
}
