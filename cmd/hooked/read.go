package main

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cobra"

	"hooked/internal/keys"
	"hooked/internal/schema"
	"hooked/internal/store"
	"hooked/pkg/hooked"
)

// rangeFlags are shared by scan and del.
type rangeFlags struct {
	Lower, Upper         string
	LowerOpen, UpperOpen bool
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Lower, "lower", "", "lower bound key (JSON)")
	cmd.Flags().StringVar(&f.Upper, "upper", "", "upper bound key (JSON)")
	cmd.Flags().BoolVar(&f.LowerOpen, "lower-open", false, "exclude the lower bound")
	cmd.Flags().BoolVar(&f.UpperOpen, "upper-open", false, "exclude the upper bound")
}

// build returns nil when neither bound is set.
func (f *rangeFlags) build() (*keys.Range, error) {
	var lower, upper keys.Key
	var err error
	if f.Lower != "" {
		if lower, err = parseKey(f.Lower); err != nil {
			return nil, err
		}
	}
	if f.Upper != "" {
		if upper, err = parseKey(f.Upper); err != nil {
			return nil, err
		}
	}
	switch {
	case lower.Valid() && upper.Valid():
		return keys.Bound(lower, upper, f.LowerOpen, f.UpperOpen)
	case lower.Valid():
		return keys.LowerBound(lower, f.LowerOpen), nil
	case upper.Valid():
		return keys.UpperBound(upper, f.UpperOpen), nil
	}
	return nil, nil
}

type storeInfo struct {
	Name          string         `json:"name"`
	KeyPath       []string       `json:"key_path,omitempty"`
	AutoIncrement bool           `json:"auto_increment,omitempty"`
	Indexes       []schema.Index `json:"indexes,omitempty"`
}

func newStoresCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List object stores with their key discipline and indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			schemas, err := db.Schemas()
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			for _, s := range schemas {
				if err := p.print(storeInfo{s.Name, s.KeyPath, s.AutoIncrement, s.Indexes}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newGetCommand(opts *rootOptions) *cobra.Command {
	var index string
	var withKey bool

	cmd := &cobra.Command{
		Use:   "get <store> <key>",
		Short: "Look up one record by primary key or index key",
		Long: `Look up one record by primary key, or by index key with --index.

Keys are JSON: 1, "abc" and [1, "abc"] are a number, a string and a
compound key. Anything that does not parse as JSON is a string.

Prints null when there is no such record.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKey(args[1])
			if err != nil {
				return err
			}
			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := db.Read(cmd.Context(), args[0], &hooked.Query{Key: k, Index: index, ReturnWithKey: withKey})
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout()).printResult(res)
		},
	}
	cmd.Flags().StringVar(&index, "index", "", "look the key up in this index")
	cmd.Flags().BoolVar(&withKey, "keys", false, "print {key, value} instead of the bare value")
	return cmd
}

func newScanCommand(opts *rootOptions) *cobra.Command {
	var (
		rf        rangeFlags
		index     string
		direction string
		limit     int
		withKey   bool
		where     []string
	)

	cmd := &cobra.Command{
		Use:   "scan <store>",
		Short: "Walk a store or index in key order",
		Long: `Walk a store, or an index with --index, in key order.

  hooked scan fruits --lower 2 --upper 5 --upper-open
  hooked scan fruits --index by_color --direction prevunique
  hooked scan fruits --where color=\"red\" --limit 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rf.build()
			if err != nil {
				return err
			}
			dir, err := store.ParseDirection(direction)
			if err != nil {
				return err
			}
			filter, err := parseWhere(where)
			if err != nil {
				return err
			}
			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			res, err := db.Read(cmd.Context(), args[0], &hooked.Query{
				Range:         r,
				Index:         index,
				Direction:     dir,
				Filter:        filter,
				ReturnWithKey: withKey,
				Limit:         limit,
			})
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout()).printResult(res)
		},
	}
	rf.register(cmd)
	cmd.Flags().StringVar(&index, "index", "", "walk this index instead of the primary keys")
	cmd.Flags().StringVar(&direction, "direction", "next", "next, nextunique, prev or prevunique")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many records (0 = no limit)")
	cmd.Flags().BoolVar(&withKey, "keys", false, "print {key, value} instead of bare values")
	cmd.Flags().StringArrayVar(&where, "where", nil, "only records whose top-level field equals a JSON value (field=value, repeatable)")
	return cmd
}

// parseWhere turns field=value pairs into a filter matching records whose
// fields all equal the given values.
func parseWhere(clauses []string) (func(any) bool, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	want := make(map[string]any, len(clauses))
	for _, c := range clauses {
		field, raw, ok := strings.Cut(c, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("--where %q: want field=value", c)
		}
		want[field] = parseValue(raw)
	}
	return func(v any) bool {
		m, ok := v.(map[string]any)
		if !ok {
			return false
		}
		for field, val := range want {
			if !reflect.DeepEqual(m[field], val) {
				return false
			}
		}
		return true
	}, nil
}

func newInfoCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the database path, instance id, schema version and stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			info, err := db.Info()
			if err != nil {
				return err
			}
			return newPrinter(cmd.OutOrStdout()).print(info)
		},
	}
}
