package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"hooked/internal/keys"
	"hooked/pkg/hooked"
)

// notification is what watch and put --watch print for each listener call.
type notification struct {
	Store string     `json:"store"`
	Count uint64     `json:"count"`
	Keys  []keys.Key `json:"keys"`
}

func newPutCommand(opts *rootOptions) *cobra.Command {
	var (
		key      string
		replace  bool
		noNotify bool
		watch    bool
	)

	cmd := &cobra.Command{
		Use:   "put <store> <value>",
		Short: "Insert, merge or replace a record",
		Long: `Insert, merge or replace a record. The value is JSON; anything that does
not parse as JSON is stored as a string.

Without --key the record is inserted and keyed the way the store assigns
keys. With --key it is shallow-merged into the existing record, or written
as is with --replace.

  hooked put fruits '{"name":"kiwi","color":"green"}'
  hooked put fruits --key 3 '{"color":"black"}'
  hooked put settings --key theme --replace '"dark"'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := hooked.Put(parseValue(args[1]))
			if key != "" {
				k, err := parseKey(key)
				if err != nil {
					return err
				}
				d.Key, d.Replace = k, replace
			}
			p := newPrinter(cmd.OutOrStdout())
			if watch {
				stop := opts.db.Subscribe(args[0], func(count uint64, ks []keys.Key) {
					_ = p.print(notification{args[0], count, ks})
				})
				defer stop()
			}
			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			k, err := db.WriteOne(cmd.Context(), args[0], d, !noNotify)
			if err != nil {
				return err
			}
			return p.print(k)
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "key of the record to merge into or replace (JSON)")
	cmd.Flags().BoolVar(&replace, "replace", false, "overwrite instead of merging")
	cmd.Flags().BoolVar(&noNotify, "no-notify", false, "do not notify listeners")
	cmd.Flags().BoolVar(&watch, "watch", false, "print the notifications this write triggers")
	return cmd
}

func newDelCommand(opts *rootOptions) *cobra.Command {
	var rf rangeFlags

	cmd := &cobra.Command{
		Use:   "del <store> [key]",
		Short: "Delete a record by key, or every record in a key range",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := rf.build()
			if err != nil {
				return err
			}
			var d hooked.Directive
			switch {
			case len(args) == 2 && r != nil:
				return errors.New("give a key or a range, not both")
			case len(args) == 2:
				k, err := parseKey(args[1])
				if err != nil {
					return err
				}
				d = hooked.Delete(k)
			case r != nil:
				d = hooked.DeleteRange(r)
			default:
				return errors.New("del needs a key or --lower/--upper")
			}
			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			_, err = db.WriteOne(cmd.Context(), args[0], d, true)
			return err
		},
	}
	rf.register(cmd)
	return cmd
}

func newImportCommand(opts *rootOptions) *cobra.Command {
	var replaceStore bool

	cmd := &cobra.Command{
		Use:   "import <store> <file>",
		Short: "Insert a YAML or JSON list of records in one transaction",
		Long: `Insert a YAML or JSON list of records in one transaction. Use - to read
from stdin. Records are keyed the way the store assigns keys; either all
of them are written or none is.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := readRecords(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			ds := make([]hooked.Directive, 0, len(items)+1)
			if replaceStore {
				ds = append(ds, hooked.DeleteRange(&keys.Range{}))
			}
			for _, it := range items {
				ds = append(ds, hooked.Put(it))
			}
			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			ks, err := db.WriteMany(cmd.Context(), args[0], ds, true)
			if err != nil {
				return err
			}
			if replaceStore {
				ks = ks[1:]
			}
			return newPrinter(cmd.OutOrStdout()).print(map[string]any{"imported": len(ks), "keys": ks})
		},
	}
	cmd.Flags().BoolVar(&replaceStore, "clear", false, "delete every existing record first")
	return cmd
}

// readRecords decodes a YAML sequence; JSON arrays parse as YAML too.
func readRecords(stdin io.Reader, path string) ([]any, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	var items []any
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing records: %w", err)
	}
	return items, nil
}
