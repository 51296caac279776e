package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"hooked/internal/keys"
	"hooked/pkg/hooked"
)

func newWatchCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <store>",
		Short: "Subscribe to a store and write JSON records read from stdin",
		Long: `Subscribe to a store, open the database and then insert every JSON value
read from stdin, printing one line per notification: the wake-up on open
(count unchanged, no keys) and one per committed write.

Listeners live in this process only, so writes made by other hooked
processes are not reported.

  printf '{"name":"fig"}\n{"name":"lime"}\n' | hooked watch fruits`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			p := newPrinter(cmd.OutOrStdout())
			stop := opts.db.Subscribe(name, func(count uint64, ks []keys.Key) {
				_ = p.print(notification{name, count, ks})
			})
			defer stop()

			db, err := opts.open(cmd.Context())
			if err != nil {
				return err
			}
			return feed(cmd, db, name, cmd.InOrStdin())
		},
	}
	return cmd
}

func feed(cmd *cobra.Command, db *hooked.DB, name string, in io.Reader) error {
	ctx := cmd.Context()
	dec := json.NewDecoder(in)
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil
		}
		var v any
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
		if _, err := db.WriteOne(ctx, name, hooked.Put(v), true); err != nil {
			return fmt.Errorf("record %d: %w", n, err)
		}
	}
}
