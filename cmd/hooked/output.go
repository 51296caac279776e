package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"hooked/internal/keys"
	"hooked/pkg/hooked"
)

// printer writes JSON: indented for terminals, one document per line
// otherwise.
type printer struct {
	w      io.Writer
	indent bool
}

func newPrinter(w io.Writer) *printer {
	p := &printer{w: w}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.indent = true
	}
	return p
}

func (p *printer) print(v any) error {
	enc := json.NewEncoder(p.w)
	if p.indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}

// printResult prints items one per line, so the output of scan and get
// can be piped into line-oriented tools.
func (p *printer) printResult(res hooked.Result) error {
	switch res.Kind {
	case hooked.KindNone:
		return p.print(nil)
	case hooked.KindOne:
		return p.print(res.Shape())
	}
	for _, it := range res.Items {
		var v any = it.Value
		if res.WithKey {
			v = it
		}
		if err := p.print(v); err != nil {
			return err
		}
	}
	return nil
}

// parseKey reads a key from the command line. JSON numbers, strings and
// arrays are taken as such; anything that is not JSON is a string key.
func parseKey(s string) (keys.Key, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return keys.String(s), nil
	}
	k, err := keys.FromValue(v)
	if err != nil {
		return keys.Key{}, fmt.Errorf("key %s: %w", s, err)
	}
	return k, nil
}

// parseValue reads a record from the command line. Input that is not JSON
// is stored as a string.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}
