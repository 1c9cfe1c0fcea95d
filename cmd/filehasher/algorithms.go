package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	json "github.com/goccy/go-json"

	"filehasher/internal/digest"
)

func handleAlgorithms(ctx context.Context, args []string) error {
	fs, g := newFlagSet("algorithms")
	jsonOut := fs.Bool("json", false, "print JSON")
	if ok, err := parse(fs, args); !ok || err != nil {
		return err
	}
	cfg, _, err := g.load()
	if err != nil {
		return err
	}
	defaults := map[digest.Algorithm]bool{}
	for _, a := range cfg.Hashing.DefaultAlgorithms() {
		defaults[a] = true
	}
	type row struct {
		Key      string `json:"key"`
		Name     string `json:"name"`
		Bits     int    `json:"bits"`
		Extended bool   `json:"extended"`
		Default  bool   `json:"default"`
	}
	var rows []row
	for _, a := range digest.All() {
		rows = append(rows, row{Key: a.Key(), Name: a.String(), Bits: a.Size() * 8, Extended: a.Extended(), Default: defaults[a]})
	}
	if *jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tBITS\tEXTENDED\tDEFAULT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%v\t%v\n", r.Key, r.Name, r.Bits, r.Extended, r.Default)
	}
	return tw.Flush()
}
