package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"

	"filehasher/internal/digest"
	ferrors "filehasher/internal/errors"
	"filehasher/internal/logging"
	"filehasher/internal/report"
	"filehasher/internal/state"
)

type historyRow struct {
	Path      string    `json:"path"`
	Algorithm string    `json:"algorithm"`
	Hex       string    `json:"hex"`
	Size      int64     `json:"size"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
	LastError string    `json:"last_error,omitempty"`
}

func handleHistory(ctx context.Context, args []string) error {
	fs, g := newFlagSet("history")
	match := fs.StringP("match", "m", "", "fuzzy filter on file paths")
	algName := fs.StringP("algorithm", "a", "", "only show this algorithm")
	hexQ := fs.String("hex", "", "only show rows with this digest")
	onlyErrors := fs.Bool("only-errors", false, "show only mismatched, missing or errored rows")
	jsonOut := fs.Bool("json", false, "print JSON")
	full := fs.Bool("full", false, "print full digests")
	if ok, err := parse(fs, args); !ok || err != nil {
		return err
	}
	cfg, _, err := g.load()
	if err != nil {
		return err
	}
	st, err := openLedger(cfg)
	if err != nil {
		return err
	}
	if st == nil {
		return errors.New("no ledger: set general.data_root in the config")
	}
	defer func() { _ = st.Close() }()

	var rows []state.DigestRow
	if *hexQ != "" {
		rows, err = st.FindByHex(strings.ToLower(strings.TrimSpace(*hexQ)))
	} else {
		rows, err = st.ListDigests()
	}
	if err != nil {
		return ferrors.DatabaseError(err)
	}
	var key string
	if *algName != "" {
		a, err := digest.Parse(*algName)
		if err != nil {
			return ferrors.Wrap("", err)
		}
		key = a.Key()
	}
	filtered := rows[:0]
	for _, r := range rows {
		if key != "" && r.Algorithm != key {
			continue
		}
		if *onlyErrors && (r.Status == state.StatusComplete || r.Status == state.StatusVerified) {
			continue
		}
		filtered = append(filtered, r)
	}
	rows = state.MatchPaths(filtered, *match)

	if *jsonOut {
		out := make([]historyRow, 0, len(rows))
		for _, r := range rows {
			out = append(out, historyRow{Path: r.Path, Algorithm: r.Algorithm, Hex: r.Hex, Size: r.Size, Status: r.Status, UpdatedAt: time.Unix(r.UpdatedAt, 0).UTC(), LastError: r.LastError})
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tALGORITHM\tDIGEST\tSIZE\tUPDATED\tPATH")
	for _, r := range rows {
		h := r.Hex
		if !*full {
			h = report.Short(h, 16)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Status, r.Algorithm, h, report.FormatBytes(r.Size), humanize.Time(time.Unix(r.UpdatedAt, 0)), logging.SanitizePath(r.Path))
	}
	return tw.Flush()
}
