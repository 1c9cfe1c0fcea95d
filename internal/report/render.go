package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
)

// WriteJSON encodes results as an indented JSON array.
func WriteJSON(w io.Writer, results []*HashResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// WriteTable prints a human summary of each result.
func WriteTable(w io.Writer, results []*HashResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "File:\t%s\n", r.Name)
		fmt.Fprintf(tw, "Type:\t%s (%s)\n", TypeLabel(r.Type), r.Type)
		fmt.Fprintf(tw, "Size:\t%s (%d bytes)\n", FormatBytes(r.Size), r.Size)
		fmt.Fprintf(tw, "Took:\t%s\n", FormatDuration(r.Duration))
		for _, e := range r.Hashes {
			fmt.Fprintf(tw, "%s:\t%s\n", e.Algorithm, e.Hex)
		}
		for _, k := range sortedKeys(r.Failed) {
			fmt.Fprintf(tw, "%s:\tFAILED: %s\n", k, r.Failed[k])
		}
	}
	return tw.Flush()
}

// WriteLines prints coreutils-style "<hex>  <name>" lines. When more than
// one algorithm is present each line is prefixed with the algorithm key so
// the output stays unambiguous.
func WriteLines(w io.Writer, results []*HashResult) error {
	for _, r := range results {
		for _, e := range r.Hashes {
			var err error
			if len(r.Hashes) > 1 {
				_, err = fmt.Fprintf(w, "%s %s  %s\n", e.Algorithm.Key(), e.Hex, r.Name)
			} else {
				_, err = fmt.Fprintf(w, "%s  %s\n", e.Hex, r.Name)
			}
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Short abbreviates a long hex digest for narrow displays.
func Short(hexSum string, n int) string {
	if n <= 0 || len(hexSum) <= n {
		return hexSum
	}
	return hexSum[:n] + "…"
}

// Bar renders a fixed-width ASCII progress bar for percent in [0,100].
func Bar(percent float64, width int) string {
	if width <= 0 {
		width = 30
	}
	ratio := percent / 100
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	filled := int(ratio * float64(width))
	b := strings.Repeat("=", filled)
	if filled < width {
		b += ">" + strings.Repeat(" ", width-filled-1)
	}
	return "[" + b + "]"
}
