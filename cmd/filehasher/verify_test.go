package main

import (
	"bytes"
	"strings"
	"testing"

	"filehasher/internal/logging"
	"filehasher/internal/state"
)

func TestSetStatusLogsLedgerFailure(t *testing.T) {
	st, err := state.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	if err := st.UpsertDigest(state.DigestRow{Path: "/data/a.bin", Algorithm: "sha256", Hex: abcSHA256, Status: state.StatusComplete}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	v := &verifier{st: st, log: logging.NewWriter(&buf, "info", false)}

	v.setStatus("/data/a.bin", "sha256", state.StatusVerified, "")
	if buf.Len() != 0 {
		t.Fatalf("unexpected log: %s", buf.String())
	}
	rows, err := st.ListForPath("/data/a.bin")
	if err != nil || len(rows) != 1 || rows[0].Status != state.StatusVerified {
		t.Fatalf("rows %+v %v", rows, err)
	}

	_ = st.Close()
	v.setStatus("/data/a.bin", "sha256", state.StatusMismatch, "digest changed")
	if !strings.Contains(buf.String(), "ledger: ") {
		t.Fatalf("closed ledger write was not logged: %q", buf.String())
	}
}
