package system

import "testing"

func TestDiskUsage(t *testing.T) {
	u, err := DiskUsage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if u.Total == 0 || u.Available > u.Total || u.Free > u.Total {
		t.Fatalf("implausible usage %+v", u)
	}
	if p := u.UsedPercent(); p < 0 || p > 100 {
		t.Fatalf("percent %v", p)
	}
	if _, _, err := LowSpace("/definitely/not/here", 90); err == nil {
		t.Fatal("missing path should error")
	}
}

func TestUsedPercentZeroTotal(t *testing.T) {
	if (Usage{}).UsedPercent() != 0 {
		t.Fatal("zero total should be 0%")
	}
}
