package system

import (
	"fmt"
	"syscall"
)

// Usage is the capacity of the filesystem holding a path.
type Usage struct {
	Total     uint64
	Free      uint64 // blocks free to the whole system
	Available uint64 // blocks available to unprivileged users
}

// UsedPercent returns the used share of the filesystem in [0,100].
func (u Usage) UsedPercent() float64 {
	if u.Total == 0 {
		return 0
	}
	return float64(u.Total-u.Free) * 100 / float64(u.Total)
}

// DiskUsage reports capacity for the filesystem containing path.
func DiskUsage(path string) (Usage, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return Usage{}, fmt.Errorf("statfs %s: %w", path, err)
	}
	bs := uint64(stat.Bsize)
	return Usage{Total: stat.Blocks * bs, Free: stat.Bfree * bs, Available: stat.Bavail * bs}, nil
}

// LowSpace reports whether the filesystem holding path is at least
// thresholdPercent full.
func LowSpace(path string, thresholdPercent float64) (bool, Usage, error) {
	u, err := DiskUsage(path)
	if err != nil {
		return false, Usage{}, err
	}
	return u.UsedPercent() >= thresholdPercent, u, nil
}
