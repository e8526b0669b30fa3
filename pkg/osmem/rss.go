//go:build linux

// Package osmem reads a process's resident set size straight from
// /proc. It backs the non-managed AllocatorBridge fallback (pkg/alloc),
// standing in for heap usage when there is no managed collector to
// query directly.
package osmem

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrNoRSS = fmt.Errorf("osmem: no rss")
)

// PageSize returns the system memory page size in bytes. An env
// override eases testing on systems where the real page size would
// make assertions awkward.
func PageSize() int {
	if ps := os.Getenv("MICROBENCH_PAGE_SIZE"); ps != "" {
		if v, _ := strconv.Atoi(ps); v > 0 {
			return v
		}
	}
	return os.Getpagesize()
}

// ReadRSS returns the resident set size, in bytes, for pid. It prefers
// smaps_rollup (aggregated, accurate since kernel 4.14); if that file
// is unavailable it falls back to statm's resident page count.
func ReadRSS(pid int) (uint64, error) {
	if f, err := os.Open(fmt.Sprintf("/proc/%d/smaps_rollup", pid)); err == nil {
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if strings.HasPrefix(sc.Text(), "Rss:") {
				fs := strings.Fields(sc.Text())
				if len(fs) >= 2 {
					kb, err := strconv.ParseUint(fs[1], 10, 64)
					if err == nil {
						return kb * 1024, nil
					}
				}
			}
		}
	}

	if b, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pid)); err == nil {
		fs := strings.Fields(string(b))
		if len(fs) >= 2 {
			pages, err := strconv.ParseUint(fs[1], 10, 64)
			if err == nil {
				return pages * uint64(PageSize()), nil
			}
		}
	}

	return 0, ErrNoRSS
}
