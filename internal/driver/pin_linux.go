//go:build linux

package driver

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// pinSelf locks the calling goroutine to its current OS thread and
// restricts that thread's scheduling affinity to cpu.
func pinSelf(cpu int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// orderedCPUs returns online CPU ids ordered to prefer distinct physical
// cores before SMT siblings, by reading each cpu's core_id from sysfs.
// CPUs sharing a core_id are pushed to the back, in round-robin
// across cores, so the first len(physical cores) entries are all distinct
// physical cores. Returns nil if sysfs topology is unavailable (e.g. in a
// container without /sys mounted), letting the caller fall back to
// unpinned execution.
func orderedCPUs() []int {
	const topoRoot = "/sys/devices/system/cpu"

	entries, err := os.ReadDir(topoRoot)
	if err != nil {
		return nil
	}

	coreOf := make(map[int]int)
	var cpus []int
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, "cpu") {
			continue
		}
		n, err := strconv.Atoi(name[3:])
		if err != nil {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(topoRoot, name, "topology", "core_id"))
		if err != nil {
			continue
		}
		coreID, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}
		cpus = append(cpus, n)
		coreOf[n] = coreID
	}
	if len(cpus) == 0 {
		return nil
	}

	byCore := make(map[int][]int)
	for _, cpu := range cpus {
		c := coreOf[cpu]
		byCore[c] = append(byCore[c], cpu)
	}

	coreIDs := make([]int, 0, len(byCore))
	for c := range byCore {
		coreIDs = append(coreIDs, c)
	}
	sort.Ints(coreIDs)
	for _, c := range coreIDs {
		sort.Ints(byCore[c])
	}

	var ordered []int
	for round := 0; ; round++ {
		added := false
		for _, c := range coreIDs {
			siblings := byCore[c]
			if round < len(siblings) {
				ordered = append(ordered, siblings[round])
				added = true
			}
		}
		if !added {
			break
		}
	}
	return ordered
}
