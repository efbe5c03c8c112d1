//go:build !linux

package driver

// pinSelf is a no-op outside Linux; thread pinning is best-effort.
func pinSelf(cpu int) error { return nil }

// orderedCPUs always returns nil outside Linux: no portable topology
// source exists, so pinning silently degrades to unpinned execution.
func orderedCPUs() []int { return nil }
