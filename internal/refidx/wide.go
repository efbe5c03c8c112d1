//go:build wideindex

package refidx

// T is the reference-index type for this build.
type T = uint64

// Max is the largest reference count this build's index can address.
const Max = 1<<64 - 1

// Wide reports whether this build uses 64-bit reference indices.
const Wide = true
