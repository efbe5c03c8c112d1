// Package kindex implements the k-mer inverted index: a mapping from each
// of the 65536 possible 8-mer keys to the sorted, deduplicated set of
// reference indices containing it, stored as a single flat reference-index
// array sliced by a per-key offset table — the CSR (compressed sparse row)
// layout the teacher's internal/sparse.Array256 uses for its
// popcount-compressed children, generalized here to a dense, non-popcount
// offset table since every one of the 65536 keys is a real, addressable
// bucket: sequential, cache-friendly bucket scans beat a map of slices at
// this scale.
package kindex

import (
	"github.com/raxtax/raxtax/internal/nucleotide"
	"github.com/raxtax/raxtax/internal/refidx"
)

// Index is the built, immutable k-mer inverted index.
type Index struct {
	// offset has nucleotide.NumKeys+1 entries; bucket k occupies
	// flat[offset[k]:offset[k+1]].
	offset []int64
	flat   []refidx.T
}

// Build constructs the index from the per-reference deduplicated key sets.
// keysPerRef[r] must be the ascending-sorted, deduplicated k-mer keys of
// reference r (see nucleotide.UniqueSorted); r is taken to be the slice
// index, so references must be presented in ascending index order.
//
// Two passes, the classic CSR construction: count bucket sizes, prefix-sum
// them into offsets, then fill. Because references are visited in
// ascending order in the second pass, every bucket ends up already sorted
// ascending by reference index without an explicit per-bucket sort.
func Build(keysPerRef [][]nucleotide.Key) *Index {
	counts := make([]int64, nucleotide.NumKeys+1)
	for _, keys := range keysPerRef {
		for _, k := range keys {
			counts[int(k)+1]++
		}
	}

	for i := 1; i <= nucleotide.NumKeys; i++ {
		counts[i] += counts[i-1]
	}
	offset := counts // counts[k] is now offset[k]

	total := offset[nucleotide.NumKeys]
	flat := make([]refidx.T, total)
	cursor := make([]int64, nucleotide.NumKeys)
	copy(cursor, offset[:nucleotide.NumKeys])

	for r, keys := range keysPerRef {
		for _, k := range keys {
			flat[cursor[k]] = refidx.T(r)
			cursor[k]++
		}
	}

	return &Index{offset: offset, flat: flat}
}

// Bucket returns the sorted, deduplicated reference indices containing key
// k. The returned slice aliases the index's storage and must not be
// modified.
func (idx *Index) Bucket(k nucleotide.Key) []refidx.T {
	return idx.flat[idx.offset[k]:idx.offset[int(k)+1]]
}

// Accumulate computes the dense hit-count vector for a query's unique key
// set into H, which must already be zeroed and have one entry per
// reference: H[r] ends up equal to the number of the query's keys whose
// bucket contains r. No allocation occurs here; H is caller-owned scratch,
// reused across queries on one worker.
func (idx *Index) Accumulate(keys []nucleotide.Key, H []uint32) {
	for _, k := range keys {
		for _, r := range idx.Bucket(k) {
			H[r]++
		}
	}
}
