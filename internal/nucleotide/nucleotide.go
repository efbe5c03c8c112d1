// Package nucleotide translates ASCII DNA sequences into the 2-bit alphabet
// and emits the stream of overlapping k-mers used to index and score
// reference and query sequences.
package nucleotide

import "github.com/raxtax/raxtax/internal/bitset"

// K is the k-mer length. Fixed at 8, giving 16-bit keys and 65536 possible
// k-mers, per the data model.
const K = 8

// NumKeys is the number of distinct k-mer keys (2^(2*K)).
const NumKeys = 1 << (2 * K)

// Key is a k-mer encoded as the concatenation of K 2-bit nucleotide codes,
// in reading order, packed into the low 2*K bits.
type Key = uint16

const (
	baseA = 0b00
	baseC = 0b01
	baseG = 0b10
	baseT = 0b11
)

// code maps an ASCII byte to its 2-bit nucleotide code. ok is false for any
// ambiguous/degenerate symbol (anything other than A/C/G/T/U, case
// insensitive).
func code(b byte) (c byte, ok bool) {
	switch b {
	case 'A', 'a':
		return baseA, true
	case 'C', 'c':
		return baseC, true
	case 'G', 'g':
		return baseG, true
	case 'T', 't', 'U', 'u':
		return baseT, true
	default:
		return 0, false
	}
}

const keyMask = Key(NumKeys - 1)

// Keys returns the ordered stream of overlapping K-mer keys in seq, left to
// right. Any ambiguous base resets the running window: no k-mer spanning an
// ambiguous base is emitted.
func Keys(seq []byte) []Key {
	if len(seq) < K {
		return nil
	}

	keys := make([]Key, 0, len(seq)-K+1)

	var window Key
	var run int // number of consecutive unambiguous bases folded into window

	for _, b := range seq {
		c, ok := code(b)
		if !ok {
			window = 0
			run = 0
			continue
		}

		window = (window << 2) | Key(c)
		window &= keyMask
		run++

		if run >= K {
			keys = append(keys, window)
		}
	}

	return keys
}

// ScratchWords is the word count a UniqueSorted scratch bitset needs to
// cover every possible key without reallocating.
const ScratchWords = NumKeys / 64

// NewScratch allocates a scratch bitset sized for UniqueSorted.
func NewScratch() bitset.BitSet {
	return make(bitset.BitSet, ScratchWords)
}

// UniqueSorted deduplicates a stream of keys, returning them in ascending
// order. References require dedup before index insertion; queries require
// it because scoring uses set membership.
//
// scratch must have at least ScratchWords words (see NewScratch); it is
// reset in place and reused across calls, which is how refdb.Load and
// refdb.LoadQueries avoid allocating a new bitset for every record. A fixed
// NumKeys-bit bitset is used rather than a map: it is only 8KiB, and
// iterating its set bits in ascending order hands back sorted, deduplicated
// keys for free instead of requiring a separate sort — the same trick the
// teacher's internal/bitset uses to hand back ordered bit positions.
func UniqueSorted(keys []Key, scratch bitset.BitSet) []Key {
	scratch.Reset()

	for _, k := range keys {
		scratch.Set(uint(k))
	}

	out := make([]Key, 0, scratch.Count())
	for u := range scratch.All() {
		out = append(out, Key(u))
	}
	return out
}
