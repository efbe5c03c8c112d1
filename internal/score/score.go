// Package score implements the SINTAX-inspired likelihood and confidence
// engine: per-reference Jaccard-like scores, reporting weights, and the
// taxonomy-tree aggregation that yields per-rank confidences and the
// local/global signals.
package score

import (
	"math"

	"github.com/raxtax/raxtax/internal/kindex"
	"github.com/raxtax/raxtax/internal/refdb"
	"github.com/raxtax/raxtax/internal/refidx"
	"github.com/raxtax/raxtax/internal/taxonomy"
)

// Scratch holds the per-worker buffers reused across queries: the dense
// hit-count vector H, and the per-reference score and weight vectors S and
// W. One Scratch belongs to exactly one worker goroutine.
type Scratch struct {
	H []uint32
	S []float64
	W []float64
}

// NewScratch allocates a Scratch sized for a database of numRefs references.
func NewScratch(numRefs int) *Scratch {
	return &Scratch{
		H: make([]uint32, numRefs),
		S: make([]float64, numRefs),
		W: make([]float64, numRefs),
	}
}

func (sc *Scratch) reset() {
	for i := range sc.H {
		sc.H[i] = 0
	}
	for i := range sc.S {
		sc.S[i] = 0
		sc.W[i] = 0
	}
}

// Summary holds the query-wide results of Score that the assembler needs:
// whether the exact-match fast path applies, and the global signal inputs.
type Summary struct {
	// Exact is true when the query's raw sequence matched exactly one
	// reference and the fast path applies.
	Exact    bool
	ExactRef refidx.T

	SMax   float64 // max_r s(r), 0 if no reference scored
	SumS   float64 // Σ_r s(r), ascending reference-index order
	Global float64 // s_max / Σs(r), clamped to [0, 1]
}

// Score computes H, S and W for one query into scratch and returns the
// query-wide Summary. refs[i].Keys must be the deduplicated, ascending key
// set used to build idx; |refs| must equal len(scratch.H).
//
// When skipExact is set, every reference that is a byte-for-byte exact
// match of the query is excluded from H entirely.
func Score(idx *kindex.Index, refs []refdb.Reference, set *refdb.Set, q refdb.Query, skipExact bool, scratch *Scratch) Summary {
	scratch.reset()

	exactMatches := set.ExactMatches(q.Sequence)

	if skipExact {
		idx.Accumulate(q.Keys, scratch.H)
		for _, r := range exactMatches {
			scratch.H[r] = 0
		}
	} else {
		idx.Accumulate(q.Keys, scratch.H)
	}

	lenQ := float64(len(q.Keys))

	var sMax, sumS float64
	for r := 0; r < len(scratch.H); r++ {
		h := scratch.H[r]
		if h == 0 {
			continue
		}
		denom := lenQ + float64(len(refs[r].Keys)) - float64(h)
		if denom <= 0 {
			continue
		}
		s := float64(h) / denom
		scratch.S[r] = s
		sumS += s
		if s > sMax {
			sMax = s
		}
	}

	if sMax > 0 {
		for r := 0; r < len(scratch.S); r++ {
			s := scratch.S[r]
			if s == 0 {
				continue
			}
			scratch.W[r] = s * (s / sMax)
		}
	}

	summary := Summary{SMax: sMax, SumS: sumS}
	if sumS > 0 {
		g := sMax / sumS
		if g > 1 {
			g = 1
		}
		summary.Global = g
	}

	if !skipExact && len(exactMatches) == 1 {
		summary.Exact = true
		summary.ExactRef = exactMatches[0]
	}

	return summary
}

// Confidence walks the taxonomy tree from the root to leaf and returns the
// per-rank confidences (one per rank along the path, root excluded) and the
// local signal.
//
// cache memoizes the reporting-weight sum of every tree node visited so far
// in this query; callers should share one cache across every Confidence
// call for a given query (several candidate leaves usually share
// ancestors) and discard it between queries.
func Confidence(tree *taxonomy.Tree, W []float64, leaf taxonomy.NodeID, cache map[taxonomy.NodeID]float64) (confidences []float64, local float64) {
	path := tree.AncestorPath(leaf)
	if len(path) <= 1 {
		return nil, 0
	}

	confidences = make([]float64, len(path)-1)
	logSum := 0.0

	for d := 1; d < len(path); d++ {
		parent := path[d-1]
		children := tree.Children(parent)

		var childSum float64
		var chosen float64
		for _, c := range children {
			w := weightSum(tree, W, c, cache)
			childSum += w
			if c == path[d] {
				chosen = w
			}
		}

		var conf float64
		if childSum > 0 {
			conf = chosen / childSum
		}
		confidences[d-1] = conf

		if conf > 0 {
			logSum += math.Log(conf)
		} else {
			logSum = math.Inf(-1)
		}
	}

	n := float64(len(confidences))
	if math.IsInf(logSum, -1) {
		local = 0
	} else {
		local = math.Exp(logSum / n)
	}
	return confidences, local
}

func weightSum(tree *taxonomy.Tree, W []float64, node taxonomy.NodeID, cache map[taxonomy.NodeID]float64) float64 {
	if v, ok := cache[node]; ok {
		return v
	}
	var sum float64
	for _, r := range tree.RefSet(node) {
		sum += W[r]
	}
	cache[node] = sum
	return sum
}

// Lineage returns the ordered labels from root to leaf (root excluded),
// matching the rank order of Confidence's returned slice.
func Lineage(tree *taxonomy.Tree, leaf taxonomy.NodeID) []string {
	path := tree.AncestorPath(leaf)
	if len(path) <= 1 {
		return nil
	}
	out := make([]string, len(path)-1)
	for i, n := range path[1:] {
		out[i] = tree.Label(n)
	}
	return out
}
