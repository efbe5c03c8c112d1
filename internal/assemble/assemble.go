// Package assemble turns scored references into the textual output
// records: the confidence floor filter, the fallback line when nothing
// survives it, and the primary/interleaved output formats.
package assemble

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/raxtax/raxtax/internal/refdb"
	"github.com/raxtax/raxtax/internal/refidx"
	"github.com/raxtax/raxtax/internal/score"
	"github.com/raxtax/raxtax/internal/taxonomy"
)

// FloorExponent is the default F in the w(r) < 10^(-F) output filter.
const FloorExponent = 2

// Record is one output line: one reference's lineage, per-rank
// confidences, and the query's two signals.
type Record struct {
	Lineage     []string
	Confidences []float64
	Local       float64
	Global      float64
	W           float64
}

// Result is everything the assembler produces for one query.
type Result struct {
	QueryLabel string
	Records    []Record
	Fallback   bool // true when no reference passed the floor
}

// Build filters and sorts a query's scored references into a Result,
// applying the exact-match fast path and the no-hit fallback rule.
// floorExponent is F; pass assemble.FloorExponent for the default.
func Build(tree *taxonomy.Tree, refs []refdb.Reference, q refdb.Query, summary score.Summary, scratch *score.Scratch, floorExponent int) Result {
	if summary.Exact {
		leaf := refs[summary.ExactRef].Leaf
		lineage := score.Lineage(tree, leaf)
		confidences := make([]float64, len(lineage))
		for i := range confidences {
			confidences[i] = 1.0
		}
		return Result{
			QueryLabel: q.Label,
			Records: []Record{{
				Lineage:     lineage,
				Confidences: confidences,
				Local:       1.0,
				Global:      1.0,
				W:           1.0,
			}},
		}
	}

	floor := math.Pow(10, -float64(floorExponent))
	cache := map[taxonomy.NodeID]float64{}

	type candidate struct {
		ref refidx.T
		w   float64
	}
	var passing []candidate
	bestRef := refidx.T(0)
	bestW := -1.0
	anyScored := false

	for r := 0; r < len(scratch.W); r++ {
		w := scratch.W[r]
		if w > bestW {
			bestW = w
			bestRef = refidx.T(r)
		}
		if scratch.H[r] > 0 {
			anyScored = true
		}
		if w >= floor {
			passing = append(passing, candidate{ref: refidx.T(r), w: w})
		}
	}

	result := Result{QueryLabel: q.Label}

	if len(passing) == 0 {
		result.Fallback = true
		leaf := refs[bestRef].Leaf
		lineage := score.Lineage(tree, leaf)
		confidences, local := score.Confidence(tree, scratch.W, leaf, cache)
		for i := range confidences {
			if confidences[i] < floor {
				confidences[i] = floor
			}
		}
		if local < floor {
			local = floor
		}
		w := bestW
		if !anyScored || w < floor {
			w = floor
		}
		global := summary.Global
		if global < floor {
			global = floor
		}
		result.Records = []Record{{
			Lineage:     lineage,
			Confidences: confidences,
			Local:       local,
			Global:      global,
			W:           w,
		}}
		return result
	}

	sort.Slice(passing, func(i, j int) bool {
		if passing[i].w != passing[j].w {
			return passing[i].w > passing[j].w
		}
		return passing[i].ref < passing[j].ref
	})

	records := make([]Record, 0, len(passing))
	for _, c := range passing {
		leaf := refs[c.ref].Leaf
		lineage := score.Lineage(tree, leaf)
		confidences, local := score.Confidence(tree, scratch.W, leaf, cache)
		records = append(records, Record{
			Lineage:     lineage,
			Confidences: confidences,
			Local:       local,
			Global:      summary.Global,
			W:           c.w,
		})
	}
	result.Records = records
	return result
}

// WritePrimary renders a Result in the primary raxtax.out format: one
// tab-separated line per record.
func WritePrimary(sb *strings.Builder, res Result) {
	for _, rec := range res.Records {
		sb.WriteString(res.QueryLabel)
		sb.WriteByte('\t')
		sb.WriteString(strings.Join(rec.Lineage, ","))
		sb.WriteByte('\t')
		sb.WriteString(joinFloats(rec.Confidences))
		sb.WriteByte('\t')
		sb.WriteString(formatFloat(rec.Local))
		sb.WriteByte('\t')
		sb.WriteString(formatFloat(rec.Global))
		sb.WriteByte('\n')
	}
}

// WriteTSV renders a Result in the optional interleaved format: rank/label/
// confidence alternations, then the signals and the raw query sequence.
func WriteTSV(sb *strings.Builder, res Result, seq []byte) {
	for _, rec := range res.Records {
		sb.WriteString(res.QueryLabel)
		for i, label := range rec.Lineage {
			fmt.Fprintf(sb, "\t%d\t%s\t%s", i+1, label, formatFloat(rec.Confidences[i]))
		}
		sb.WriteByte('\t')
		sb.WriteString(formatFloat(rec.Local))
		sb.WriteByte('\t')
		sb.WriteString(formatFloat(rec.Global))
		sb.WriteByte('\t')
		sb.Write(seq)
		sb.WriteByte('\n')
	}
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = formatFloat(v)
	}
	return strings.Join(parts, ",")
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
