// Package refdb assembles reference and query records from parsed FASTA
// data: it wires together internal/lineage, internal/nucleotide and
// internal/taxonomy, and is where the soft warnings and fatal errors that
// originate from loading the database are raised.
package refdb

import (
	"fmt"
	"io"

	"github.com/raxtax/raxtax/internal/fastaio"
	"github.com/raxtax/raxtax/internal/lineage"
	"github.com/raxtax/raxtax/internal/nucleotide"
	"github.com/raxtax/raxtax/internal/raxerr"
	"github.com/raxtax/raxtax/internal/refidx"
	"github.com/raxtax/raxtax/internal/rlog"
	"github.com/raxtax/raxtax/internal/taxonomy"
)

// Reference is one loaded reference record.
type Reference struct {
	Label    string          // original FASTA identifier, unparsed
	Lineage  []string        // parsed tax= tuple
	Leaf     taxonomy.NodeID // terminal taxonomy node
	Sequence []byte
	Keys     []nucleotide.Key // ascending, deduplicated
}

// Query is one query record to classify.
type Query struct {
	Label    string
	Sequence []byte
	Keys     []nucleotide.Key // ascending, deduplicated
}

// Set is the fully loaded, indexed reference database.
type Set struct {
	Tree *taxonomy.Tree
	Refs []Reference

	exactIndex map[string]refidx.T
	allBySeq   map[string][]refidx.T
}

// LookupExact returns the single reference whose raw sequence matches seq
// byte-for-byte, if exactly one such reference exists. If multiple
// references match exactly, the fast path is skipped.
func (s *Set) LookupExact(seq []byte) (refidx.T, bool) {
	r, ok := s.exactIndex[string(seq)]
	return r, ok
}

// ExactMatches returns every reference whose raw sequence matches seq
// byte-for-byte, regardless of how many there are. Used by -skip-exact-
// matches to exclude all of them from scoring, not just a unique match.
func (s *Set) ExactMatches(seq []byte) []refidx.T {
	return s.allBySeq[string(seq)]
}

// Load reads every record from r, building the taxonomy tree and the
// reference list. log receives soft warnings; fatal conditions (malformed
// tax= field, inconsistent taxonomy, index capacity overflow) are returned
// as *raxerr.Error.
func Load(r io.Reader, log *rlog.Logger) (*Set, error) {
	tree := taxonomy.New()
	scratch := nucleotide.NewScratch()

	var refs []Reference
	leafRefs := make(map[taxonomy.NodeID][]refidx.T)

	// tracks, per raw sequence, every lineage seen so far, to warn when the
	// same sequence appears under differing lineages above the terminal
	// rank.
	seenBySeq := make(map[string][][]string)
	allBySeq := make(map[string][]refidx.T)

	err := fastaio.ForEach(r, func(rec fastaio.Record) error {
		lin, err := lineage.Parse(rec.ID)
		if err != nil {
			return raxerr.Wrap(raxerr.KindInput, err, "line %d", rec.Line)
		}

		leaf, err := tree.Insert(lin)
		if err != nil {
			return raxerr.Wrap(raxerr.KindTaxonomy, err, "line %d", rec.Line)
		}

		if refidx.T(len(refs)) == refidx.Max {
			return raxerr.New(raxerr.KindCapacity,
				"more than %d references; rebuild with -tags wideindex", refidx.Max)
		}
		idx := refidx.T(len(refs))

		keys := nucleotide.Keys(rec.Seq)
		unique := nucleotide.UniqueSorted(keys, scratch)
		if len(unique) == 0 {
			log.Warnf("reference %q (line %d): shorter than one k-mer, unreachable by k-mer scoring", rec.ID, rec.Line)
		}

		seq := string(rec.Seq)
		for _, prior := range seenBySeq[seq] {
			if divergesAboveTerminal(prior, lin) {
				log.Warnf("reference %q (line %d): duplicate sequence with lineage diverging above the terminal rank", rec.ID, rec.Line)
				break
			}
		}
		seenBySeq[seq] = append(seenBySeq[seq], lin)
		allBySeq[seq] = append(allBySeq[seq], idx)

		refs = append(refs, Reference{
			Label:    rec.ID,
			Lineage:  lin,
			Leaf:     leaf,
			Sequence: append([]byte(nil), rec.Seq...),
			Keys:     unique,
		})
		leafRefs[leaf] = append(leafRefs[leaf], idx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	tree.Finalize(leafRefs)

	return &Set{Tree: tree, Refs: refs, exactIndex: uniqueMatches(allBySeq), allBySeq: allBySeq}, nil
}

// FromRecords builds a Set from an already-built tree and reference list,
// reindexing the raw-sequence exact-match lookups that Load computes
// inline. Used when a database sidecar was loaded directly (kindex.Load),
// skipping the FASTA parse that Load would otherwise do.
func FromRecords(tree *taxonomy.Tree, refs []Reference) *Set {
	allBySeq := make(map[string][]refidx.T, len(refs))
	for i, r := range refs {
		seq := string(r.Sequence)
		allBySeq[seq] = append(allBySeq[seq], refidx.T(i))
	}
	return &Set{Tree: tree, Refs: refs, exactIndex: uniqueMatches(allBySeq), allBySeq: allBySeq}
}

func uniqueMatches(allBySeq map[string][]refidx.T) map[string]refidx.T {
	exactIndex := make(map[string]refidx.T, len(allBySeq))
	for seq, matches := range allBySeq {
		if len(matches) == 1 {
			exactIndex[seq] = matches[0]
		}
	}
	return exactIndex
}

// divergesAboveTerminal reports whether a and b differ anywhere above their
// terminal ranks: the two lineages do not diverge "above the terminal rank"
// only if they have the same depth and every label except the last matches.
func divergesAboveTerminal(a, b []string) bool {
	na, nb := len(a)-1, len(b)-1
	if na != nb {
		return true
	}
	for i := 0; i < na; i++ {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}

// LoadQueries reads every record from r as a query.
func LoadQueries(r io.Reader) ([]Query, error) {
	scratch := nucleotide.NewScratch()

	var queries []Query
	err := fastaio.ForEach(r, func(rec fastaio.Record) error {
		keys := nucleotide.Keys(rec.Seq)
		queries = append(queries, Query{
			Label:    rec.ID,
			Sequence: append([]byte(nil), rec.Seq...),
			Keys:     nucleotide.UniqueSorted(keys, scratch),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading queries: %w", err)
	}
	return queries, nil
}
