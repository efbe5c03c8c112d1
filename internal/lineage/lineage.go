// Package lineage tokenizes the `;tax=L1,L2,...,Lm;` suffix of a reference
// FASTA identifier into an ordered lineage tuple.
package lineage

import (
	"fmt"
	"strings"
)

// forbidden lists the characters disallowed inside a lineage label,
// because they are used as separators in the input or output formats
// (tax= tuples, the tab-separated outputs).
const forbidden = ",:;|"

// Parse extracts the ordered lineage tuple from a FASTA identifier of the
// form "...;tax=L1,L2,...,Lm;". It returns an error identifying the
// identifier if the tax= prefix is missing or a label contains a forbidden
// character.
func Parse(id string) ([]string, error) {
	const marker = "tax="

	// The field must start the identifier or follow a ';', so that e.g.
	// "notax=" is not taken for it.
	i := 0
	if !strings.HasPrefix(id, marker) {
		i = strings.Index(id, ";"+marker)
		if i < 0 {
			return nil, fmt.Errorf("identifier %q: missing %q lineage field", id, marker)
		}
		i++
	}

	rest := id[i+len(marker):]
	if j := strings.IndexByte(rest, ';'); j >= 0 {
		rest = rest[:j]
	}

	if rest == "" {
		return nil, fmt.Errorf("identifier %q: empty lineage", id)
	}

	labels := strings.Split(rest, ",")
	for _, l := range labels {
		if l == "" {
			return nil, fmt.Errorf("identifier %q: empty lineage label", id)
		}
		if strings.ContainsAny(l, forbidden) {
			return nil, fmt.Errorf("identifier %q: label %q contains a forbidden character (one of %q)", id, l, forbidden)
		}
	}

	return labels, nil
}
