// Package taxonomy builds and queries the multifurcating tree of reference
// lineages.
//
// Following the teacher's "arena of nodes addressed by integer identifiers"
// approach (gaissmai-bart's internal/nodes, generalized here from a fixed
// 256-way trie to an arbitrary-arity one): nodes live in flat slices
// indexed by NodeID, each node's children are held in its own slice of
// child ids (not in one shared flat child-id array), and a leaf's (or any
// node's) subtree reference set is an offset/length slice into a flat,
// ascending-sorted reference-index array. There is no pointer graph.
package taxonomy

import (
	"fmt"
	"sort"

	"github.com/raxtax/raxtax/internal/refidx"
)

// NodeID identifies a node in the arena. The root is always 0.
type NodeID int32

// Root is the identifier of the tree's root node.
const Root NodeID = 0

// Tree is an immutable-once-built multifurcating taxonomy tree.
type Tree struct {
	labels   []string
	parents  []NodeID
	depths   []int32
	children [][]NodeID // per-node child list, in first-seen order

	// populated by Finalize: the ascending-sorted set of reference indices
	// in each node's subtree, sliced out of refFlat.
	refOff  []int32
	refLen  []int32
	refFlat []refidx.T

	// labelAtDepth[d][label] records the first parent a label was attached
	// to at depth d, to reject the same label reappearing under a
	// different parent at the same rank.
	labelAtDepth []map[string]NodeID

	finalized bool
}

// New returns an empty tree containing only the root node.
func New() *Tree {
	t := &Tree{
		labels:  []string{""},
		parents: []NodeID{Root},
		depths:  []int32{0},
		children: [][]NodeID{
			nil,
		},
	}
	return t
}

// Label returns a node's own label (the root's label is "").
func (t *Tree) Label(n NodeID) string { return t.labels[n] }

// Parent returns a node's parent. The root is its own parent.
func (t *Tree) Parent(n NodeID) NodeID { return t.parents[n] }

// Depth returns a node's rank depth; the root is depth 0.
func (t *Tree) Depth(n NodeID) int { return int(t.depths[n]) }

// Children returns a node's children in the order they were first inserted.
func (t *Tree) Children(n NodeID) []NodeID { return t.children[n] }

// NumNodes returns the number of nodes in the arena, including the root.
func (t *Tree) NumNodes() int { return len(t.labels) }

func (t *Tree) childAtDepth(depth int) map[string]NodeID {
	for len(t.labelAtDepth) <= depth {
		t.labelAtDepth = append(t.labelAtDepth, nil)
	}
	if t.labelAtDepth[depth] == nil {
		t.labelAtDepth[depth] = make(map[string]NodeID)
	}
	return t.labelAtDepth[depth]
}

// Insert walks the lineage from the root, creating any missing nodes, and
// returns the terminal (leaf) node's id.
//
// Insertion is trie-like: at each depth, follow an existing child with a
// matching label or create a new one. It is an error for the same label to
// appear at the same depth under two different parents.
func (t *Tree) Insert(lineage []string) (NodeID, error) {
	if t.finalized {
		panic("taxonomy: Insert after Finalize")
	}

	cur := Root
	for depth, label := range lineage {
		registry := t.childAtDepth(depth + 1)

		if owner, seen := registry[label]; seen {
			if owner != cur {
				return 0, fmt.Errorf("inconsistent taxonomy: label %q at rank %d appears under two different parents", label, depth+1)
			}
		} else {
			registry[label] = cur
		}

		next := t.findChild(cur, label)
		if next < 0 {
			next = t.newNode(cur, label, depth+1)
		}
		cur = next
	}

	return cur, nil
}

func (t *Tree) findChild(parent NodeID, label string) NodeID {
	for _, c := range t.children[parent] {
		if t.labels[c] == label {
			return c
		}
	}
	return -1
}

func (t *Tree) newNode(parent NodeID, label string, depth int) NodeID {
	id := NodeID(len(t.labels))
	t.labels = append(t.labels, label)
	t.parents = append(t.parents, parent)
	t.depths = append(t.depths, int32(depth))
	t.children = append(t.children, nil)
	t.children[parent] = append(t.children[parent], id)
	return id
}

// Rebuild reconstructs a Tree from flat label/parent arrays previously
// captured from a finalized Tree (kindex's binary sidecar format stores
// exactly these two arrays per node). Depths and child lists are
// recomputed from parents; the caller must still call Finalize with the
// leaf reference-index lists, or Attach with the stored per-node reference
// sets, before using RefSet.
func Rebuild(labels []string, parents []NodeID) *Tree {
	n := len(labels)
	t := &Tree{
		labels:   labels,
		parents:  parents,
		depths:   make([]int32, n),
		children: make([][]NodeID, n),
	}
	for id := 1; id < n; id++ {
		p := parents[id]
		t.depths[id] = t.depths[p] + 1
		t.children[p] = append(t.children[p], NodeID(id))
	}
	return t
}

// Attach installs precomputed per-node reference sets directly, without
// running Finalize's subtree fold. Used when reloading a tree from a
// binary sidecar, where each node's subtree reference set was already
// computed once (by Finalize) before serialization; refSets[id] must be
// the exact, ascending-sorted reference-index list previously returned by
// RefSet(NodeID(id)) for every node in the tree.
func (t *Tree) Attach(refSets [][]refidx.T) {
	n := len(refSets)
	t.refOff = make([]int32, n)
	t.refLen = make([]int32, n)

	var flat []refidx.T
	for id, refs := range refSets {
		t.refOff[id] = int32(len(flat))
		t.refLen[id] = int32(len(refs))
		flat = append(flat, refs...)
	}
	t.refFlat = flat
	t.finalized = true
}

// AncestorPath returns the sequence of node ids from the root to leaf,
// inclusive of both.
func (t *Tree) AncestorPath(leaf NodeID) []NodeID {
	depth := t.Depth(leaf)
	path := make([]NodeID, depth+1)
	n := leaf
	for i := depth; i >= 0; i-- {
		path[i] = n
		n = t.parents[n]
	}
	return path
}

// RefSet returns the ascending-sorted set of reference indices attached
// anywhere in n's subtree. Valid only after Finalize.
func (t *Tree) RefSet(n NodeID) []refidx.T {
	off, ln := t.refOff[n], t.refLen[n]
	return t.refFlat[off : off+ln]
}

// Finalize attaches leaf reference lists (leafRefs maps each leaf to the
// reference indices registered at it, in any order) and precomputes every
// node's ascending-sorted subtree reference set bottom-up, per the
// invariant that a node's reference set is the concatenation of its
// children's.
func (t *Tree) Finalize(leafRefs map[NodeID][]refidx.T) {
	n := len(t.labels)
	t.refOff = make([]int32, n)
	t.refLen = make([]int32, n)

	subtree := make([][]refidx.T, n)
	for leaf, refs := range leafRefs {
		subtree[leaf] = append(subtree[leaf], refs...)
	}

	// Postorder via reverse arena order: every child has a strictly larger
	// id than its parent because newNode only appends, so processing ids
	// from highest to lowest guarantees children are folded into their
	// parent before the parent itself is folded into its own parent.
	for id := n - 1; id > 0; id-- {
		nid := NodeID(id)
		p := t.parents[nid]
		subtree[p] = append(subtree[p], subtree[nid]...)
	}

	var flat []refidx.T
	for id := 0; id < n; id++ {
		refs := subtree[id]
		sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
		t.refOff[id] = int32(len(flat))
		t.refLen[id] = int32(len(refs))
		flat = append(flat, refs...)
	}
	t.refFlat = flat
	t.finalized = true
}
