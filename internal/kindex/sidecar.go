package kindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/raxtax/raxtax/internal/nucleotide"
	"github.com/raxtax/raxtax/internal/raxerr"
	"github.com/raxtax/raxtax/internal/refdb"
	"github.com/raxtax/raxtax/internal/refidx"
	"github.com/raxtax/raxtax/internal/taxonomy"
)

// magic identifies a raxtax database sidecar file.
var magic = [4]byte{'R', 'X', 'T', 'X'}

// LooksLikeSidecar reports whether header (the first bytes of a database
// file) starts with this package's sidecar magic number, letting a caller
// decide between treating a database argument as FASTA or as a prebuilt sidecar
// before committing to either parse.
func LooksLikeSidecar(header []byte) bool {
	return len(header) >= len(magic) &&
		header[0] == magic[0] && header[1] == magic[1] && header[2] == magic[2] && header[3] == magic[3]
}

// version is bumped whenever the on-disk layout changes incompatibly. A
// high bit is set when the build uses 64-bit reference indices, so a
// narrow-index binary never silently misreads a wide-index one or vice
// versa.
const version = uint32(1)

func fileVersion() uint32 {
	if refidx.Wide {
		return version | 0x8000_0000
	}
	return version
}

// Save writes the built index, taxonomy tree and reference records to w in
// a versioned, length-prefixed layout. The build ID is a random UUID
// stamped for diagnostic log lines only; it never affects scoring.
func Save(w io.Writer, idx *Index, tree *taxonomy.Tree, refs []refdb.Reference) (buildID uuid.UUID, err error) {
	buildID = uuid.New()
	bw := bufio.NewWriter(w)

	if err := writeHeader(bw, buildID); err != nil {
		return buildID, err
	}
	if err := writeIndex(bw, idx); err != nil {
		return buildID, err
	}
	if err := writeTree(bw, tree); err != nil {
		return buildID, err
	}
	if err := writeRefs(bw, refs); err != nil {
		return buildID, err
	}
	if err := bw.Flush(); err != nil {
		return buildID, raxerr.Wrap(raxerr.KindIO, err, "flushing database sidecar")
	}
	return buildID, nil
}

func writeHeader(w io.Writer, buildID uuid.UUID) error {
	if _, err := w.Write(magic[:]); err != nil {
		return raxerr.Wrap(raxerr.KindIO, err, "writing sidecar magic")
	}
	if err := binary.Write(w, binary.LittleEndian, fileVersion()); err != nil {
		return raxerr.Wrap(raxerr.KindIO, err, "writing sidecar version")
	}
	idBytes, err := buildID.MarshalBinary()
	if err != nil {
		return raxerr.Wrap(raxerr.KindIO, err, "marshaling build id")
	}
	if _, err := w.Write(idBytes); err != nil {
		return raxerr.Wrap(raxerr.KindIO, err, "writing build id")
	}
	return nil
}

func writeIndex(w io.Writer, idx *Index) error {
	if err := writeInt64Slice(w, idx.offset); err != nil {
		return fmt.Errorf("writing index offsets: %w", err)
	}
	if err := writeRefSlice(w, idx.flat); err != nil {
		return fmt.Errorf("writing index flat array: %w", err)
	}
	return nil
}

func writeTree(w io.Writer, t *taxonomy.Tree) error {
	n := t.NumNodes()
	if err := binary.Write(w, binary.LittleEndian, uint32(n)); err != nil {
		return raxerr.Wrap(raxerr.KindIO, err, "writing node count")
	}
	for id := 0; id < n; id++ {
		nid := taxonomy.NodeID(id)
		if err := writeString(w, t.Label(nid)); err != nil {
			return fmt.Errorf("writing node %d label: %w", id, err)
		}
		if err := binary.Write(w, binary.LittleEndian, int32(t.Parent(nid))); err != nil {
			return raxerr.Wrap(raxerr.KindIO, err, "writing node parent")
		}
		refs := t.RefSet(nid)
		if err := writeRefSlice(w, refs); err != nil {
			return fmt.Errorf("writing node %d refset: %w", id, err)
		}
	}
	return nil
}

func writeRefs(w io.Writer, refs []refdb.Reference) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(refs))); err != nil {
		return raxerr.Wrap(raxerr.KindIO, err, "writing reference count")
	}
	for i, r := range refs {
		if err := writeString(w, r.Label); err != nil {
			return fmt.Errorf("writing reference %d label: %w", i, err)
		}
		if err := binary.Write(w, binary.LittleEndian, int32(r.Leaf)); err != nil {
			return raxerr.Wrap(raxerr.KindIO, err, "writing reference leaf")
		}
		if err := writeBytes(w, r.Sequence); err != nil {
			return fmt.Errorf("writing reference %d sequence: %w", i, err)
		}
		if err := writeKeySlice(w, r.Keys); err != nil {
			return fmt.Errorf("writing reference %d keys: %w", i, err)
		}
	}
	return nil
}

// Load reads a sidecar previously written by Save, reconstructing the
// index, taxonomy tree and reference records without re-parsing FASTA or
// rebuilding k-mer sets. An incompatible version fails loudly.
func Load(r io.Reader) (*Index, *taxonomy.Tree, []refdb.Reference, uuid.UUID, error) {
	br := bufio.NewReader(r)

	buildID, err := readHeader(br)
	if err != nil {
		return nil, nil, nil, uuid.Nil, err
	}

	idx, err := readIndex(br)
	if err != nil {
		return nil, nil, nil, buildID, err
	}

	tree, refSets, err := readTree(br)
	if err != nil {
		return nil, nil, nil, buildID, err
	}

	refs, err := readRefs(br)
	if err != nil {
		return nil, nil, nil, buildID, err
	}

	tree.Attach(refSets)
	return idx, tree, refs, buildID, nil
}

func readHeader(r io.Reader) (uuid.UUID, error) {
	var got [4]byte
	if _, err := io.ReadFull(r, got[:]); err != nil {
		return uuid.Nil, raxerr.Wrap(raxerr.KindIO, err, "reading sidecar magic")
	}
	if got != magic {
		return uuid.Nil, raxerr.New(raxerr.KindIO, "not a raxtax database sidecar (bad magic)")
	}

	var ver uint32
	if err := binary.Read(r, binary.LittleEndian, &ver); err != nil {
		return uuid.Nil, raxerr.Wrap(raxerr.KindIO, err, "reading sidecar version")
	}
	if ver != fileVersion() {
		return uuid.Nil, raxerr.New(raxerr.KindIO,
			"incompatible sidecar version %#x (this build expects %#x; rebuild with -make-db)", ver, fileVersion())
	}

	idBytes := make([]byte, 16)
	if _, err := io.ReadFull(r, idBytes); err != nil {
		return uuid.Nil, raxerr.Wrap(raxerr.KindIO, err, "reading build id")
	}
	buildID, err := uuid.FromBytes(idBytes)
	if err != nil {
		return uuid.Nil, raxerr.Wrap(raxerr.KindIO, err, "parsing build id")
	}
	return buildID, nil
}

func readIndex(r io.Reader) (*Index, error) {
	offset, err := readInt64Slice(r)
	if err != nil {
		return nil, fmt.Errorf("reading index offsets: %w", err)
	}
	flat, err := readRefSlice(r)
	if err != nil {
		return nil, fmt.Errorf("reading index flat array: %w", err)
	}
	return &Index{offset: offset, flat: flat}, nil
}

func readTree(r io.Reader) (*taxonomy.Tree, [][]refidx.T, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, nil, raxerr.Wrap(raxerr.KindIO, err, "reading node count")
	}

	labels := make([]string, n)
	parents := make([]taxonomy.NodeID, n)
	refSets := make([][]refidx.T, n)

	for id := uint32(0); id < n; id++ {
		label, err := readString(r)
		if err != nil {
			return nil, nil, fmt.Errorf("reading node %d label: %w", id, err)
		}
		var parent int32
		if err := binary.Read(r, binary.LittleEndian, &parent); err != nil {
			return nil, nil, raxerr.Wrap(raxerr.KindIO, err, "reading node parent")
		}
		refs, err := readRefSlice(r)
		if err != nil {
			return nil, nil, fmt.Errorf("reading node %d refset: %w", id, err)
		}
		labels[id] = label
		parents[id] = taxonomy.NodeID(parent)
		refSets[id] = refs
	}

	return taxonomy.Rebuild(labels, parents), refSets, nil
}

func readRefs(r io.Reader) ([]refdb.Reference, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, raxerr.Wrap(raxerr.KindIO, err, "reading reference count")
	}

	refs := make([]refdb.Reference, n)
	for i := uint32(0); i < n; i++ {
		label, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("reading reference %d label: %w", i, err)
		}
		var leaf int32
		if err := binary.Read(r, binary.LittleEndian, &leaf); err != nil {
			return nil, raxerr.Wrap(raxerr.KindIO, err, "reading reference leaf")
		}
		seq, err := readBytes(r)
		if err != nil {
			return nil, fmt.Errorf("reading reference %d sequence: %w", i, err)
		}
		keys, err := readKeySlice(r)
		if err != nil {
			return nil, fmt.Errorf("reading reference %d keys: %w", i, err)
		}
		refs[i] = refdb.Reference{
			Label:    label,
			Leaf:     taxonomy.NodeID(leaf),
			Sequence: seq,
			Keys:     keys,
		}
	}
	return refs, nil
}

func writeString(w io.Writer, s string) error {
	return writeBytes(w, []byte(s))
}

func readString(r io.Reader) (string, error) {
	b, err := readBytes(r)
	return string(b), err
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeInt64Slice(w io.Writer, s []int64) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, s)
}

func readInt64Slice(r io.Reader) ([]int64, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	s := make([]int64, n)
	if err := binary.Read(r, binary.LittleEndian, s); err != nil {
		return nil, err
	}
	return s, nil
}

func writeRefSlice(w io.Writer, s []refidx.T) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, s)
}

func readRefSlice(r io.Reader) ([]refidx.T, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	s := make([]refidx.T, n)
	if err := binary.Read(r, binary.LittleEndian, s); err != nil {
		return nil, err
	}
	return s, nil
}

func writeKeySlice(w io.Writer, s []nucleotide.Key) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, s)
}

func readKeySlice(r io.Reader) ([]nucleotide.Key, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	s := make([]nucleotide.Key, n)
	if err := binary.Read(r, binary.LittleEndian, s); err != nil {
		return nil, err
	}
	return s, nil
}
