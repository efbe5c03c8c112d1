package kindex

import (
	"bytes"
	"strings"
	"testing"

	"github.com/raxtax/raxtax/internal/nucleotide"
	"github.com/raxtax/raxtax/internal/refdb"
	"github.com/raxtax/raxtax/internal/rlog"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	fasta := ">r1;tax=A,B,C;\nACGTACGTACGT\n>r2;tax=A,B,D;\nTTTTACGTACGT\n"
	set, err := refdb.Load(strings.NewReader(fasta), rlog.Discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	keys := make([][]nucleotide.Key, len(set.Refs))
	for i, r := range set.Refs {
		keys[i] = r.Keys
	}
	idx := Build(keys)

	var buf bytes.Buffer
	buildID, err := Save(&buf, idx, set.Tree, set.Refs)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if buildID.String() == "" {
		t.Fatal("expected a non-empty build id")
	}

	loadedIdx, loadedTree, loadedRefs, loadedID, err := Load(&buf)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loadedID != buildID {
		t.Errorf("build id mismatch: %v vs %v", loadedID, buildID)
	}

	if len(loadedRefs) != len(set.Refs) {
		t.Fatalf("got %d refs, want %d", len(loadedRefs), len(set.Refs))
	}
	for i := range set.Refs {
		if loadedRefs[i].Label != set.Refs[i].Label {
			t.Errorf("ref %d label = %q, want %q", i, loadedRefs[i].Label, set.Refs[i].Label)
		}
		if !bytes.Equal(loadedRefs[i].Sequence, set.Refs[i].Sequence) {
			t.Errorf("ref %d sequence mismatch", i)
		}
	}

	if loadedTree.NumNodes() != set.Tree.NumNodes() {
		t.Errorf("NumNodes = %d, want %d", loadedTree.NumNodes(), set.Tree.NumNodes())
	}

	for k := 0; k < nucleotide.NumKeys; k++ {
		want := idx.Bucket(nucleotide.Key(k))
		got := loadedIdx.Bucket(nucleotide.Key(k))
		if len(want) != len(got) {
			t.Fatalf("bucket %d length mismatch: %d vs %d", k, len(want), len(got))
		}
		for j := range want {
			if want[j] != got[j] {
				t.Errorf("bucket %d[%d] = %v, want %v", k, j, got[j], want[j])
			}
		}
	}
}

func TestLoadRejectsBadMagic(t *testing.T) {
	t.Parallel()

	_, _, _, _, err := Load(bytes.NewReader([]byte("not a sidecar")))
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestLoadRejectsWrongVersion(t *testing.T) {
	t.Parallel()

	fasta := ">r1;tax=A;\nACGTACGTACGT\n"
	set, err := refdb.Load(strings.NewReader(fasta), rlog.Discard())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	keys := [][]nucleotide.Key{set.Refs[0].Keys}
	idx := Build(keys)

	var buf bytes.Buffer
	if _, err := Save(&buf, idx, set.Tree, set.Refs); err != nil {
		t.Fatalf("Save: %v", err)
	}

	corrupted := buf.Bytes()
	// version field follows the 4-byte magic; flip a bit to desync it.
	corrupted[4] ^= 0xFF

	_, _, _, _, err = Load(bytes.NewReader(corrupted))
	if err == nil {
		t.Fatal("expected version mismatch error")
	}
}
