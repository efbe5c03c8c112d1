package nucleotide

import (
	"slices"
	"testing"
)

func TestKeysExactlyOneWindow(t *testing.T) {
	t.Parallel()

	// 8 unambiguous bases -> exactly one k-mer.
	keys := Keys([]byte("AAAAAAAA"))
	if len(keys) != 1 {
		t.Fatalf("len(keys) = %d, want 1", len(keys))
	}
	if keys[0] != 0 {
		t.Errorf("keys[0] = %d, want 0 (all-A)", keys[0])
	}
}

func TestKeysShorterThanK(t *testing.T) {
	t.Parallel()

	for _, seq := range [][]byte{nil, []byte(""), []byte("ACGT"), []byte("ACGTACG")} {
		if keys := Keys(seq); keys != nil {
			t.Errorf("Keys(%q) = %v, want nil", seq, keys)
		}
	}
}

func TestKeysAmbiguousBreaksWindow(t *testing.T) {
	t.Parallel()

	// "AAAAAAAANAAAAAAAA": the N breaks the run, no k-mer should cross it.
	seq := []byte("AAAAAAAANAAAAAAAA")
	keys := Keys(seq)

	wantCount := (8 - K + 1) + (8 - K + 1) // one full window on each side
	if len(keys) != wantCount {
		t.Fatalf("len(keys) = %d, want %d", len(keys), wantCount)
	}
}

func TestKeysOnlyAmbiguous(t *testing.T) {
	t.Parallel()

	keys := Keys([]byte("NNNNNNNNNNNN"))
	if len(keys) != 0 {
		t.Errorf("Keys(all-N) = %v, want empty", keys)
	}
}

func TestKeysOverlapStride1(t *testing.T) {
	t.Parallel()

	// "AAAAAAAAC": window 1 = AAAAAAAA (0), window 2 = AAAAAAAC (last base C=1).
	keys := Keys([]byte("AAAAAAAAC"))
	if len(keys) != 2 {
		t.Fatalf("len(keys) = %d, want 2", len(keys))
	}
	if keys[0] != 0 {
		t.Errorf("keys[0] = %d, want 0", keys[0])
	}
	if keys[1] != 1 {
		t.Errorf("keys[1] = %d, want 1", keys[1])
	}
}

func TestUniqueSortedDedupsAndOrders(t *testing.T) {
	t.Parallel()

	in := []Key{5, 3, 5, 1, 3, 65535, 0}
	scratch := NewScratch()
	got := UniqueSorted(in, scratch)

	want := []Key{0, 1, 3, 5, 65535}
	if !slices.Equal(got, want) {
		t.Errorf("UniqueSorted(%v) = %v, want %v", in, got, want)
	}
}

func TestUniqueSortedReusesScratch(t *testing.T) {
	t.Parallel()

	scratch := NewScratch()
	first := UniqueSorted([]Key{1, 2, 3}, scratch)
	second := UniqueSorted([]Key{4, 5}, scratch)

	if !slices.Equal(first, []Key{1, 2, 3}) {
		t.Errorf("first = %v", first)
	}
	if !slices.Equal(second, []Key{4, 5}) {
		t.Errorf("second = %v, stale bits from first call leaked", second)
	}
}
