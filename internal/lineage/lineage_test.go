package lineage

import (
	"slices"
	"testing"
)

func TestParseOK(t *testing.T) {
	t.Parallel()

	got, err := Parse(">x;tax=A,B,C;")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{"A", "B", "C"}
	if !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParseMissingTax(t *testing.T) {
	t.Parallel()

	if _, err := Parse(">x;notax=A,B;"); err == nil {
		t.Fatal("expected error for missing tax= field")
	}
}

func TestParseForbiddenChar(t *testing.T) {
	t.Parallel()

	for _, id := range []string{">x;tax=A,B|C;", ">x;tax=A,B:C;"} {
		if _, err := Parse(id); err == nil {
			t.Errorf("Parse(%q): expected error for forbidden character", id)
		}
	}
}

func TestParseEmptyLabel(t *testing.T) {
	t.Parallel()

	if _, err := Parse(">x;tax=A,,C;"); err == nil {
		t.Fatal("expected error for empty label")
	}
}
