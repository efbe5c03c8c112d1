package fastaio

import (
	"strings"
	"testing"
)

func TestForEachParsesRecords(t *testing.T) {
	t.Parallel()

	input := ">r1;tax=A,B,C;\nACGT\nACGT\n>r2;tax=A,B,D;\nTTTT\n"

	var got []Record
	err := ForEach(strings.NewReader(input), func(r Record) error {
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	if got[0].ID != "r1;tax=A,B,C;" || string(got[0].Seq) != "ACGTACGT" {
		t.Errorf("record 0 = %+v", got[0])
	}
	if got[1].ID != "r2;tax=A,B,D;" || string(got[1].Seq) != "TTTT" {
		t.Errorf("record 1 = %+v", got[1])
	}
}

func TestForEachEmptySequenceErrors(t *testing.T) {
	t.Parallel()

	input := ">r1;tax=A;\n>r2;tax=A;\nACGT\n"
	err := ForEach(strings.NewReader(input), func(Record) error { return nil })
	if err == nil {
		t.Fatal("expected error for empty sequence")
	}
}

func TestForEachDataBeforeHeaderErrors(t *testing.T) {
	t.Parallel()

	err := ForEach(strings.NewReader("ACGT\n>r1;tax=A;\nACGT\n"), func(Record) error { return nil })
	if err == nil {
		t.Fatal("expected error for data before header")
	}
}

func TestForEachPropagatesCallbackError(t *testing.T) {
	t.Parallel()

	input := ">r1;tax=A;\nACGT\n>r2;tax=A;\nACGT\n"
	n := 0
	err := ForEach(strings.NewReader(input), func(Record) error {
		n++
		if n == 1 {
			return errStop
		}
		return nil
	})
	if err != errStop {
		t.Fatalf("err = %v, want errStop", err)
	}
	if n != 1 {
		t.Fatalf("callback invoked %d times, want 1 (stop at first error)", n)
	}
}

var errStop = stopError("stop")

type stopError string

func (e stopError) Error() string { return string(e) }
