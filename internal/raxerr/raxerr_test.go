package raxerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestExitCodeByKind(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{New(KindInput, "bad record"), 1},
		{New(KindTaxonomy, "dup label"), 2},
		{New(KindIO, "disk full"), 3},
		{New(KindCapacity, "too many refs"), 4},
		{errors.New("plain error"), 1},
	}

	for _, c := range cases {
		if got := ExitCode(c.err); got != c.want {
			t.Errorf("ExitCode(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestExitCodeUnwrapsWrappedError(t *testing.T) {
	t.Parallel()

	base := New(KindTaxonomy, "dup label")
	wrapped := fmt.Errorf("loading database: %w", base)

	if got := ExitCode(wrapped); got != 2 {
		t.Errorf("ExitCode(wrapped) = %d, want 2", got)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("permission denied")
	err := Wrap(KindIO, cause, "writing %s", "raxtax.out")

	if !errors.Is(err, cause) {
		t.Error("Wrap should preserve cause for errors.Is")
	}
}
