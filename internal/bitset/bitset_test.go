// Copyright (c) 2014 Will Fitzgerald. All rights reserved.
// Use of this source code is governed by a BSD-style license.
//
// Some tests are taken and modified from:
//
//  github.com/bits-and-blooms/bitset
//
// All introduced bugs belong to me!

package bitset

import (
	"slices"
	"testing"
)

func TestNil(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Error("a nil bitset must not panic")
		}
	}()

	b := BitSet(nil)
	b.Set(0)

	b = BitSet(nil)
	b.Clear(1000)

	b = BitSet(nil)
	b.Count()

	b = BitSet(nil)
	b.Test(42)

	b = BitSet(nil)
	b.Reset()
}

func TestZeroValue(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Error("a zero value bitset must not panic")
		}
	}()

	b := BitSet{}
	b.Set(0)

	b = BitSet{}
	b.Clear(1000)

	b = BitSet{}
	b.Count()

	b = BitSet{}
	b.Test(42)
}

func TestSetTestClear(t *testing.T) {
	var b BitSet
	b.Set(100)
	if !b.Test(100) {
		t.Errorf("bit %d is clear, and it shouldn't be", 100)
	}
	b.Clear(100)
	if b.Test(100) {
		t.Errorf("bit %d is set, and it shouldn't be", 100)
	}
}

func TestExpand(t *testing.T) {
	var b BitSet
	for i := range 512 {
		b.Set(uint(i))
	}
	want := 8
	if len(b) != want {
		t.Errorf("Set(511), want len: %d, got: %d", want, len(b))
	}
}

func TestReset(t *testing.T) {
	var b BitSet
	for _, i := range []uint{1, 65, 130, 8191} {
		b.Set(i)
	}
	b.Reset()
	for _, w := range b {
		if w != 0 {
			t.Fatalf("Reset left a non-zero word: %v", b)
		}
	}
	if b.Count() != 0 {
		t.Errorf("Count after Reset: got %d, want 0", b.Count())
	}
}

func TestCount(t *testing.T) {
	var b BitSet
	tot := uint(64*4 + 11) // just an unmagic number
	checkLast := true
	for i := range tot {
		sz := uint(b.Count())
		if sz != i {
			t.Errorf("Count reported as %d, but it should be %d", sz, i)
			checkLast = false
			break
		}
		b.Set(i)
	}
	if checkLast {
		sz := uint(b.Count())
		if sz != tot {
			t.Errorf("after all bits set, size reported as %d, but it should be %d", sz, tot)
		}
	}
}

func TestAllIterator(t *testing.T) {
	var b BitSet
	want := []uint{1, 65, 130, 190, 250, 8191}
	for _, u := range want {
		b.Set(u)
	}

	var got []uint
	for u := range b.All() {
		got = append(got, u)
	}

	if !slices.Equal(got, want) {
		t.Errorf("All(): got %v, want %v", got, want)
	}
}
