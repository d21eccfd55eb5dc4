package profiler

import (
	"slices"
	"testing"
)

func TestRing(t *testing.T) {
	r := newRing[int](3)

	if _, ok := r.newest(); ok {
		t.Error("empty ring should have no newest entry")
	}
	if got := r.all(); len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}

	for i := 1; i <= 5; i++ {
		r.push(i)
	}

	if r.len() != 3 {
		t.Errorf("expected len 3, got %d", r.len())
	}
	if got := r.all(); !slices.Equal(got, []int{3, 4, 5}) {
		t.Errorf("expected [3 4 5], got %v", got)
	}
	if got := r.last(2); !slices.Equal(got, []int{4, 5}) {
		t.Errorf("expected [4 5], got %v", got)
	}
	if got := r.last(10); !slices.Equal(got, []int{3, 4, 5}) {
		t.Errorf("expected [3 4 5], got %v", got)
	}
	if v, _ := r.newest(); v != 5 {
		t.Errorf("expected newest 5, got %d", v)
	}

	var visited []int
	r.each(func(v int) { visited = append(visited, v) })
	if !slices.Equal(visited, []int{3, 4, 5}) {
		t.Errorf("each visited %v", visited)
	}
}

func TestRing_ZeroCapacity(t *testing.T) {
	r := newRing[string](0)
	r.push("a")
	r.push("b")
	if got := r.all(); !slices.Equal(got, []string{"b"}) {
		t.Errorf("expected [b], got %v", got)
	}
}
