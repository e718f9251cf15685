package pipeline

import (
	"context"
	"errors"
	"testing"
)

func TestFromSlice_Collect(t *testing.T) {
	got, err := Collect(context.Background(), FromSlice([]int{1, 2, 3}))
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{1, 2, 3}) {
		t.Errorf("got %v, want [1 2 3]", got)
	}
}

func TestFromSlice_Empty(t *testing.T) {
	got, err := Collect(context.Background(), FromSlice([]int{}))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
}

func TestFrom_Iterator(t *testing.T) {
	got, err := Collect(context.Background(), From(Slice("a", "b")))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("got %v, want [a b]", got)
	}
}

func TestMap(t *testing.T) {
	doubled := Map(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (int, error) {
		return n * 2, nil
	})
	got, err := Collect(context.Background(), doubled)
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, []int{2, 4, 6}) {
		t.Errorf("got %v, want [2 4 6]", got)
	}
}

func TestMap_Error(t *testing.T) {
	boom := errors.New("boom")
	p := Map(FromSlice([]int{1, 2, 3}), func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, boom
		}
		return n, nil
	})
	got, err := Collect(context.Background(), p)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !intSliceEqual(got, []int{1}) {
		t.Errorf("expected values before the error, got %v", got)
	}
}

func TestTap(t *testing.T) {
	var seen []int
	p := Tap(FromSlice([]int{4, 5}), func(_ context.Context, n int) error {
		seen = append(seen, n)
		return nil
	})
	got, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	if !intSliceEqual(got, seen) {
		t.Errorf("tap saw %v, pipeline yielded %v", seen, got)
	}
}

func TestDrainIter_SinkError(t *testing.T) {
	stop := errors.New("stop")
	calls := 0
	err := DrainIter(context.Background(), Slice(1, 2, 3), func(_ context.Context, _ int) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected stop, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected sink to stop after first error, got %d calls", calls)
	}
}

func TestCollect_ClosesIterator(t *testing.T) {
	iter := &closeTracker[int]{Iterator: Slice(1, 2)}
	if _, err := Collect(context.Background(), From[int](iter)); err != nil {
		t.Fatal(err)
	}
	if !iter.closed {
		t.Error("expected iterator to be closed")
	}
}

// --- Pack ---

func identity(n int) int { return n }

func collectBins(t *testing.T, p *Pipeline[Bin[int]]) [][]int {
	t.Helper()
	bins, err := Collect(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	out := make([][]int, len(bins))
	for i, b := range bins {
		out[i] = b.Items
	}
	return out
}

func TestPack_Greedy(t *testing.T) {
	tests := []struct {
		name  string
		sizes []int
		limit int
		want  [][]int
	}{
		{"each alone", []int{100, 200, 300}, 250, [][]int{{100}, {200}, {300}}},
		{"fits exactly", []int{100, 150, 50}, 250, [][]int{{100, 150}, {50}}},
		{"oversize alone", []int{10, 900, 10, 10}, 100, [][]int{{10}, {900}, {10, 10}}},
		{"leading oversize", []int{900, 10}, 100, [][]int{{900}, {10}}},
		{"single bin", []int{1, 2, 3}, 100, [][]int{{1, 2, 3}}},
		{"empty", nil, 100, [][]int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := collectBins(t, Pack(FromSlice(tt.sizes), tt.limit, identity))
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if !intSliceEqual(got[i], tt.want[i]) {
					t.Errorf("bin %d: got %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestPack_Invariants(t *testing.T) {
	sizes := []int{7, 3, 12, 40, 1, 1, 1, 25, 25, 25, 60, 2, 9, 33, 18}
	const limit = 30
	bins, err := Collect(context.Background(), Pack(FromSlice(sizes), limit, identity))
	if err != nil {
		t.Fatal(err)
	}

	var flat []int
	for i, b := range bins {
		sum := 0
		for _, v := range b.Items {
			sum += v
		}
		if sum != b.Size {
			t.Errorf("bin %d: Size %d, items sum %d", i, b.Size, sum)
		}
		if b.Size > limit && len(b.Items) != 1 {
			t.Errorf("bin %d exceeds limit with %d items", i, len(b.Items))
		}
		if i+1 < len(bins) && b.Size+bins[i+1].Items[0] <= limit {
			t.Errorf("bin %d is not maximal: next item %d would fit", i, bins[i+1].Items[0])
		}
		flat = append(flat, b.Items...)
	}
	if !intSliceEqual(flat, sizes) {
		t.Errorf("flattened bins %v differ from source %v", flat, sizes)
	}
}

func TestPack_SourceError(t *testing.T) {
	boom := errors.New("boom")
	src := From[int](&failAfter{items: []int{1, 2}, err: boom})
	bins, err := Collect(context.Background(), Pack(src, 100, identity))
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(bins) != 0 {
		t.Errorf("open bin should be discarded on error, got %v", bins)
	}
}

// --- helpers ---

type closeTracker[T any] struct {
	Iterator[T]
	closed bool
}

func (c *closeTracker[T]) Close() error {
	c.closed = true
	return c.Iterator.Close()
}

type failAfter struct {
	items []int
	err   error
}

func (f *failAfter) Next(context.Context) (int, bool, error) {
	if len(f.items) == 0 {
		return 0, false, f.err
	}
	v := f.items[0]
	f.items = f.items[1:]
	return v, true, nil
}

func (f *failAfter) Close() error { return nil }

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
