package pipeline

import "context"

// Bin is one group emitted by Pack together with the summed size of its items.
type Bin[T any] struct {
	Items []T
	Size  int
}

// Pack groups consecutive values into bins whose summed size stays within
// limit, in a single greedy left-to-right pass. A value is appended to the
// open bin unless the bin is non-empty and the value would push it over
// limit, in which case the open bin is emitted first. A value whose own size
// exceeds limit therefore travels alone. Order is preserved and no value is
// split or dropped.
//
// An error from the source is returned as soon as it is seen; the open bin is
// discarded.
func Pack[T any](p *Pipeline[T], limit int, sizeOf func(T) int) *Pipeline[Bin[T]] {
	return &Pipeline[Bin[T]]{
		create: func(ctx context.Context) Iterator[Bin[T]] {
			return &packIter[T]{
				source: p.create(ctx),
				limit:  limit,
				sizeOf: sizeOf,
			}
		},
	}
}

type packIter[T any] struct {
	source Iterator[T]
	limit  int
	sizeOf func(T) int

	// carry holds the value that overflowed the previous bin.
	carry     T
	carrySize int
	hasCarry  bool
	done      bool
}

func (it *packIter[T]) Next(ctx context.Context) (Bin[T], bool, error) {
	var bin Bin[T]
	if it.hasCarry {
		bin.Items = append(bin.Items, it.carry)
		bin.Size = it.carrySize
		var zero T
		it.carry, it.carrySize, it.hasCarry = zero, 0, false
	}

	for !it.done {
		val, ok, err := it.source.Next(ctx)
		if err != nil {
			return Bin[T]{}, false, err
		}
		if !ok {
			it.done = true
			break
		}
		size := it.sizeOf(val)
		if len(bin.Items) > 0 && bin.Size+size > it.limit {
			it.carry, it.carrySize, it.hasCarry = val, size, true
			return bin, true, nil
		}
		bin.Items = append(bin.Items, val)
		bin.Size += size
	}

	if len(bin.Items) > 0 {
		return bin, true, nil
	}
	return Bin[T]{}, false, nil
}

func (it *packIter[T]) Close() error { return it.source.Close() }
