package filter

import (
	"container/heap"
	"iter"
)

// Compile time check to ensure mergeQueue satisfies the heap interface.
var _ heap.Interface = (*mergeQueue[int])(nil)

// mergeHead is the current element of one input sequence.
type mergeHead[T any] struct {
	value T
	// src is the position of the sequence in the merge input. Ties are
	// broken by src so the merge is stable.
	src  int
	next func() (T, error, bool)
}

type mergeQueue[T any] struct {
	compare func(a, b T) int
	items   []*mergeHead[T]
}

func (q *mergeQueue[T]) Len() int { return len(q.items) }

func (q *mergeQueue[T]) Less(i, j int) bool {
	if c := q.compare(q.items[i].value, q.items[j].value); c != 0 {
		return c < 0
	}
	return q.items[i].src < q.items[j].src
}

func (q *mergeQueue[T]) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *mergeQueue[T]) Push(x any) { q.items = append(q.items, x.(*mergeHead[T])) }

func (q *mergeQueue[T]) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}

// Merge merges sorted sequences into one sorted sequence. When same is not
// nil, an element equal to the previously yielded one is dropped. The first
// error of any input stops the merge.
func Merge[T any](compare func(a, b T) int, same func(a, b T) bool, seqs ...iter.Seq2[T, error]) iter.Seq2[T, error] {
	if len(seqs) == 1 && same == nil {
		return seqs[0]
	}
	return func(yield func(T, error) bool) {
		q := &mergeQueue[T]{compare: compare}
		var stops []func()
		defer func() {
			for _, stop := range stops {
				stop()
			}
		}()
		for i, seq := range seqs {
			next, stop := iter.Pull2(seq)
			stops = append(stops, stop)
			v, err, ok := next()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if ok {
				q.items = append(q.items, &mergeHead[T]{value: v, src: i, next: next})
			}
		}
		heap.Init(q)

		var (
			last    T
			hasLast bool
		)
		for q.Len() > 0 {
			head := q.items[0]
			v := head.value
			if !hasLast || same == nil || !same(last, v) {
				if !yield(v, nil) {
					return
				}
				last, hasLast = v, true
			}
			nv, err, ok := head.next()
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if ok {
				head.value = nv
				heap.Fix(q, 0)
			} else {
				heap.Pop(q)
			}
		}
	}
}

// Union yields every element of any sequence once, in order.
func Union[T any](compare func(a, b T) int, same func(a, b T) bool, seqs ...iter.Seq2[T, error]) iter.Seq2[T, error] {
	return Merge(compare, same, seqs...)
}

// Intersect yields the elements present in every sequence, in order. The
// element of the first sequence is yielded.
func Intersect[T any](compare func(a, b T) int, seqs ...iter.Seq2[T, error]) iter.Seq2[T, error] {
	if len(seqs) == 1 {
		return seqs[0]
	}
	return func(yield func(T, error) bool) {
		var zero T
		nexts := make([]func() (T, error, bool), len(seqs))
		heads := make([]T, len(seqs))
		for i, seq := range seqs {
			next, stop := iter.Pull2(seq)
			defer stop()
			nexts[i] = next
		}
		advance := func(i int) bool {
			v, err, ok := nexts[i]()
			if err != nil {
				yield(zero, err)
				return false
			}
			heads[i] = v
			return ok
		}
		for i := range nexts {
			if !advance(i) {
				return
			}
		}
		for {
			maxIdx := 0
			for i := 1; i < len(heads); i++ {
				if compare(heads[i], heads[maxIdx]) > 0 {
					maxIdx = i
				}
			}
			aligned := true
			for i := range heads {
				for compare(heads[i], heads[maxIdx]) < 0 {
					if !advance(i) {
						return
					}
				}
				if compare(heads[i], heads[maxIdx]) != 0 {
					aligned = false
				}
			}
			if !aligned {
				continue
			}
			if !yield(heads[0], nil) {
				return
			}
			for i := range nexts {
				if !advance(i) {
					return
				}
			}
		}
	}
}
