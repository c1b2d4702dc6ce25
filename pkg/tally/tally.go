// Package tally counts value occurrences in sequences of comparable values.
//
// The package offers two entry points: Count, a one-shot scan over a finite
// sequence, and Tally, an incremental counter that accumulates observations
// over time. Both resolve ties deterministically: when several values share
// the maximum count, the value observed first wins. This is implemented with
// an explicit first-seen order index rather than relying on map iteration
// order, which Go does not guarantee.
package tally

import "errors"

// ErrEmptySequence is returned when a mode is requested for an input that
// contains no values. No maximum exists for an empty sequence.
var ErrEmptySequence = errors.New("tally: empty sequence")

// Result identifies one value achieving the maximum occurrence count.
type Result[T comparable] struct {
	Value T
	Count int64
}

// Count scans seq once and returns the most frequent value together with its
// occurrence count. Ties are broken in favor of the value appearing first in
// seq. An empty sequence yields ErrEmptySequence.
//
// Count runs in O(n) time and O(k) space, where k is the number of distinct
// values. seq is never mutated.
func Count[T comparable](seq []T) (Result[T], error) {
	if len(seq) == 0 {
		return Result[T]{}, ErrEmptySequence
	}

	counts := make(map[T]int64, len(seq))
	order := make([]T, 0, len(seq))
	for _, v := range seq {
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}

	best := Result[T]{Value: order[0], Count: counts[order[0]]}
	for _, v := range order[1:] {
		if counts[v] > best.Count {
			best = Result[T]{Value: v, Count: counts[v]}
		}
	}
	return best, nil
}

// Entry is a value together with its accumulated occurrence count.
type Entry[T comparable] struct {
	Value T
	Count int64
}

// Tally is an incremental occurrence counter. State is held in an explicit
// struct under a single-owner discipline: a Tally must only be used from one
// goroutine at a time, callers serialize access themselves.
type Tally[T comparable] struct {
	counts map[T]int64
	order  []T
	total  int64
}

// New returns an empty Tally.
func New[T comparable]() *Tally[T] {
	return &Tally[T]{counts: make(map[T]int64)}
}

// Add records a single occurrence of v.
func (t *Tally[T]) Add(v T) {
	t.AddN(v, 1)
}

// AddN records n occurrences of v. Non-positive n is ignored.
func (t *Tally[T]) AddN(v T, n int64) {
	if n <= 0 {
		return
	}
	if _, seen := t.counts[v]; !seen {
		t.order = append(t.order, v)
	}
	t.counts[v] += n
	t.total += n
}

// Observe records one occurrence of every value in seq, in order.
func (t *Tally[T]) Observe(seq []T) {
	for _, v := range seq {
		t.Add(v)
	}
}

// Merge folds other into t. Values new to t adopt their first-seen position
// from other's order, after all values t already knows.
func (t *Tally[T]) Merge(other *Tally[T]) {
	if other == nil {
		return
	}
	for _, v := range other.order {
		t.AddN(v, other.counts[v])
	}
}

// Mode returns the most frequent value and its count. The second return is
// false when the tally is empty. Ties go to the first-seen value.
func (t *Tally[T]) Mode() (Result[T], bool) {
	if len(t.order) == 0 {
		return Result[T]{}, false
	}
	best := Result[T]{Value: t.order[0], Count: t.counts[t.order[0]]}
	for _, v := range t.order[1:] {
		if t.counts[v] > best.Count {
			best = Result[T]{Value: v, Count: t.counts[v]}
		}
	}
	return best, true
}

// Top returns up to k entries ordered by descending count, first-seen order
// breaking ties. k <= 0 yields nil.
func (t *Tally[T]) Top(k int) []Entry[T] {
	if k <= 0 || len(t.order) == 0 {
		return nil
	}

	entries := make([]Entry[T], len(t.order))
	for i, v := range t.order {
		entries[i] = Entry[T]{Value: v, Count: t.counts[v]}
	}
	// Insertion sort keeps equal-count entries in first-seen order.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Count > entries[j-1].Count; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}

	if k > len(entries) {
		k = len(entries)
	}
	return entries[:k]
}

// Count reports the number of recorded occurrences of v.
func (t *Tally[T]) Count(v T) int64 {
	return t.counts[v]
}

// Total reports the number of recorded occurrences across all values.
func (t *Tally[T]) Total() int64 {
	return t.total
}

// Distinct reports the number of distinct values recorded.
func (t *Tally[T]) Distinct() int {
	return len(t.order)
}

// Values returns the distinct values in first-seen order. The returned slice
// is a copy.
func (t *Tally[T]) Values() []T {
	out := make([]T, len(t.order))
	copy(out, t.order)
	return out
}

// Reset discards all recorded state.
func (t *Tally[T]) Reset() {
	t.counts = make(map[T]int64)
	t.order = nil
	t.total = 0
}
