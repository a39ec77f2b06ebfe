package common

import "strconv"

// RollingIndex keeps the most recent items of a contiguous index sequence. It
// holds at most 2*size items; when full, the oldest half is dropped.
type RollingIndex[T any] struct {
	name      string
	size      int
	lastIndex int
	items     []T
}

// NewRollingIndex creates an empty RollingIndex.
func NewRollingIndex[T any](name string, size int) *RollingIndex[T] {
	return &RollingIndex[T]{
		name:      name,
		size:      size,
		items:     make([]T, 0, 2*size),
		lastIndex: -1,
	}
}

// LastIndex returns the index of the newest item, or -1.
func (r *RollingIndex[T]) LastIndex() int {
	return r.lastIndex
}

// Get returns the cached items with an index strictly greater than skipIndex.
func (r *RollingIndex[T]) Get(skipIndex int) ([]T, error) {
	res := make([]T, 0)

	if skipIndex > r.lastIndex {
		return res, nil
	}

	cachedItems := len(r.items)
	// assume there are no gaps between indexes
	oldestCachedIndex := r.lastIndex - cachedItems + 1
	if skipIndex+1 < oldestCachedIndex {
		return res, NewStoreErr(r.name, TooLate, strconv.Itoa(skipIndex))
	}

	// index of 'skipped' in RollingIndex
	start := skipIndex - oldestCachedIndex + 1

	return append(res, r.items[start:]...), nil
}

// GetItem returns the item at index.
func (r *RollingIndex[T]) GetItem(index int) (T, error) {
	var zero T
	items := len(r.items)
	oldestCached := r.lastIndex - items + 1
	if index < oldestCached {
		return zero, NewStoreErr(r.name, TooLate, strconv.Itoa(index))
	}
	findex := index - oldestCached
	if findex >= items {
		return zero, NewStoreErr(r.name, KeyNotFound, strconv.Itoa(index))
	}
	return r.items[findex], nil
}

// Append adds the item at lastIndex+1 and returns its index.
func (r *RollingIndex[T]) Append(item T) int {
	if len(r.items) >= 2*r.size {
		r.Roll()
	}
	r.items = append(r.items, item)
	r.lastIndex++
	return r.lastIndex
}

// Reset drops every cached item and continues the sequence after lastIndex.
func (r *RollingIndex[T]) Reset(lastIndex int) {
	r.items = make([]T, 0, 2*r.size)
	r.lastIndex = lastIndex
}

// Roll drops the oldest half of the cached items.
func (r *RollingIndex[T]) Roll() {
	newList := make([]T, 0, 2*r.size)
	newList = append(newList, r.items[r.size:]...)
	r.items = newList
}
