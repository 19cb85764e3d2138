/*
 * Copyright 2024 The wtinylfu Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package wtinylfu

// EvictionIterator visits eviction candidates across the three segments,
// least retainable first. It holds the container lock for its lifetime, so
// at most one can be live per container; a goroutine creating a second one
// while it holds the first deadlocks. Destroy releases the lock.
//
// The walk starts at the tiny and probation tails and yields whichever loses
// the frequency comparison; the protected segment is only drawn from once
// tiny or probation runs dry. There is no way to step backwards.
type EvictionIterator[T Node[T]] struct {
	c *Container[T]

	// Reverse cursors, one per segment. The zero value marks an exhausted
	// cursor.
	tIter T
	pIter T
	mIter T

	locked bool
}

// GetEvictionIterator acquires the container lock and returns an iterator
// positioned at the first eviction candidate. The caller must Destroy it.
func (c *Container[T]) GetEvictionIterator() *EvictionIterator[T] {
	c.mu.Lock()
	it := &EvictionIterator[T]{c: c, locked: true}
	it.resetCursorsToBegin()
	return it
}

// WithEvictionIterator runs fn with a fresh iterator and destroys it
// afterwards. fn must not re-enter the container.
func (c *Container[T]) WithEvictionIterator(fn func(*EvictionIterator[T])) {
	it := c.GetEvictionIterator()
	defer it.Destroy()
	fn(it)
}

// WithContainerLock runs fn under the container lock. fn must not re-enter
// the container.
func (c *Container[T]) WithContainerLock(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}

func (it *EvictionIterator[T]) resetCursorsToBegin() {
	it.tIter = it.c.lists[SegmentTiny].getTail()
	it.pIter = it.c.lists[SegmentProbation].getTail()
	it.mIter = it.c.lists[SegmentProtected].getTail()
}

// pick selects the cursor holding the current candidate. With tiny and
// probation both live their tails are compared and the less frequent yielded;
// with only one of them live against protected, the same comparison applies
// to tiny while probation always precedes protected.
func (it *EvictionIterator[T]) pick() *T {
	var zero T
	tOK, pOK, mOK := it.tIter != zero, it.pIter != zero, it.mIter != zero
	switch {
	case !pOK && !mOK:
		return &it.tIter
	case !pOK && !tOK:
		return &it.mIter
	case !tOK && !mOK:
		return &it.pIter
	case !pOK:
		if !it.c.admitToProbation(it.tIter, it.mIter) {
			return &it.tIter
		}
		return &it.mIter
	case !tOK:
		return &it.pIter
	default:
		if !it.c.admitToProbation(it.tIter, it.pIter) {
			return &it.tIter
		}
		return &it.pIter
	}
}

// Valid reports whether the iterator is positioned on an item.
func (it *EvictionIterator[T]) Valid() bool {
	var zero T
	return it.tIter != zero || it.pIter != zero || it.mIter != zero
}

// Get returns the current eviction candidate, or the zero value if the
// iterator is exhausted.
func (it *EvictionIterator[T]) Get() T {
	return *it.pick()
}

// Next advances past the current candidate. Panics if the iterator is
// exhausted.
func (it *EvictionIterator[T]) Next() {
	var zero T
	cursor := it.pick()
	if *cursor == zero {
		panic("wtinylfu: advancing an exhausted eviction iterator")
	}
	*cursor = prevOf(*cursor)
}

// Remove takes the current candidate out of the container and advances the
// iterator. Panics if the iterator is exhausted.
func (it *EvictionIterator[T]) Remove() {
	var zero T
	node := it.Get()
	if node == zero {
		panic("wtinylfu: removing at an exhausted eviction iterator")
	}
	it.Next()
	it.c.removeLocked(node)
}

// Reset invalidates the iterator without releasing the lock.
func (it *EvictionIterator[T]) Reset() {
	var zero T
	it.tIter = zero
	it.pIter = zero
	it.mIter = zero
}

// ResetToBegin repositions the iterator at the first candidate, re-acquiring
// the lock if the iterator was destroyed.
func (it *EvictionIterator[T]) ResetToBegin() {
	if !it.locked {
		it.c.mu.Lock()
		it.locked = true
	}
	it.resetCursorsToBegin()
}

// Destroy invalidates the iterator and releases the container lock. Safe to
// call more than once.
func (it *EvictionIterator[T]) Destroy() {
	it.Reset()
	if it.locked {
		it.locked = false
		it.c.mu.Unlock()
	}
}
