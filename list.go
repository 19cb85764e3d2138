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

// dlist is an intrusive doubly-linked list ordered most-recently-touched at
// the head. It does not own its elements; items are linked through the Hook
// they carry. prev points toward the head, next toward the tail. All methods
// must be called with the container lock held.
type dlist[T Node[T]] struct {
	head T
	tail T
	size int
}

func (l *dlist[T]) len() int { return l.size }

// getHead returns the first element or the zero value if the list is empty.
func (l *dlist[T]) getHead() T { return l.head }

// getTail returns the last element or the zero value if the list is empty.
func (l *dlist[T]) getTail() T { return l.tail }

func (l *dlist[T]) linkAtHead(n T) {
	var zero T
	h := n.EvictionHook()
	h.prev = zero
	h.next = l.head
	if l.head != zero {
		l.head.EvictionHook().prev = n
	}
	l.head = n
	if l.tail == zero {
		l.tail = n
	}
	l.size++
}

func (l *dlist[T]) linkAtTail(n T) {
	var zero T
	h := n.EvictionHook()
	h.next = zero
	h.prev = l.tail
	if l.tail != zero {
		l.tail.EvictionHook().next = n
	}
	l.tail = n
	if l.head == zero {
		l.head = n
	}
	l.size++
}

// remove unlinks n and clears its link slots. n must be in this list.
func (l *dlist[T]) remove(n T) {
	var zero T
	h := n.EvictionHook()
	if h.prev != zero {
		h.prev.EvictionHook().next = h.next
	} else {
		l.head = h.next
	}
	if h.next != zero {
		h.next.EvictionHook().prev = h.prev
	} else {
		l.tail = h.prev
	}
	h.next = zero
	h.prev = zero
	l.size--
}

func (l *dlist[T]) moveToHead(n T) {
	if l.head == n {
		return
	}
	l.remove(n)
	l.linkAtHead(n)
}

// replace swaps newNode into oldNode's position. oldNode must be in this
// list and newNode must be unlinked.
func (l *dlist[T]) replace(oldNode, newNode T) {
	var zero T
	oh := oldNode.EvictionHook()
	nh := newNode.EvictionHook()
	nh.prev = oh.prev
	nh.next = oh.next
	if oh.prev != zero {
		oh.prev.EvictionHook().next = newNode
	} else {
		l.head = newNode
	}
	if oh.next != zero {
		oh.next.EvictionHook().prev = newNode
	} else {
		l.tail = newNode
	}
	oh.next = zero
	oh.prev = zero
}

// prevOf steps from n toward the head, the direction a reverse (tail-first)
// walk advances in. Returns the zero value past the head.
func prevOf[T Node[T]](n T) T {
	return n.EvictionHook().prev
}
