// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pool

import (
	"code.hybscloud.com/atomix"
)

// deque is a bounded Chase-Lev work-stealing deque. The owning worker
// pushes and pops from the back (bottom); any other worker may steal from
// the front (top). Both ends race only at the last element, resolved by a
// CAS on top.
//
// Fixed capacity trades unbounded growth for a simple, allocation-free
// fast path: when Push reports the deque full, the caller falls back to
// the pool's shared MPMC overflow queue (spec.md §4.2).
type deque struct {
	_      pad
	top    atomix.Int64 // steal end, advanced by CAS
	_      pad
	bottom atomix.Int64 // owner end, advanced only by the owner
	_      pad
	buffer []task
	mask   int64
}

type pad [64]byte

func newDeque(capacity int) *deque {
	n := roundToPow2(capacity)
	return &deque{
		buffer: make([]task, n),
		mask:   int64(n - 1),
	}
}

func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

// pushBack is owner-only. Returns false if the deque is at capacity.
func (d *deque) pushBack(t task) bool {
	b := d.bottom.LoadRelaxed()
	top := d.top.LoadAcquire()
	if b-top >= int64(len(d.buffer)) {
		return false
	}
	d.buffer[b&d.mask] = t
	d.bottom.StoreRelease(b + 1)
	return true
}

// popBack is owner-only, LIFO from the back. Races the last element
// against concurrent stealFront calls.
func (d *deque) popBack() (task, bool) {
	b := d.bottom.LoadRelaxed() - 1
	d.bottom.StoreRelaxed(b)
	top := d.top.LoadAcquire()

	if top > b {
		// Already empty; restore bottom.
		d.bottom.StoreRelaxed(top)
		var zero task
		return zero, false
	}

	v := d.buffer[b&d.mask]
	if top == b {
		// Last element: race a thief for it.
		if !d.top.CompareAndSwapAcqRel(top, top+1) {
			d.bottom.StoreRelaxed(top + 1)
			var zero task
			return zero, false
		}
		d.bottom.StoreRelaxed(top + 1)
	}
	return v, true
}

// stealFront may be called by any worker other than the owner, FIFO from
// the front.
func (d *deque) stealFront() (task, bool) {
	top := d.top.LoadAcquire()
	b := d.bottom.LoadAcquire()
	if top >= b {
		var zero task
		return zero, false
	}
	v := d.buffer[top&d.mask]
	if !d.top.CompareAndSwapAcqRel(top, top+1) {
		var zero task
		return zero, false
	}
	return v, true
}
