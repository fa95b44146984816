// Package replacer implements the LRU-K frame replacement policy used by
// the buffer pool to choose an eviction victim (spec §4.1).
package replacer

import (
	"errors"
	"math"
	"sync"

	"github.com/bits-and-blooms/bitset"

	"bptreedb/pkg/list"
)

// ErrNotEvictable is returned by Remove when asked to forget a frame
// that isn't currently marked evictable.
var ErrNotEvictable = errors.New("replacer: frame is not evictable")

// infiniteDistance stands in for a backward k-distance of +Inf: a frame
// that has been accessed fewer than K times.
const infiniteDistance = math.MaxInt64

// frameState is the per-frame bookkeeping the replacer keeps: a bounded
// history of up to K access timestamps (oldest at the head), plus the
// very first access the frame ever recorded (used only to break ties
// among +Inf frames).
type frameState struct {
	history     *list.List
	count       int
	firstAccess int64
	lastAccess  int64
}

// LRUKReplacer tracks access history for every frame in the buffer pool
// and selects an eviction victim using the backward k-distance rule of
// spec §4.1: among evictable frames, evict the one whose K-th most
// recent access is furthest in the past.
type LRUKReplacer struct {
	mu        sync.Mutex
	k         int
	clock     int64
	frames    map[int]*frameState
	evictable *bitset.BitSet
}

// New constructs a replacer for a pool with the given number of frames
// and the given K.
func New(numFrames int, k int) *LRUKReplacer {
	if k < 1 {
		k = 1
	}
	return &LRUKReplacer{
		k:         k,
		frames:    make(map[int]*frameState),
		evictable: bitset.New(uint(numFrames)),
	}
}

// RecordAccess logs a new access to frameID, advancing the replacer's
// logical clock. It does not affect evictability.
func (r *LRUKReplacer) RecordAccess(frameID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clock++
	st, ok := r.frames[frameID]
	if !ok {
		st = &frameState{history: list.NewList(), firstAccess: r.clock}
		r.frames[frameID] = st
	}
	st.history.PushTail(r.clock)
	st.count++
	if st.count > r.k {
		st.history.PeekHead().PopSelf()
		st.count--
	}
	st.lastAccess = r.clock
}

// SetEvictable marks frameID as evictable or not. A frame that has
// never been accessed is treated as fresh state: SetEvictable may be
// called on it regardless.
func (r *LRUKReplacer) SetEvictable(frameID int, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.frames[frameID]; !ok {
		r.frames[frameID] = &frameState{history: list.NewList()}
	}
	if evictable {
		r.evictable.Set(uint(frameID))
	} else {
		r.evictable.Clear(uint(frameID))
	}
}

// Remove forgets frameID entirely, forbidding its future selection as a
// victim until it is accessed again. Fails if the frame isn't
// evictable.
func (r *LRUKReplacer) Remove(frameID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.evictable.Test(uint(frameID)) {
		return ErrNotEvictable
	}
	delete(r.frames, frameID)
	r.evictable.Clear(uint(frameID))
	return nil
}

// Evict selects and forgets a victim frame, returning its id. The
// second return value is false when no frame is evictable.
func (r *LRUKReplacer) Evict() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bestFrame := -1
	var bestDistance int64 = -1
	var bestTie int64

	for i, ok := r.evictable.NextSet(0); ok; i, ok = r.evictable.NextSet(i + 1) {
		frameID := int(i)
		st := r.frames[frameID]
		distance, tie := kDistance(st, r.k, r.clock)
		if bestFrame == -1 || isBetterVictim(distance, tie, bestDistance, bestTie) {
			bestFrame, bestDistance, bestTie = frameID, distance, tie
		}
	}
	if bestFrame == -1 {
		return 0, false
	}
	delete(r.frames, bestFrame)
	r.evictable.Clear(uint(bestFrame))
	return bestFrame, true
}

// kDistance returns a frame's backward k-distance and its tie-break
// value: the frame's first-ever access when the distance is infinite
// (fewer than k accesses recorded), or its most recent access otherwise.
func kDistance(st *frameState, k int, now int64) (distance int64, tie int64) {
	if st == nil || st.count < k {
		if st == nil {
			return infiniteDistance, 0
		}
		return infiniteDistance, st.firstAccess
	}
	oldestInWindow := st.history.PeekHead().GetValue().(int64)
	return now - oldestInWindow, st.lastAccess
}

// isBetterVictim reports whether (distance, tie) should be preferred
// over the current best (bestDistance, bestTie) per spec §4.1's
// selection rule: larger backward k-distance wins; among +Inf frames,
// the smaller (earlier) tie value wins; among finite ties, the smaller
// (older) tie value wins.
func isBetterVictim(distance, tie, bestDistance, bestTie int64) bool {
	if distance != bestDistance {
		return distance > bestDistance
	}
	return tie < bestTie
}
