package revertdetector

import (
	"github.com/emperorhan/revision-indexer/internal/domain/event"
	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

// Detector finds identity reverts in a chronological stream of revisions.
//
// It keeps the last radius+1 revisions in a ring buffer together with an
// index from fingerprint to the sequence number of its most recent
// occurrence, so each revision is matched in constant time. A revision
// reverts to an earlier one when their fingerprints match and the earlier
// one is at most radius steps back.
//
// A Detector is a sequential fold and must not be shared between goroutines.
type Detector struct {
	radius int
	ring   []model.Revision
	size   int
	next   int64 // sequence number assigned to the next processed revision

	// latest maps a fingerprint digest to the sequence number of its most
	// recent buffered occurrence.
	latest map[string]int64
}

// NewDetector creates a detector with the given lookback radius.
// Negative radii are treated as zero, which never detects anything.
func NewDetector(radius int) *Detector {
	if radius < 0 {
		radius = 0
	}
	return &Detector{
		radius: radius,
		ring:   make([]model.Revision, radius+1),
		latest: make(map[string]int64, radius+1),
	}
}

// Radius returns the configured lookback.
func (d *Detector) Radius() int {
	return d.radius
}

// Process consumes the next revision and returns the revert it completes, if any.
// Revisions must be supplied in ascending ID order.
func (d *Detector) Process(rev model.Revision) (event.RevertEvent, bool) {
	var (
		revert event.RevertEvent
		found  bool
	)

	if digest, ok := rev.Fingerprint.Digest(); ok {
		if matchSeq, seen := d.latest[digest]; seen {
			steps := d.next - matchSeq
			oldest := d.next - int64(d.size)
			if steps >= 1 && steps <= int64(d.radius) && matchSeq >= oldest {
				revert = d.revertTo(rev, matchSeq)
				found = true
			}
		}
	}

	// Eviction happens after matching so an entry exactly radius steps back
	// is still eligible above.
	d.push(rev)
	return revert, found
}

func (d *Detector) revertTo(reverting model.Revision, matchSeq int64) event.RevertEvent {
	reverteds := make([]model.Revision, 0, d.next-matchSeq-1)
	for seq := matchSeq + 1; seq < d.next; seq++ {
		reverteds = append(reverteds, d.at(seq))
	}
	return event.RevertEvent{
		Reverting:  reverting,
		RevertedTo: d.at(matchSeq),
		Reverteds:  reverteds,
	}
}

func (d *Detector) push(rev model.Revision) {
	capacity := len(d.ring)
	if d.size == capacity {
		oldestSeq := d.next - int64(d.size)
		evicted := d.at(oldestSeq)
		if digest, ok := evicted.Fingerprint.Digest(); ok && d.latest[digest] == oldestSeq {
			delete(d.latest, digest)
		}
		d.size--
	}

	d.ring[d.slot(d.next)] = rev
	d.size++
	if digest, ok := rev.Fingerprint.Digest(); ok {
		d.latest[digest] = d.next
	}
	d.next++
}

func (d *Detector) at(seq int64) model.Revision {
	return d.ring[d.slot(seq)]
}

func (d *Detector) slot(seq int64) int {
	return int(seq % int64(len(d.ring)))
}

// Detect runs a fresh detector over revs and returns every revert in order.
func Detect(revs []model.Revision, radius int) []event.RevertEvent {
	d := NewDetector(radius)
	var reverts []event.RevertEvent
	for _, rev := range revs {
		if revert, ok := d.Process(rev); ok {
			reverts = append(reverts, revert)
		}
	}
	return reverts
}
