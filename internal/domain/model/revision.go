package model

import "time"

// Revision is a read-only view of one saved version of a page.
type Revision struct {
	ID          int64
	PageID      int64
	Timestamp   time.Time
	Fingerprint Fingerprint
}

// Window is the bounded chronological neighbourhood of a target revision.
// Past and Future are ascending by ID and exclude the target.
type Window struct {
	Target Revision
	Past   []Revision
	Future []Revision
}

// Revisions returns Past, Target and Future as one ascending stream.
func (w Window) Revisions() []Revision {
	out := make([]Revision, 0, len(w.Past)+1+len(w.Future))
	out = append(out, w.Past...)
	out = append(out, w.Target)
	out = append(out, w.Future...)
	return out
}

// Len returns the number of revisions in the window, target included.
func (w Window) Len() int {
	return len(w.Past) + 1 + len(w.Future)
}
