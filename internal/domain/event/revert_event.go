package event

import "github.com/emperorhan/revision-indexer/internal/domain/model"

// RevertEvent records that Reverting restored the content of RevertedTo,
// undoing every revision in between.
//
// RevertedTo.ID < Reverteds[i].ID < Reverting.ID for all i, and Reverting's
// fingerprint matches RevertedTo's. Reverteds is empty when Reverting directly
// follows RevertedTo.
type RevertEvent struct {
	Reverting  model.Revision
	RevertedTo model.Revision
	Reverteds  []model.Revision
}

// Span is the number of revisions undone by the revert.
func (e RevertEvent) Span() int {
	return len(e.Reverteds)
}

// Undid reports whether revID is one of the reverted revisions.
func (e RevertEvent) Undid(revID int64) bool {
	for _, r := range e.Reverteds {
		if r.ID == revID {
			return true
		}
	}
	return false
}
