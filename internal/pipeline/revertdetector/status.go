package revertdetector

import (
	"github.com/emperorhan/revision-indexer/internal/domain/event"
	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

// ExtractStatus reduces the reverts found in a window to the flags of one
// revision. A revision may be both reverting and reverted. Reverts with no
// reverted revisions still mark their reverting revision.
func ExtractStatus(revID int64, reverts []event.RevertEvent) model.Status {
	var reverting, reverted bool
	for _, r := range reverts {
		if r.Reverting.ID == revID {
			reverting = true
		}
		if !reverted && r.Undid(revID) {
			reverted = true
		}
	}
	return model.Status{
		Reverting: model.FlagOf(reverting),
		Reverted:  model.FlagOf(reverted),
	}
}

// WindowStatus detects reverts inside w and extracts the target's flags.
func WindowStatus(w model.Window, radius int) (model.Status, []event.RevertEvent) {
	reverts := Detect(w.Revisions(), radius)
	return ExtractStatus(w.Target.ID, reverts), reverts
}
