package revertdetector

import (
	"testing"
	"time"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/stretchr/testify/assert"
)

func TestExtractStatus(t *testing.T) {
	testCases := []struct {
		name      string
		digests   []string
		target    int64
		radius    int
		reverting model.Flag
		reverted  model.Flag
	}{
		{name: "reverted middle", digests: []string{"A", "B", "A"}, target: 2, radius: 15, reverting: model.FlagFalse, reverted: model.FlagTrue},
		{name: "reverting last", digests: []string{"A", "B", "A"}, target: 3, radius: 15, reverting: model.FlagTrue, reverted: model.FlagFalse},
		{name: "reverted-to is neither", digests: []string{"A", "B", "A"}, target: 1, radius: 15, reverting: model.FlagFalse, reverted: model.FlagFalse},
		{name: "no reverts", digests: []string{"A", "B", "C"}, target: 2, radius: 15, reverting: model.FlagFalse, reverted: model.FlagFalse},
		{name: "identical resubmission counts as reverting", digests: []string{"A", "A"}, target: 2, radius: 1, reverting: model.FlagTrue, reverted: model.FlagFalse},
		{name: "both reverting and reverted", digests: []string{"A", "B", "A", "B"}, target: 3, radius: 15, reverting: model.FlagTrue, reverted: model.FlagTrue},
		{name: "radius zero", digests: []string{"A", "B", "A"}, target: 2, radius: 0, reverting: model.FlagFalse, reverted: model.FlagFalse},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			status := ExtractStatus(tc.target, Detect(history(tc.digests...), tc.radius))
			assert.Equal(t, tc.reverting, status.Reverting)
			assert.Equal(t, tc.reverted, status.Reverted)
		})
	}
}

func TestExtractStatus_NoEventsIsKnownFalse(t *testing.T) {
	status := ExtractStatus(42, nil)
	assert.Equal(t, model.FlagFalse, status.Reverting)
	assert.Equal(t, model.FlagFalse, status.Reverted)
}

func TestWindowStatus_FirstRevisionCannotBeReverting(t *testing.T) {
	revs := history("A", "B", "A")
	w := model.Window{Target: revs[0], Future: revs[1:]}

	status, reverts := WindowStatus(w, 15)

	assert.Len(t, reverts, 1)
	assert.Equal(t, model.FlagFalse, status.Reverting)
	assert.Equal(t, model.FlagFalse, status.Reverted)
}

func TestWindowStatus_TargetUndoneByFuture(t *testing.T) {
	revs := history("A", "B", "C", "A")
	w := model.Window{Target: revs[1], Past: revs[:1], Future: revs[2:]}

	status, _ := WindowStatus(w, 15)

	assert.Equal(t, model.FlagTrue, status.Reverted)
	assert.Equal(t, model.FlagFalse, status.Reverting)
}

func TestWindowStatus_TargetOnlyWindow(t *testing.T) {
	w := model.Window{Target: model.Revision{ID: 7, Timestamp: time.Now(), Fingerprint: model.NewFingerprint("A")}}

	status, reverts := WindowStatus(w, 0)

	assert.Empty(t, reverts)
	assert.Equal(t, model.FlagFalse, status.Reverting)
	assert.Equal(t, model.FlagFalse, status.Reverted)
}
