package annotator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/emperorhan/revision-indexer/internal/classifier"
	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

// Annotator attaches a vandalism likelihood to reverted revisions.
type Annotator struct {
	scorer classifier.Scorer
}

func New(scorer classifier.Scorer) *Annotator {
	return &Annotator{scorer: scorer}
}

// Annotate returns nil without calling the classifier unless status.Reverted
// is true. Any classifier failure, including an out-of-range score, yields a
// nil score and an error wrapping classifier.ErrUnavailable.
func (a *Annotator) Annotate(ctx context.Context, revID int64, status model.Status) (*float64, error) {
	if !status.Reverted.IsTrue() {
		return nil, nil
	}

	score, err := a.scorer.ScoreReverted(ctx, revID)
	if err != nil {
		return nil, fmt.Errorf("annotate revision %d: %w", revID, asUnavailable(err))
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return nil, fmt.Errorf("annotate revision %d: %w: score %v outside [0, 1]", revID, classifier.ErrUnavailable, score)
	}
	return &score, nil
}

func asUnavailable(err error) error {
	if errors.Is(err, classifier.ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", classifier.ErrUnavailable, err)
}
