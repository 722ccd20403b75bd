package classifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

//go:generate mockgen -destination=mocks/mock_scorer.go -package=mocks . Scorer,QualityScorer

// ErrUnavailable wraps every failure to obtain a score.
var ErrUnavailable = errors.New("classifier unavailable")

// Model names as used in score URLs and cache keys.
const (
	ModelReverted = "reverted"
	ModelWP10     = "wp10"
)

// Scorer returns the probability that a revision will be reverted.
type Scorer interface {
	ScoreReverted(ctx context.Context, revID int64) (float64, error)
}

// QualityScorer returns the article-quality class distribution of a revision.
type QualityScorer interface {
	ScoreQuality(ctx context.Context, revID int64) (model.QualityScore, error)
}

// StatusError is a non-200 response from the scoring service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Code }

// ScoreError is an error document returned in place of a score, for example
// when the revision text was deleted.
type ScoreError struct {
	RevID   int64
	Type    string
	Message string
}

func (e *ScoreError) Error() string {
	return fmt.Sprintf("score revision %d: %s: %s", e.RevID, e.Type, e.Message)
}

func unavailable(err error) error {
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
