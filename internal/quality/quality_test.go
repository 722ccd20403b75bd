package quality_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	classifiermocks "github.com/emperorhan/revision-indexer/internal/classifier/mocks"
	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/quality"
	storemocks "github.com/emperorhan/revision-indexer/internal/store/mocks"
)

type sliceSource struct {
	periods []model.ArticlePeriod
	err     error
}

func (s *sliceSource) Next() (model.ArticlePeriod, error) {
	if len(s.periods) == 0 {
		if s.err != nil {
			return model.ArticlePeriod{}, s.err
		}
		return model.ArticlePeriod{}, io.EOF
	}
	p := s.periods[0]
	s.periods = s.periods[1:]
	return p, nil
}

type memorySink struct {
	records []model.QualityRecord
}

func (m *memorySink) Write(rec model.QualityRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func prevRev(id int64) []model.Revision {
	return []model.Revision{{ID: id, PageID: 1, Timestamp: time.Unix(0, 0).UTC()}}
}

func TestWeightedSum(t *testing.T) {
	tests := []struct {
		name  string
		probs map[string]float64
		want  float64
	}{
		{"empty", nil, 0},
		{"certain FA", map[string]float64{"FA": 1}, 5},
		{"mixed", map[string]float64{"B": 0.5, "C": 0.25, "Start": 0.25}, 2.25},
		{"stub contributes nothing", map[string]float64{"Stub": 1}, 0},
		{"unknown class ignored", map[string]float64{"A": 0.5, "GA": 0.5}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, quality.WeightedSum(tc.probs), 1e-9)
		})
	}
}

func TestRunner_Score(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := storemocks.NewMockRevisionStore(ctrl)
	sc := classifiermocks.NewMockQualityScorer(ctrl)
	ctx := context.Background()

	st.EXPECT().FetchOlder(ctx, int64(1), int64(100), 1).Return(prevRev(99), nil)
	sc.EXPECT().ScoreQuality(ctx, int64(99)).Return(model.QualityScore{
		Prediction: "Stub", Probabilities: map[string]float64{"Stub": 0.75, "Start": 0.25},
	}, nil)
	sc.EXPECT().ScoreQuality(ctx, int64(200)).Return(model.QualityScore{
		Prediction: "B", Probabilities: map[string]float64{"B": 1},
	}, nil)

	rec, err := quality.NewRunner(st, sc, nil).Score(ctx, model.ArticlePeriod{PageID: 1, StartRevID: 100, EndRevID: 200})
	require.NoError(t, err)
	assert.Equal(t, model.QualityRecord{
		PageID: 1, PrevRevID: 99, PrevPrediction: "Stub", PrevWeightedSum: 0.25,
		EndRevID: 200, EndPrediction: "B", EndWeightedSum: 3,
	}, rec)
}

func TestRunner_RunSkipsMissingAndFailedPeriods(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := storemocks.NewMockRevisionStore(ctrl)
	sc := classifiermocks.NewMockQualityScorer(ctrl)
	ctx := context.Background()

	// page 1: first revision of the page, nothing before it
	st.EXPECT().FetchOlder(ctx, int64(1), int64(10), 1).Return(nil, nil)
	// page 2: classifier fails on the end revision
	st.EXPECT().FetchOlder(ctx, int64(2), int64(20), 1).Return(prevRev(19), nil)
	sc.EXPECT().ScoreQuality(ctx, int64(19)).Return(model.QualityScore{Prediction: "C"}, nil)
	sc.EXPECT().ScoreQuality(ctx, int64(25)).Return(model.QualityScore{}, errors.New("deleted text"))
	// page 3: fine
	st.EXPECT().FetchOlder(ctx, int64(3), int64(30), 1).Return(prevRev(29), nil)
	sc.EXPECT().ScoreQuality(ctx, int64(29)).Return(model.QualityScore{Prediction: "GA", Probabilities: map[string]float64{"GA": 1}}, nil)
	sc.EXPECT().ScoreQuality(ctx, int64(35)).Return(model.QualityScore{Prediction: "FA", Probabilities: map[string]float64{"FA": 1}}, nil)

	src := &sliceSource{periods: []model.ArticlePeriod{
		{PageID: 1, StartRevID: 10, EndRevID: 15},
		{PageID: 2, StartRevID: 20, EndRevID: 25},
		{PageID: 3, StartRevID: 30, EndRevID: 35},
	}}
	sink := &memorySink{}

	sum, err := quality.NewRunner(st, sc, nil).Run(ctx, src, sink)
	require.NoError(t, err)
	assert.Equal(t, quality.Summary{Read: 3, Written: 1, Missing: 1, Failed: 1}, sum)
	require.Len(t, sink.records, 1)
	assert.Equal(t, int64(3), sink.records[0].PageID)
	assert.Equal(t, 4.0, sink.records[0].PrevWeightedSum)
	assert.Equal(t, 5.0, sink.records[0].EndWeightedSum)
}

func TestRunner_RunStopsOnReadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := quality.NewRunner(storemocks.NewMockRevisionStore(ctrl), classifiermocks.NewMockQualityScorer(ctrl), nil)

	boom := errors.New("bad row")
	_, err := runner.Run(context.Background(), &sliceSource{err: boom}, &memorySink{})
	assert.ErrorIs(t, err, boom)
}

func TestRunner_RunCanceled(t *testing.T) {
	ctrl := gomock.NewController(t)
	runner := quality.NewRunner(storemocks.NewMockRevisionStore(ctrl), classifiermocks.NewMockQualityScorer(ctrl), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.Run(ctx, &sliceSource{periods: []model.ArticlePeriod{{PageID: 1}}}, &memorySink{})
	assert.ErrorIs(t, err, context.Canceled)
}
