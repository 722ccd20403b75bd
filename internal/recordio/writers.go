package recordio

import (
	"fmt"
	"io"
	"strconv"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

var (
	StatusHeader  = []string{"rev_id", "reverting", "reverted", "score"}
	FailureHeader = []string{"rev_id", "error"}
	QualityHeader = []string{
		"page_id",
		"prev_rev_id", "prev_prediction", "prev_weighted_sum",
		"end_rev_id", "end_prediction", "end_weighted_sum",
	}
)

// StatusWriter writes revert status rows. It is not safe for concurrent use.
type StatusWriter struct {
	rw *rowWriter
}

func NewStatusWriter(w io.Writer) (*StatusWriter, error) {
	rw, err := newRowWriter(w, StatusHeader...)
	if err != nil {
		return nil, err
	}
	return &StatusWriter{rw: rw}, nil
}

func (w *StatusWriter) Write(rec model.StatusRecord) error {
	if err := w.rw.write(
		strconv.FormatInt(rec.RevID, 10),
		formatFlag(rec.Reverting),
		formatFlag(rec.Reverted),
		formatOptionalFloat(rec.Score),
	); err != nil {
		return fmt.Errorf("write status for %d: %w", rec.RevID, err)
	}
	return nil
}

func (w *StatusWriter) Flush() error { return w.rw.Flush() }

// FailureWriter records revisions that could not be labeled.
type FailureWriter struct {
	rw *rowWriter
}

func NewFailureWriter(w io.Writer) (*FailureWriter, error) {
	rw, err := newRowWriter(w, FailureHeader...)
	if err != nil {
		return nil, err
	}
	return &FailureWriter{rw: rw}, nil
}

func (w *FailureWriter) WriteFailure(revID int64, cause error) error {
	msg := null
	if cause != nil {
		msg = cause.Error()
	}
	if err := w.rw.write(strconv.FormatInt(revID, 10), msg); err != nil {
		return fmt.Errorf("write failure for %d: %w", revID, err)
	}
	return nil
}

func (w *FailureWriter) Flush() error { return w.rw.Flush() }

// QualityWriter writes quality comparison rows.
type QualityWriter struct {
	rw *rowWriter
}

func NewQualityWriter(w io.Writer) (*QualityWriter, error) {
	rw, err := newRowWriter(w, QualityHeader...)
	if err != nil {
		return nil, err
	}
	return &QualityWriter{rw: rw}, nil
}

func (w *QualityWriter) Write(rec model.QualityRecord) error {
	if err := w.rw.write(
		strconv.FormatInt(rec.PageID, 10),
		strconv.FormatInt(rec.PrevRevID, 10),
		rec.PrevPrediction,
		formatFloat(rec.PrevWeightedSum),
		strconv.FormatInt(rec.EndRevID, 10),
		rec.EndPrediction,
		formatFloat(rec.EndWeightedSum),
	); err != nil {
		return fmt.Errorf("write quality for page %d: %w", rec.PageID, err)
	}
	return nil
}

func (w *QualityWriter) Flush() error { return w.rw.Flush() }
