package recordio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

// RevisionIDReader reads one revision ID per row from the first column.
// A leading row whose first column is not an integer is taken as a header.
type RevisionIDReader struct {
	rows  *rowReader
	first bool
}

func NewRevisionIDReader(r io.Reader) *RevisionIDReader {
	return &RevisionIDReader{rows: newRowReader(r), first: true}
}

// Next returns the next revision ID or io.EOF.
func (r *RevisionIDReader) Next() (int64, error) {
	for {
		fields, err := r.rows.next()
		if err != nil {
			return 0, err
		}
		raw := field(fields, 0)
		id, err := parseID(raw)
		if err != nil {
			if r.first {
				r.first = false
				continue
			}
			return 0, fmt.Errorf("line %d: parse rev_id %q: %w", r.rows.line, raw, err)
		}
		r.first = false
		return id, nil
	}
}

// Feed sends every ID to out and closes it when input is exhausted.
func (r *RevisionIDReader) Feed(ctx context.Context, out chan<- int64) error {
	defer close(out)
	for {
		id, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case out <- id:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PeriodReader reads article periods. The first row must be a header naming
// page_id, start_rev_id and end_rev_id; other columns are ignored.
type PeriodReader struct {
	rows *rowReader
	idx  map[string]int
}

func NewPeriodReader(r io.Reader) (*PeriodReader, error) {
	rows := newRowReader(r)
	header, err := rows.next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("period input is empty")
	}
	if err != nil {
		return nil, err
	}
	idx, err := headerIndex(header, "page_id", "start_rev_id", "end_rev_id")
	if err != nil {
		return nil, err
	}
	return &PeriodReader{rows: rows, idx: idx}, nil
}

// Next returns the next period or io.EOF.
func (r *PeriodReader) Next() (model.ArticlePeriod, error) {
	fields, err := r.rows.next()
	if err != nil {
		return model.ArticlePeriod{}, err
	}
	var p model.ArticlePeriod
	for _, col := range []struct {
		name string
		dst  *int64
	}{
		{"page_id", &p.PageID},
		{"start_rev_id", &p.StartRevID},
		{"end_rev_id", &p.EndRevID},
	} {
		raw := field(fields, r.idx[col.name])
		v, err := parseID(raw)
		if err != nil {
			return model.ArticlePeriod{}, fmt.Errorf("line %d: parse %s %q: %w", r.rows.line, col.name, raw, err)
		}
		*col.dst = v
	}
	return p, nil
}

// mediawikiTimestamp is the compact UTC layout of rev_timestamp columns.
const mediawikiTimestamp = "20060102150405"

// HistoryReader reads revision metadata rows for bulk import. The header must
// name rev_id, rev_page, rev_timestamp and rev_sha1. A NULL or empty sha1
// yields an indeterminate fingerprint.
type HistoryReader struct {
	rows *rowReader
	idx  map[string]int
}

func NewHistoryReader(r io.Reader) (*HistoryReader, error) {
	rows := newRowReader(r)
	header, err := rows.next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("revision input is empty")
	}
	if err != nil {
		return nil, err
	}
	idx, err := headerIndex(header, "rev_id", "rev_page", "rev_timestamp", "rev_sha1")
	if err != nil {
		return nil, err
	}
	return &HistoryReader{rows: rows, idx: idx}, nil
}

// Next returns the next revision or io.EOF.
func (r *HistoryReader) Next() (model.Revision, error) {
	fields, err := r.rows.next()
	if err != nil {
		return model.Revision{}, err
	}
	line := r.rows.line

	id, err := parseID(field(fields, r.idx["rev_id"]))
	if err != nil {
		return model.Revision{}, fmt.Errorf("line %d: parse rev_id: %w", line, err)
	}
	page, err := parseID(field(fields, r.idx["rev_page"]))
	if err != nil {
		return model.Revision{}, fmt.Errorf("line %d: parse rev_page: %w", line, err)
	}
	ts, err := parseTimestamp(field(fields, r.idx["rev_timestamp"]))
	if err != nil {
		return model.Revision{}, fmt.Errorf("line %d: parse rev_timestamp: %w", line, err)
	}

	fp := model.IndeterminateFingerprint()
	if sha1 := field(fields, r.idx["rev_sha1"]); sha1 != null {
		fp = model.NewFingerprint(sha1)
	}
	return model.Revision{ID: id, PageID: page, Timestamp: ts, Fingerprint: fp}, nil
}

// Batches reads the remaining rows and hands them to fn in groups of size.
func (r *HistoryReader) Batches(ctx context.Context, size int, fn func(context.Context, []model.Revision) error) (int, error) {
	if size <= 0 {
		size = 1000
	}
	total := 0
	batch := make([]model.Revision, 0, size)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := fn(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		rev, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return total, err
		}
		batch = append(batch, rev)
		if len(batch) == size {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	return total, flush()
}

func parseTimestamp(s string) (time.Time, error) {
	if len(s) == len(mediawikiTimestamp) && !strings.ContainsAny(s, "-:T") {
		return time.ParseInLocation(mediawikiTimestamp, s, time.UTC)
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// StatusReader reads rows written by StatusWriter.
type StatusReader struct {
	rows *rowReader
	idx  map[string]int
}

func NewStatusReader(r io.Reader) (*StatusReader, error) {
	rows := newRowReader(r)
	header, err := rows.next()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("status input is empty")
	}
	if err != nil {
		return nil, err
	}
	idx, err := headerIndex(header, StatusHeader...)
	if err != nil {
		return nil, err
	}
	return &StatusReader{rows: rows, idx: idx}, nil
}

// Next returns the next status record or io.EOF.
func (r *StatusReader) Next() (model.StatusRecord, error) {
	fields, err := r.rows.next()
	if err != nil {
		return model.StatusRecord{}, err
	}
	line := r.rows.line

	var rec model.StatusRecord
	if rec.RevID, err = parseID(field(fields, r.idx["rev_id"])); err != nil {
		return model.StatusRecord{}, fmt.Errorf("line %d: parse rev_id: %w", line, err)
	}
	if rec.Reverting, err = parseFlag(field(fields, r.idx["reverting"])); err != nil {
		return model.StatusRecord{}, fmt.Errorf("line %d: parse reverting: %w", line, err)
	}
	if rec.Reverted, err = parseFlag(field(fields, r.idx["reverted"])); err != nil {
		return model.StatusRecord{}, fmt.Errorf("line %d: parse reverted: %w", line, err)
	}
	if rec.Score, err = parseOptionalFloat(field(fields, r.idx["score"])); err != nil {
		return model.StatusRecord{}, fmt.Errorf("line %d: parse score: %w", line, err)
	}
	return rec, nil
}

// ReadAllStatuses drains r into a slice.
func ReadAllStatuses(r io.Reader) ([]model.StatusRecord, error) {
	sr, err := NewStatusReader(r)
	if err != nil {
		return nil, err
	}
	var out []model.StatusRecord
	for {
		rec, err := sr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
}
