package recordio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

func ptr(v float64) *float64 { return &v }

func TestEscapeRoundTrip(t *testing.T) {
	in := "a\tb\nc\\d\re"
	assert.Equal(t, `a\tb\nc\\d\re`, escape(in))
	assert.Equal(t, in, unescape(escape(in)))
	assert.Equal(t, `\t`, unescape(`\\t`))
}

func TestRevisionIDReader_SkipsHeaderAndBlankLines(t *testing.T) {
	r := NewRevisionIDReader(strings.NewReader("rev_id\n101\n\n102\t\n103\n"))

	var got []int64
	for {
		id, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		got = append(got, id)
	}
	assert.Equal(t, []int64{101, 102, 103}, got)
}

func TestRevisionIDReader_NoHeader(t *testing.T) {
	r := NewRevisionIDReader(strings.NewReader("7\n8\n"))
	id, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestRevisionIDReader_RejectsGarbageAfterFirstRow(t *testing.T) {
	r := NewRevisionIDReader(strings.NewReader("1\nabc\n"))
	_, err := r.Next()
	require.NoError(t, err)

	_, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestRevisionIDReader_Feed(t *testing.T) {
	r := NewRevisionIDReader(strings.NewReader("rev_id\n1\n2\n3\n"))
	out := make(chan int64, 3)

	require.NoError(t, r.Feed(context.Background(), out))

	var got []int64
	for id := range out {
		got = append(got, id)
	}
	assert.Equal(t, []int64{1, 2, 3}, got)
}

func TestRevisionIDReader_FeedCanceled(t *testing.T) {
	r := NewRevisionIDReader(strings.NewReader("1\n2\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := r.Feed(ctx, make(chan int64))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPeriodReader(t *testing.T) {
	input := "page_id\ttitle\tstart_rev_id\tend_rev_id\tdays\n" +
		"12\tFoo\t100\t200\t30\n" +
		"13\tBar\\tBaz\t300\t400\t7\n"
	r, err := NewPeriodReader(strings.NewReader(input))
	require.NoError(t, err)

	p, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, model.ArticlePeriod{PageID: 12, StartRevID: 100, EndRevID: 200}, p)

	p, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, model.ArticlePeriod{PageID: 13, StartRevID: 300, EndRevID: 400}, p)

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestPeriodReader_Errors(t *testing.T) {
	_, err := NewPeriodReader(strings.NewReader(""))
	require.Error(t, err)

	_, err = NewPeriodReader(strings.NewReader("page_id\tend_rev_id\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_rev_id")

	r, err := NewPeriodReader(strings.NewReader("page_id\tstart_rev_id\tend_rev_id\n1\tx\t3\n"))
	require.NoError(t, err)
	_, err = r.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start_rev_id")
}

func TestHistoryReader(t *testing.T) {
	input := "rev_id\trev_page\trev_timestamp\trev_sha1\n" +
		"1\t10\t20150601120000\tabc\n" +
		"2\t10\t2015-06-01T13:00:00Z\tNULL\n"
	r, err := NewHistoryReader(strings.NewReader(input))
	require.NoError(t, err)

	rev, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, int64(1), rev.ID)
	assert.Equal(t, int64(10), rev.PageID)
	assert.Equal(t, time.Date(2015, 6, 1, 12, 0, 0, 0, time.UTC), rev.Timestamp)
	assert.True(t, rev.Fingerprint.Matches(model.NewFingerprint("abc")))

	rev, err = r.Next()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2015, 6, 1, 13, 0, 0, 0, time.UTC), rev.Timestamp)
	assert.True(t, rev.Fingerprint.IsIndeterminate())
}

func TestHistoryReader_Batches(t *testing.T) {
	var b strings.Builder
	b.WriteString("rev_id\trev_page\trev_timestamp\trev_sha1\n")
	for i := 1; i <= 5; i++ {
		b.WriteString(strings.Join([]string{
			string(rune('0' + i)), "1", "20200101000000", "h",
		}, "\t"))
		b.WriteString("\n")
	}
	r, err := NewHistoryReader(strings.NewReader(b.String()))
	require.NoError(t, err)

	var sizes []int
	total, err := r.Batches(context.Background(), 2, func(_ context.Context, revs []model.Revision) error {
		sizes = append(sizes, len(revs))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

func TestHistoryReader_BatchesStopsOnError(t *testing.T) {
	input := "rev_id\trev_page\trev_timestamp\trev_sha1\n1\t1\t20200101000000\th\n"
	r, err := NewHistoryReader(strings.NewReader(input))
	require.NoError(t, err)

	boom := errors.New("boom")
	total, err := r.Batches(context.Background(), 10, func(context.Context, []model.Revision) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, total)
}

func TestStatusWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewStatusWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.Write(model.StatusRecord{RevID: 1, Reverting: model.FlagTrue, Reverted: model.FlagFalse}))
	require.NoError(t, w.Write(model.StatusRecord{RevID: 2, Reverting: model.FlagFalse, Reverted: model.FlagTrue, Score: ptr(0.87)}))
	require.NoError(t, w.Write(model.StatusRecord{RevID: 3}))
	require.NoError(t, w.Flush())

	assert.Equal(t,
		"rev_id\treverting\treverted\tscore\n"+
			"1\tTrue\tFalse\tNULL\n"+
			"2\tFalse\tTrue\t0.87\n"+
			"3\tNULL\tNULL\tNULL\n",
		buf.String())
}

func TestFailureWriter_EscapesMessage(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewFailureWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.WriteFailure(9, errors.New("store unavailable:\tconn\nreset")))
	require.NoError(t, w.Flush())

	assert.Equal(t, "rev_id\terror\n9\tstore unavailable:\\tconn\\nreset\n", buf.String())
}

func TestQualityWriter(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewQualityWriter(&buf)
	require.NoError(t, err)

	require.NoError(t, w.Write(model.QualityRecord{
		PageID: 5, PrevRevID: 99, PrevPrediction: "Stub", PrevWeightedSum: 0.25,
		EndRevID: 200, EndPrediction: "B", EndWeightedSum: 2.5,
	}))
	require.NoError(t, w.Flush())

	assert.Equal(t,
		"page_id\tprev_rev_id\tprev_prediction\tprev_weighted_sum\tend_rev_id\tend_prediction\tend_weighted_sum\n"+
			"5\t99\tStub\t0.25\t200\tB\t2.5\n",
		buf.String())
}

func TestStatusReader_ReadsWriterOutput(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewStatusWriter(&buf)
	require.NoError(t, err)
	want := []model.StatusRecord{
		{RevID: 1, Reverting: model.FlagTrue, Reverted: model.FlagFalse},
		{RevID: 2, Reverting: model.FlagFalse, Reverted: model.FlagTrue, Score: ptr(0.125)},
		{RevID: 3},
	}
	for _, rec := range want {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Flush())

	got, err := ReadAllStatuses(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStatusReader_Errors(t *testing.T) {
	_, err := NewStatusReader(strings.NewReader("rev_id\treverting\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverted")

	_, err = ReadAllStatuses(strings.NewReader("rev_id\treverting\treverted\tscore\n1\tMaybe\tFalse\tNULL\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reverting")

	_, err = ReadAllStatuses(strings.NewReader("rev_id\treverting\treverted\tscore\n1\tTrue\tTrue\thigh\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "score")
}
