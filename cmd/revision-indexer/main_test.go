package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emperorhan/revision-indexer/internal/alert"
	"github.com/emperorhan/revision-indexer/internal/config"
	"github.com/emperorhan/revision-indexer/internal/domain/model"
	"github.com/emperorhan/revision-indexer/internal/metrics"
	"github.com/emperorhan/revision-indexer/internal/pipeline"
	"github.com/emperorhan/revision-indexer/internal/recordio"
)

type fakeDBStatsProvider struct {
	stats sql.DBStats
	panic bool
}

func (f fakeDBStatsProvider) Stats() sql.DBStats {
	if f.panic {
		panic("boom")
	}
	return f.stats
}

func testApp(t *testing.T, stdin string) (*app, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return &app{
		cfg:    &config.Config{},
		logger: newLogger(io.Discard, 0),
		stdin:  strings.NewReader(stdin),
		stdout: out,
		stderr: io.Discard,
	}, out
}

func TestCollectDBPoolStats(t *testing.T) {
	err := collectDBPoolStats(fakeDBStatsProvider{stats: sql.DBStats{
		OpenConnections: 7,
		InUse:           3,
		Idle:            4,
		WaitCount:       11,
		WaitDuration:    1500 * time.Millisecond,
	}})
	require.NoError(t, err)

	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.DBPoolOpen))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.DBPoolInUse))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.DBPoolIdle))
	assert.Equal(t, 11.0, testutil.ToFloat64(metrics.DBPoolWaitCount))
	assert.Equal(t, 1.5, testutil.ToFloat64(metrics.DBPoolWaitDurationSeconds))
}

func TestCollectDBPoolStats_RecoversPanic(t *testing.T) {
	err := collectDBPoolStats(fakeDBStatsProvider{panic: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")

	err = collectDBPoolStats(nil)
	require.Error(t, err)
}

func TestStartDBPoolStatsPump_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	startDBPoolStatsPump(ctx, fakeDBStatsProvider{stats: sql.DBStats{OpenConnections: 2}}, 10, newLogger(io.Discard, 0))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.DBPoolOpen) == 2
	}, time.Second, 5*time.Millisecond)
	cancel()
}

func TestHealthMux(t *testing.T) {
	health := pipeline.NewPipelineHealth("revert-status")
	health.SetStatus(pipeline.HealthStatusHealthy)
	srv := httptest.NewServer(newHealthMux(health))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var snap pipeline.HealthSnapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "revert-status", snap.Name)
	assert.Equal(t, string(pipeline.HealthStatusHealthy), snap.Status)

	metricsResp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	body, err := io.ReadAll(metricsResp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "revindexer_")
}

func TestOpenInputOutput_Stdio(t *testing.T) {
	a, out := testApp(t, "1\n")

	in, err := a.openInput("-")
	require.NoError(t, err)
	data, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, "1\n", string(data))
	require.NoError(t, in.Close())

	w, err := a.openOutput("")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "x", out.String())
}

func TestOpenInputOutput_Files(t *testing.T) {
	a, _ := testApp(t, "")
	path := filepath.Join(t.TempDir(), "out.tsv")

	w, err := a.openOutput(path)
	require.NoError(t, err)
	_, err = w.Write([]byte("rev_id\n5\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	in, err := a.openInput(path)
	require.NoError(t, err)
	defer in.Close()
	data, err := io.ReadAll(in)
	require.NoError(t, err)
	assert.Equal(t, "rev_id\n5\n", string(data))

	_, err = a.openInput(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestRevertStatusFlagsOverrideConfig(t *testing.T) {
	a, _ := testApp(t, "")
	a.cfg.Revert.Radius = 15
	a.cfg.Revert.Window = 48 * time.Hour
	a.cfg.Pipeline.Workers = 4
	a.cfg.Pipeline.Ordered = true

	cmd := newRevertStatusCmd(a)
	require.NoError(t, cmd.ParseFlags([]string{"--radius=3", "--ordered=false"}))

	opts := &revertStatusOptions{radius: 3, ordered: false, workers: 99}
	opts.applyTo(a, cmd)

	assert.Equal(t, 3, a.cfg.Revert.Radius)
	assert.False(t, a.cfg.Pipeline.Ordered)
	assert.Equal(t, 48*time.Hour, a.cfg.Revert.Window, "unset flag keeps config")
	assert.Equal(t, 4, a.cfg.Pipeline.Workers, "unset flag keeps config")
}

func TestFeedAndRun(t *testing.T) {
	labeler := pipeline.LabelFunc(func(_ context.Context, revID int64) (model.StatusRecord, error) {
		if revID == 3 {
			return model.StatusRecord{}, errors.New("store down")
		}
		return model.StatusRecord{RevID: revID, Reverting: model.FlagFalse, Reverted: model.FlagOf(revID == 2)}, nil
	})
	p := pipeline.New(labeler, pipeline.Config{Workers: 2, Ordered: true}, newLogger(io.Discard, 0))

	var buf bytes.Buffer
	w, err := recordio.NewStatusWriter(&buf)
	require.NoError(t, err)

	sum, err := feedAndRun(context.Background(), recordio.NewRevisionIDReader(strings.NewReader("rev_id\n1\n2\n3\n4\n")), p, w)
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.Equal(t, 4, sum.Processed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t,
		"rev_id\treverting\treverted\tscore\n"+
			"1\tFalse\tFalse\tNULL\n"+
			"2\tFalse\tTrue\tNULL\n"+
			"4\tFalse\tFalse\tNULL\n",
		buf.String())
}

func TestFeedAndRun_ReadError(t *testing.T) {
	labeler := pipeline.LabelFunc(func(_ context.Context, revID int64) (model.StatusRecord, error) {
		return model.StatusRecord{RevID: revID}, nil
	})
	p := pipeline.New(labeler, pipeline.Config{Workers: 1}, newLogger(io.Discard, 0))

	_, err := feedAndRun(context.Background(), recordio.NewRevisionIDReader(strings.NewReader("1\nbad\n")), p, &discardSink{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read revisions")
}

type discardSink struct{}

func (discardSink) Write(model.StatusRecord) error { return nil }

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd(strings.NewReader(""), io.Discard, io.Discard)

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"revert-status", "quality-scores", "import-revisions"})
}

func TestRootCmd_InvalidConfig(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("WORKERS", "0")

	var stderr bytes.Buffer
	root := newRootCmd(strings.NewReader(""), io.Discard, &stderr)
	root.SetArgs([]string{"revert-status"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, stderr.String(), "WORKERS")
}

func TestNewAlerter(t *testing.T) {
	a, _ := testApp(t, "")
	assert.Nil(t, a.newAlerter(), "no channels configured")

	a.cfg.Alert.WebhookURL = "http://hooks.local"
	a.cfg.Alert.SlackWebhookURL = "http://slack.local"
	al := a.newAlerter()
	require.NotNil(t, al)
	multi, ok := al.(*alert.MultiAlerter)
	require.True(t, ok)
	assert.Equal(t, 2, multi.Len())
}

func TestSendAlert_DeliversRunFailure(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a, _ := testApp(t, "")
	rt := &runtime{alerter: alert.NewWebhookAlerter(srv.URL)}

	a.sendAlert(context.Background(), rt, alert.Alert{Type: alert.AlertTypeRunFailed, Run: "quality-scores", Message: "boom"})

	assert.Equal(t, "RUN_FAILED", got["type"])
	assert.Equal(t, "quality-scores", got["run"])

	// no alerter configured is a no-op
	a.sendAlert(context.Background(), &runtime{}, alert.Alert{})
}
