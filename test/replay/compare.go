package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/emperorhan/revision-indexer/internal/domain/model"
)

// CompareResult holds the outcome of comparing replayed statuses against a
// stored baseline.
type CompareResult struct {
	Matching  []int64          `json:"matching"`
	Missing   []int64          `json:"missing"`   // in baseline but not in replay
	Extra     []int64          `json:"extra"`     // in replay but not in baseline
	Divergent []DivergentField `json:"divergent"` // rev_id matches but fields differ
}

// DivergentField records a field-level mismatch between replay and baseline.
type DivergentField struct {
	RevID         int64  `json:"rev_id"`
	Field         string `json:"field"`
	ReplayValue   string `json:"replay_value"`
	BaselineValue string `json:"baseline_value"`
}

// HasMismatch returns true if there are any missing, extra, or divergent rows.
func (r *CompareResult) HasMismatch() bool {
	return len(r.Missing) > 0 || len(r.Extra) > 0 || len(r.Divergent) > 0
}

type compareOptions struct {
	// Scores are compared only when set. Absent scores must be absent on
	// both sides; present scores may differ by ScoreTolerance.
	CompareScores  bool
	ScoreTolerance float64
}

// compareStatuses is keyed on rev_id. A duplicate rev_id keeps its last row.
func compareStatuses(replay, baseline []model.StatusRecord, opts compareOptions) CompareResult {
	replayMap := make(map[int64]model.StatusRecord, len(replay))
	for _, rec := range replay {
		replayMap[rec.RevID] = rec
	}
	baseMap := make(map[int64]model.StatusRecord, len(baseline))
	for _, rec := range baseline {
		baseMap[rec.RevID] = rec
	}

	var result CompareResult

	for id, base := range baseMap {
		re, found := replayMap[id]
		if !found {
			result.Missing = append(result.Missing, id)
			continue
		}

		before := len(result.Divergent)
		checkField := func(field, replayVal, baseVal string) {
			if replayVal != baseVal {
				result.Divergent = append(result.Divergent, DivergentField{
					RevID:         id,
					Field:         field,
					ReplayValue:   replayVal,
					BaselineValue: baseVal,
				})
			}
		}
		checkField("reverting", re.Reverting.String(), base.Reverting.String())
		checkField("reverted", re.Reverted.String(), base.Reverted.String())
		if opts.CompareScores && !scoresMatch(re.Score, base.Score, opts.ScoreTolerance) {
			checkField("score", formatScore(re.Score), formatScore(base.Score))
		}
		if len(result.Divergent) == before {
			result.Matching = append(result.Matching, id)
		}
	}

	for id := range replayMap {
		if _, found := baseMap[id]; !found {
			result.Extra = append(result.Extra, id)
		}
	}

	sortIDs(result.Matching)
	sortIDs(result.Missing)
	sortIDs(result.Extra)
	sort.Slice(result.Divergent, func(i, j int) bool {
		if result.Divergent[i].RevID == result.Divergent[j].RevID {
			return result.Divergent[i].Field < result.Divergent[j].Field
		}
		return result.Divergent[i].RevID < result.Divergent[j].RevID
	})

	return result
}

func scoresMatch(a, b *float64, tolerance float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return math.Abs(*a-*b) <= tolerance
}

func formatScore(v *float64) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%g", *v)
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

type reportHeader struct {
	Baseline      string `json:"baseline"`
	Source        string `json:"source"`
	ReplayCount   int    `json:"replay_rows"`
	BaselineCount int    `json:"baseline_rows"`
}

// printTextReport writes a human-readable report to w.
func printTextReport(w io.Writer, h reportHeader, result CompareResult) {
	fmt.Fprintln(w, "=== Revert Status Replay Report ===")
	fmt.Fprintf(w, "Baseline: %s\n", h.Baseline)
	fmt.Fprintf(w, "Replay source: %s\n", h.Source)
	fmt.Fprintf(w, "Replay rows: %d\n", h.ReplayCount)
	fmt.Fprintf(w, "Baseline rows: %d\n", h.BaselineCount)
	fmt.Fprintf(w, "Matching: %d\n", len(result.Matching))
	fmt.Fprintf(w, "Missing: %d\n", len(result.Missing))
	fmt.Fprintf(w, "Extra: %d\n", len(result.Extra))
	fmt.Fprintf(w, "Divergent: %d\n", len(result.Divergent))

	if len(result.Missing) > 0 {
		fmt.Fprintln(w, "\n--- Missing (in baseline but not in replay) ---")
		for _, id := range result.Missing {
			fmt.Fprintf(w, "  %d\n", id)
		}
	}
	if len(result.Extra) > 0 {
		fmt.Fprintln(w, "\n--- Extra (in replay but not in baseline) ---")
		for _, id := range result.Extra {
			fmt.Fprintf(w, "  %d\n", id)
		}
	}
	if len(result.Divergent) > 0 {
		fmt.Fprintln(w, "\n--- Divergent (field mismatches) ---")
		for _, d := range result.Divergent {
			fmt.Fprintf(w, "  %d: %s replay=%q baseline=%q\n", d.RevID, d.Field, d.ReplayValue, d.BaselineValue)
		}
	}

	fmt.Fprintln(w)
	if !result.HasMismatch() {
		fmt.Fprintln(w, "Result: MATCH")
	} else {
		fmt.Fprintln(w, "Result: MISMATCH")
	}
}

// printJSONReport writes a JSON report to w.
func printJSONReport(w io.Writer, h reportHeader, result CompareResult) error {
	report := struct {
		reportHeader
		Result  string        `json:"result"`
		Compare CompareResult `json:"compare"`
	}{
		reportHeader: h,
		Compare:      result,
	}
	if result.HasMismatch() {
		report.Result = "MISMATCH"
	} else {
		report.Result = "MATCH"
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
