package kyt

import (
	"context"
	"log"
	"sort"
	"time"
)

// HistoryRecorder is satisfied by a persistent audit sink (the Postgres
// cache backend's AppendAnalysisHistory); appending to it is additive
// and never affects the report a caller receives.
type HistoryRecorder interface {
	AppendAnalysisHistory(ctx context.Context, chain, txID string, depth, score int, level string) error
}

// BuildReport is the Report Builder (C9): assembles the final RiskReport
// from a trace snapshot and its score, per spec.md §4.5 / §3. Flagged
// entities are sorted by (distance ascending, contribution descending).
func BuildReport(chainSlug, txID string, depth int, snap Snapshot, score RiskScore) RiskReport {
	flagged := make([]FlaggedEntity, len(snap.Flagged))
	copy(flagged, snap.Flagged)
	sort.SliceStable(flagged, func(i, j int) bool {
		if flagged[i].Distance != flagged[j].Distance {
			return flagged[i].Distance < flagged[j].Distance
		}
		return flagged[i].Contribution > flagged[j].Contribution
	})

	return RiskReport{
		TxID:              txID,
		Chain:             chainSlug,
		AnalyzedAt:        time.Now().UTC(),
		TraceDepth:        depth,
		TotalAddresses:    snap.VisitedAddrCount,
		TotalTransactions: snap.VisitedTxCount,
		RiskScore:         score,
		Flagged:           flagged,
		APICallsUsed:      snap.APICalls,
	}
}

// recordHistory best-effort appends a completed analysis to an audit
// sink. A nil recorder (no persistent backend configured) is a no-op.
func recordHistory(ctx context.Context, h HistoryRecorder, report RiskReport) {
	if h == nil {
		return
	}
	err := h.AppendAnalysisHistory(ctx, report.Chain, report.TxID, report.TraceDepth, report.RiskScore.Score, string(report.RiskScore.Level))
	if err != nil {
		log.Printf("[ReportBuilder] failed to append analysis history: %v", err)
	}
}
