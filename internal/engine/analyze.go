package engine

import (
	"context"
	"log/slog"
)

// defaultScore is the neutral score substituted when the analysis backend
// is unavailable or returns an unusable payload.
const defaultScore = 50

// runAnalysis assembles the analysis input and calls the backend through
// the circuit breaker. Backend failure yields a best-effort degraded
// result built from metadata rather than a pipeline failure; the note
// tells the caller which one they got.
func (e *Engine) runAnalysis(ctx context.Context, meta *Metadata, tr TranscriptResult, targetLang string) (AnalysisResult, string) {
	in := buildAnalysisInput(meta, tr, e.cfg.MaxTranscriptChars)

	if e.analyzer == nil {
		return fallbackAnalysis(meta), "analysis backend not configured, returning fallback summary"
	}

	e.metrics.AnalysisRequests.Add(1)
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.AnalysisTimeout)
	defer cancel()

	result, err := BreakerCall(e.llmBreaker, func() (*AnalysisResult, error) {
		return e.analyzer.Analyze(callCtx, in, targetLang)
	})
	if err != nil {
		slog.Warn("analysis backend unavailable, returning degraded result",
			slog.String("id", meta.ResourceID), slog.Any("error", err))
		return fallbackAnalysis(meta), "analysis unavailable, returning fallback summary"
	}
	if tr.Empty() {
		return *result, "analysis completed from metadata only"
	}
	return *result, "analysis completed"
}

// buildAnalysisInput concatenates translated segment text under the
// character budget and attaches metadata. With no transcript the input
// degrades to metadata only; analysis still runs for caption-less
// resources.
func buildAnalysisInput(meta *Metadata, tr TranscriptResult, maxChars int) AnalysisInput {
	return AnalysisInput{
		Title:          meta.Title,
		Author:         meta.Author,
		Description:    TruncateRunes(meta.Description, 2000, "..."),
		TranscriptText: JoinSegmentText(tr.Segments, maxChars),
		Segments:       tr.Segments,
	}
}

// fallbackAnalysis is the degraded payload used when the backend cannot
// serve: the description stands in for a summary, with a neutral score.
func fallbackAnalysis(meta *Metadata) AnalysisResult {
	summary := meta.Description
	if summary == "" {
		summary = meta.Title
	}
	return AnalysisResult{
		Summary:  TruncateRunes(summary, 600, "..."),
		Score:    defaultScore,
		Degraded: true,
	}
}
