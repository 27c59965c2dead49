package engine

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics tracks operational counters for one engine instance.
// Owned by the Engine and injected into source clients rather than held
// in package-level state.
type Metrics struct {
	RunsStarted         atomic.Int64
	RunsCompleted       atomic.Int64
	RunsFailed          atomic.Int64
	MetadataRequests    atomic.Int64
	CaptionRequests     atomic.Int64
	STTRequests         atomic.Int64
	TranslationRequests atomic.Int64
	AnalysisRequests    atomic.Int64
	LLMCalls            atomic.Int64
	LLMErrors           atomic.Int64
	BreakerRejections   atomic.Int64
}

// Snapshot returns all counters including cache stats.
func (m *Metrics) Snapshot(cache *Cache) map[string]int64 {
	hits, misses := cache.Stats()
	return map[string]int64{
		"runs_started":         m.RunsStarted.Load(),
		"runs_completed":       m.RunsCompleted.Load(),
		"runs_failed":          m.RunsFailed.Load(),
		"metadata_requests":    m.MetadataRequests.Load(),
		"caption_requests":     m.CaptionRequests.Load(),
		"stt_requests":         m.STTRequests.Load(),
		"translation_requests": m.TranslationRequests.Load(),
		"analysis_requests":    m.AnalysisRequests.Load(),
		"llm_calls":            m.LLMCalls.Load(),
		"llm_errors":           m.LLMErrors.Load(),
		"breaker_rejections":   m.BreakerRejections.Load(),
		"cache_hits":           hits,
		"cache_misses":         misses,
	}
}

// Format returns counters as a simple text format for the HTTP endpoint.
func (m *Metrics) Format(cache *Cache) string {
	snap := m.Snapshot(cache)
	keys := []string{
		"runs_started", "runs_completed", "runs_failed",
		"metadata_requests", "caption_requests", "stt_requests",
		"translation_requests", "analysis_requests",
		"llm_calls", "llm_errors", "breaker_rejections",
		"cache_hits", "cache_misses",
	}
	var sb strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s %d\n", k, snap[k])
	}
	return sb.String()
}
