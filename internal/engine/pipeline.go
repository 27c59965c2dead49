package engine

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

var videoIDRE = regexp.MustCompile(`(?:youtube\.com/watch\?(?:.*&)?v=|youtube\.com/shorts/|youtu\.be/)([a-zA-Z0-9_-]{11})`)

// ExtractVideoID pulls the 11-char video ID from any YouTube URL format.
// Returns "" for non-YouTube URLs.
func ExtractVideoID(rawURL string) string {
	m := videoIDRE.FindStringSubmatch(rawURL)
	if len(m) >= 2 {
		return m[1]
	}
	return ""
}

// classifyInput decides whether a URL is a YouTube video or a web article.
func classifyInput(rawURL string) (ResourceKind, string) {
	if id := ExtractVideoID(rawURL); id != "" {
		return KindVideo, id
	}
	return KindArticle, rawURL
}

// Run drives one analysis request through the fixed step sequence
// Metadata → Transcript → Translation → Analysis, emitting a start/done
// event pair per step and exactly one terminal event, then closes the
// sink. Cancellation is observed between steps: a call already in flight
// completes and its result is discarded. Safe for concurrent use; runs
// share only the cache and the per-dependency breakers.
func (e *Engine) Run(ctx context.Context, in InsightInput, sink *Sink) {
	defer sink.Close()

	e.metrics.RunsStarted.Add(1)
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RunTimeout)
	defer cancel()

	targetLang := in.TargetLanguage
	if targetLang == "" {
		targetLang = e.cfg.TargetLanguage
	}
	kind, resourceID := classifyInput(strings.TrimSpace(in.URL))

	// --- Metadata ---
	sink.StepStart(StepMetadata, "fetching metadata")
	meta, err := e.fetchMetadata(ctx, kind, resourceID, in.URL)
	if err != nil {
		e.terminalError(sink, err)
		return
	}
	sink.StepDone(StepMetadata, meta.Title)

	if e.aborted(ctx, sink) {
		return
	}

	// --- Transcript ---
	sink.StepStart(StepTranscript, "resolving transcript")
	transcript, note, err := e.resolveTranscript(ctx, meta, targetLang)
	if err != nil {
		e.terminalError(sink, err)
		return
	}
	sink.StepDone(StepTranscript, note)

	if e.aborted(ctx, sink) {
		return
	}

	// --- Translation ---
	sink.StepStart(StepTranslation, "translating transcript")
	transcript, note = e.translateTranscript(ctx, transcript, targetLang)
	sink.StepDone(StepTranslation, note)

	if e.aborted(ctx, sink) {
		return
	}

	// --- Analysis ---
	sink.StepStart(StepAnalysis, "running analysis")
	analysis, note := e.runAnalysis(ctx, meta, transcript, targetLang)
	sink.StepDone(StepAnalysis, note)

	out := &InsightOutput{
		Metadata:   *meta,
		Transcript: transcript,
		Analysis:   analysis,
	}
	sink.Result(out)
	e.metrics.RunsCompleted.Add(1)
	e.recordHistory(out)

	slog.Info("run completed",
		slog.String("id", meta.ResourceID),
		slog.String("kind", string(meta.Kind)),
		slog.String("transcript_source", string(transcript.Source)),
		slog.Bool("degraded", analysis.Degraded),
		slog.Duration("elapsed", time.Since(started)),
	)
}

// RunSync executes a full run without a live consumer and returns the
// terminal outcome. Shares all semantics with Run so both entry points
// report identical error codes.
func (e *Engine) RunSync(ctx context.Context, in InsightInput) (*InsightOutput, error) {
	sink := NewSink(ctx, 64)
	go e.Run(ctx, in, sink)

	var out *InsightOutput
	var runErr error
	for ev := range sink.Events() {
		switch ev.Type {
		case EventResult:
			out = ev.Payload
		case EventError:
			runErr = Errf(ev.Code, "%s", ev.Message)
		}
	}
	if out == nil && runErr == nil {
		runErr = ctx.Err()
		if runErr == nil {
			runErr = Errf(CodeInternal, "run produced no terminal event")
		}
	}
	return out, runErr
}

// fetchMetadata loads resource metadata, cached for videos. Articles are
// fetched fresh: their body text rides along outside the cacheable payload.
func (e *Engine) fetchMetadata(ctx context.Context, kind ResourceKind, resourceID, rawURL string) (*Metadata, error) {
	e.metrics.MetadataRequests.Add(1)

	if kind == KindArticle {
		if e.articles == nil {
			return nil, Errf(CodeInternal, "article ingestion not configured")
		}
		fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
		defer cancel()
		meta, err := e.articles.FetchArticle(fetchCtx, rawURL)
		if err != nil {
			return nil, err
		}
		meta.Kind = KindArticle
		return meta, nil
	}

	if e.metadata == nil {
		return nil, Errf(CodeInternal, "metadata provider not configured")
	}

	key := CacheKey("metadata", resourceID, "")
	if cached, ok := CacheLoad[Metadata](ctx, e.cache, key); ok && cached.Title != "" {
		return &cached, nil
	}

	meta, err := e.metadata.FetchMetadata(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	meta.Kind = KindVideo
	CacheStore(ctx, e.cache, key, *meta, e.cfg.CacheMetadataTTL)
	return meta, nil
}

// aborted checks for cancellation between steps. On deadline expiry it
// emits the terminal timeout event if the transport is still writable;
// on client disconnect it just stops.
func (e *Engine) aborted(ctx context.Context, sink *Sink) bool {
	err := ctx.Err()
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		sink.Error(CodeTimeout, "analysis timed out")
		e.metrics.RunsFailed.Add(1)
	}
	return true
}

// terminalError maps an error to the single terminal error event.
func (e *Engine) terminalError(sink *Sink, err error) {
	code := CodeOf(err)
	slog.Warn("run failed", slog.String("code", string(code)), slog.Any("error", err))
	sink.Error(code, MessageOf(err))
	e.metrics.RunsFailed.Add(1)
}

// recordHistory persists the terminal result, best effort.
func (e *Engine) recordHistory(out *InsightOutput) {
	if e.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.history.Record(ctx, out); err != nil {
		slog.Warn("history record failed", slog.Any("error", err))
	}
}
