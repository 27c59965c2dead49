package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/RadhiFadlillah/whatlanggo"
)

// resolveTranscript produces the best available transcript for a resource:
// scraped captions first, then the speech-to-text fallback gated by the
// duration limit. Whichever source first yields non-empty segments wins;
// partial results are never merged. Returns a human-readable note for the
// step event alongside the result. Only policy rejections propagate as
// errors; network failures on either source degrade.
func (e *Engine) resolveTranscript(ctx context.Context, meta *Metadata, targetLang string) (TranscriptResult, string, error) {
	if meta.Kind == KindArticle {
		return articleTranscript(meta, targetLang), "article body used as transcript", nil
	}

	key := CacheKey("transcript", meta.ResourceID, targetLang)
	if cached, ok := CacheLoad[TranscriptResult](ctx, e.cache, key); ok && !cached.Empty() {
		return cached, "transcript loaded from cache", nil
	}

	// Primary: scraped captions. Failures here are expected (region blocks,
	// missing tracks) and must fall through, never raise.
	tr := e.fetchPrimaryCaptions(ctx, meta, targetLang)

	if tr.Empty() {
		var note string
		var err error
		tr, note, err = e.fetchSTTFallback(ctx, meta, targetLang)
		if err != nil {
			return TranscriptResult{Source: SourceNone}, "", err
		}
		if tr.Empty() {
			return tr, note, nil
		}
		CacheStore(ctx, e.cache, key, tr, e.cfg.CacheTranscriptTTL)
		return tr, note, nil
	}

	CacheStore(ctx, e.cache, key, tr, e.cfg.CacheTranscriptTTL)
	return tr, "captions fetched (" + tr.LanguageCode + ")", nil
}

// fetchPrimaryCaptions scrapes caption tracks, preferring the requested
// language, then the configured target, then the first available track.
func (e *Engine) fetchPrimaryCaptions(ctx context.Context, meta *Metadata, targetLang string) TranscriptResult {
	if e.captions == nil {
		return TranscriptResult{Source: SourceNone}
	}

	e.metrics.CaptionRequests.Add(1)
	ctx, cancel := context.WithTimeout(ctx, e.cfg.CaptionTimeout)
	defer cancel()

	langs := []string{targetLang}
	if !LanguageMatches(e.cfg.TargetLanguage, targetLang) {
		langs = append(langs, e.cfg.TargetLanguage)
	}

	lang, segments, err := e.captions.FetchCaptions(ctx, meta.ResourceID, langs)
	if err != nil {
		slog.Warn("caption scrape failed, will try fallback",
			slog.String("id", meta.ResourceID), slog.Any("error", err))
		return TranscriptResult{Source: SourceNone}
	}
	if len(segments) == 0 {
		return TranscriptResult{Source: SourceNone}
	}

	sortSegments(segments)
	if lang == "" {
		lang = detectLanguage(segments)
	}
	return TranscriptResult{
		Source:           SourcePrimary,
		LanguageCode:     lang,
		IsTargetLanguage: LanguageMatches(lang, targetLang),
		Segments:         segments,
	}
}

// fetchSTTFallback runs the speech-to-text provider when captions came up
// empty. The duration gate is a business rule evaluated before calling:
// an over-limit resource skips the provider entirely and must not count
// against its circuit breaker.
func (e *Engine) fetchSTTFallback(ctx context.Context, meta *Metadata, targetLang string) (TranscriptResult, string, error) {
	none := TranscriptResult{Source: SourceNone}

	if !e.cfg.STTEnabled || e.stt == nil {
		return none, "no captions available and speech-to-text is disabled", nil
	}

	limitSeconds := e.cfg.STTMaxDurationMinutes * 60
	if meta.DurationSeconds > limitSeconds {
		slog.Info("stt skipped: duration over limit",
			slog.String("id", meta.ResourceID),
			slog.Int("duration_s", meta.DurationSeconds),
			slog.Int("limit_s", limitSeconds),
		)
		return none, "no captions available; video too long for speech-to-text", nil
	}

	e.metrics.STTRequests.Add(1)
	sttCtx, cancel := context.WithTimeout(ctx, e.cfg.STTTimeout)
	defer cancel()

	type sttResult struct {
		lang     string
		segments []Segment
	}
	res, err := BreakerCall(e.sttBreaker, func() (sttResult, error) {
		lang, segments, err := e.stt.Transcribe(sttCtx, meta.ResourceID, targetLang)
		return sttResult{lang, segments}, err
	})
	if err != nil {
		// The provider's own policy rejection (e.g. content too long for
		// processing) is fatal and carries its explanation to the caller.
		var pe *PipelineError
		if errors.As(err, &pe) && pe.Code == CodePolicyRejected {
			return none, "", pe
		}
		slog.Warn("stt fallback unavailable", slog.String("id", meta.ResourceID), slog.Any("error", err))
		return none, "no captions available and speech-to-text is unavailable", nil
	}
	if len(res.segments) == 0 {
		return none, "speech-to-text produced no segments", nil
	}

	sortSegments(res.segments)
	lang := res.lang
	if lang == "" {
		lang = detectLanguage(res.segments)
	}
	return TranscriptResult{
		Source:           SourceFallback,
		LanguageCode:     lang,
		IsTargetLanguage: LanguageMatches(lang, targetLang),
		Segments:         res.segments,
	}, "transcript produced by speech-to-text", nil
}

// articleTranscript wraps extracted article body text as a single
// pseudo-segment so the rest of the pipeline is shared with videos.
func articleTranscript(meta *Metadata, targetLang string) TranscriptResult {
	if meta.BodyText == "" {
		return TranscriptResult{Source: SourceNone}
	}
	segments := []Segment{{Start: 0, End: 0, Text: meta.BodyText}}
	lang := detectLanguage(segments)
	return TranscriptResult{
		Source:           SourcePrimary,
		LanguageCode:     lang,
		IsTargetLanguage: LanguageMatches(lang, targetLang),
		Segments:         segments,
	}
}

// detectLanguage guesses the language of segment text when the source did
// not report one.
func detectLanguage(segments []Segment) string {
	var sample string
	for _, seg := range segments {
		sample += seg.Text + " "
		if len(sample) > 500 {
			break
		}
	}
	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

// sortSegments orders segments ascending by start time and clamps any
// segment whose end precedes its start.
func sortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	for i := range segments {
		if segments[i].End < segments[i].Start {
			segments[i].End = segments[i].Start
		}
	}
}
