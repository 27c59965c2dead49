package engine

import (
	"context"
	"log/slog"
)

// translateTranscript converts segment text into the target language.
// Skips the backend entirely when the detected language already matches
// the target. Invocation failure never aborts the pipeline: the original
// text is substituted for both fields and the degradation is reported in
// the returned note.
func (e *Engine) translateTranscript(ctx context.Context, tr TranscriptResult, targetLang string) (TranscriptResult, string) {
	if tr.Empty() {
		return tr, "no transcript to translate"
	}

	if LanguageMatches(tr.LanguageCode, targetLang) {
		tr.Segments = fillUntranslated(tr.Segments)
		tr.IsTargetLanguage = true
		return tr, "transcript already in target language, translation skipped"
	}

	if e.translator == nil {
		tr.Segments = fillUntranslated(tr.Segments)
		return tr, "translation backend not configured, using original captions"
	}

	e.metrics.TranslationRequests.Add(1)
	translated, err := BreakerCall(e.llmBreaker, func() ([]Segment, error) {
		return e.translator.Translate(ctx, tr.Segments, tr.LanguageCode, targetLang)
	})
	if err != nil {
		slog.Warn("translation failed, degrading to original text",
			slog.String("source_lang", tr.LanguageCode),
			slog.String("target_lang", targetLang),
			slog.Any("error", err),
		)
		tr.Segments = fillUntranslated(tr.Segments)
		return tr, "translation failed, using original captions"
	}

	tr.Segments = translated
	tr.IsTargetLanguage = true
	return tr, "transcript translated to " + targetLang
}

// fillUntranslated sets OriginalText and TranslatedText to Text for every
// segment, the untranslated invariant.
func fillUntranslated(segments []Segment) []Segment {
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		seg.OriginalText = seg.Text
		seg.TranslatedText = seg.Text
		out[i] = seg
	}
	return out
}
