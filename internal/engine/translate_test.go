package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func koreanTranscript() TranscriptResult {
	return TranscriptResult{
		Source:       SourcePrimary,
		LanguageCode: "ko",
		Segments: []Segment{
			{Start: 0, End: 2, Text: "안녕하세요"},
			{Start: 2, End: 4, Text: "환영합니다"},
		},
	}
}

func TestTranslateSkippedWhenAlreadyTarget(t *testing.T) {
	translator := &fakeTranslator{}
	e := NewEngine(Config{TargetLanguage: "ko"}, Deps{Translator: translator})

	for _, lang := range []string{"ko", "ko-KR", "KO"} {
		tr := koreanTranscript()
		tr.LanguageCode = lang
		got, note := e.translateTranscript(context.Background(), tr, "ko")

		if translator.calls.Load() != 0 {
			t.Fatalf("lang %q: translator called, want skip", lang)
		}
		if !got.IsTargetLanguage {
			t.Errorf("lang %q: not marked target language", lang)
		}
		if !strings.Contains(note, "skipped") {
			t.Errorf("lang %q: note = %q", lang, note)
		}
		for _, seg := range got.Segments {
			if seg.OriginalText != seg.Text || seg.TranslatedText != seg.Text {
				t.Errorf("lang %q: untranslated invariant broken: %+v", lang, seg)
			}
		}
	}
}

func TestTranslateFillsBothFields(t *testing.T) {
	translator := &fakeTranslator{}
	e := NewEngine(Config{TargetLanguage: "ko"}, Deps{Translator: translator})

	tr := TranscriptResult{
		Source:       SourcePrimary,
		LanguageCode: "en",
		Segments:     englishSegments(),
	}
	got, _ := e.translateTranscript(context.Background(), tr, "ko")

	if translator.calls.Load() != 1 {
		t.Fatalf("translator called %d times, want 1", translator.calls.Load())
	}
	if !got.IsTargetLanguage {
		t.Error("translated transcript not marked target language")
	}
	for i, seg := range got.Segments {
		if seg.OriginalText == "" || seg.TranslatedText == "" {
			t.Errorf("segment %d missing translation fields: %+v", i, seg)
		}
		if seg.OriginalText != tr.Segments[i].Text {
			t.Errorf("segment %d original text lost: %+v", i, seg)
		}
	}
}

func TestTranslateFailureDegradesToOriginal(t *testing.T) {
	e := NewEngine(Config{TargetLanguage: "ko"}, Deps{
		Translator: &fakeTranslator{err: errors.New("model overloaded")},
	})

	tr := TranscriptResult{
		Source:       SourcePrimary,
		LanguageCode: "en",
		Segments:     englishSegments(),
	}
	got, note := e.translateTranscript(context.Background(), tr, "ko")

	if got.IsTargetLanguage {
		t.Error("failed translation must not claim target language")
	}
	if !strings.Contains(note, "original") {
		t.Errorf("note = %q, should report degradation to original text", note)
	}
	for i, seg := range got.Segments {
		if seg.TranslatedText != tr.Segments[i].Text {
			t.Errorf("segment %d: translated text should fall back to original: %+v", i, seg)
		}
	}
}

func TestTranslateEmptyTranscriptNoop(t *testing.T) {
	translator := &fakeTranslator{}
	e := NewEngine(Config{TargetLanguage: "ko"}, Deps{Translator: translator})

	got, _ := e.translateTranscript(context.Background(), TranscriptResult{Source: SourceNone}, "ko")
	if translator.calls.Load() != 0 {
		t.Error("translator called for empty transcript")
	}
	if !got.Empty() {
		t.Errorf("got %+v, want empty", got)
	}
}
