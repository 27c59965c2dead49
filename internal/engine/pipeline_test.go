package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// --- Collaborator fakes shared across pipeline tests ---

type fakeMetadataProvider struct {
	meta  *Metadata
	err   error
	calls atomic.Int64
}

func (f *fakeMetadataProvider) FetchMetadata(_ context.Context, _ string) (*Metadata, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	m := *f.meta
	return &m, nil
}

type fakeCaptionClient struct {
	lang     string
	segments []Segment
	err      error
	calls    atomic.Int64
}

func (f *fakeCaptionClient) FetchCaptions(_ context.Context, _ string, _ []string) (string, []Segment, error) {
	f.calls.Add(1)
	return f.lang, f.segments, f.err
}

type fakeSTTClient struct {
	lang     string
	segments []Segment
	err      error
	calls    atomic.Int64
}

func (f *fakeSTTClient) Transcribe(_ context.Context, _, _ string) (string, []Segment, error) {
	f.calls.Add(1)
	return f.lang, f.segments, f.err
}

type fakeTranslator struct {
	err   error
	calls atomic.Int64
}

func (f *fakeTranslator) Translate(_ context.Context, segments []Segment, _, targetLang string) ([]Segment, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		seg.OriginalText = seg.Text
		seg.TranslatedText = fmt.Sprintf("[%s] %s", targetLang, seg.Text)
		seg.Text = seg.TranslatedText
		out[i] = seg
	}
	return out, nil
}

type fakeAnalyzer struct {
	result *AnalysisResult
	err    error
	calls  atomic.Int64
}

func (f *fakeAnalyzer) Analyze(_ context.Context, _ AnalysisInput, _ string) (*AnalysisResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

func videoMeta(durationSeconds int) *Metadata {
	return &Metadata{
		ResourceID:      "dQw4w9WgXcQ",
		Kind:            KindVideo,
		URL:             "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		Title:           "Test Video",
		Author:          "Channel",
		Description:     "A test video about things.",
		DurationSeconds: durationSeconds,
	}
}

func englishSegments() []Segment {
	return []Segment{
		{Start: 0, End: 2, Text: "hello there"},
		{Start: 2, End: 4, Text: "welcome to the show"},
	}
}

// collectEvents runs the engine and drains the sink.
func collectEvents(t *testing.T, e *Engine, in InsightInput) []Event {
	t.Helper()
	sink := NewSink(context.Background(), 64)
	go e.Run(context.Background(), in, sink)

	var events []Event
	for ev := range sink.Events() {
		events = append(events, ev)
	}
	return events
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?foo=bar&v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com/article", ""},
		{"not a url", ""},
	}
	for _, tt := range tests {
		if got := ExtractVideoID(tt.url); got != tt.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestRunEventOrdering(t *testing.T) {
	e := NewEngine(Config{TargetLanguage: "en"}, Deps{
		Metadata: &fakeMetadataProvider{meta: videoMeta(300)},
		Captions: &fakeCaptionClient{lang: "en", segments: englishSegments()},
		Analyzer: &fakeAnalyzer{result: &AnalysisResult{Summary: "good", Score: 80}},
	})

	events := collectEvents(t, e, InsightInput{URL: "https://youtu.be/dQw4w9WgXcQ"})

	wantSteps := []Step{StepMetadata, StepTranscript, StepTranslation, StepAnalysis}
	if len(events) != len(wantSteps)*2+1 {
		t.Fatalf("got %d events, want %d: %+v", len(events), len(wantSteps)*2+1, events)
	}
	for i, step := range wantSteps {
		start, done := events[i*2], events[i*2+1]
		if start.Step != step || start.Phase != PhaseStart {
			t.Errorf("event %d = %+v, want %s start", i*2, start, step)
		}
		if done.Step != step || done.Phase != PhaseDone {
			t.Errorf("event %d = %+v, want %s done", i*2+1, done, step)
		}
	}

	last := events[len(events)-1]
	if last.Type != EventResult || last.Payload == nil {
		t.Fatalf("terminal event = %+v, want result", last)
	}
	if last.Payload.Analysis.Summary != "good" {
		t.Errorf("analysis summary = %q", last.Payload.Analysis.Summary)
	}
	if last.Payload.Transcript.Source != SourcePrimary {
		t.Errorf("transcript source = %s, want primary", last.Payload.Transcript.Source)
	}
}

func TestRunNotFoundTerminates(t *testing.T) {
	e := NewEngine(Config{}, Deps{
		Metadata: &fakeMetadataProvider{err: ErrNotFound},
	})

	events := collectEvents(t, e, InsightInput{URL: "https://youtu.be/dQw4w9WgXcQ"})

	last := events[len(events)-1]
	if last.Type != EventError || last.Code != CodeNotFound {
		t.Fatalf("terminal event = %+v, want not_found error", last)
	}
	terminals := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("got %d terminal events, want exactly 1", terminals)
	}
}

// stalledMetadataProvider parks until the run context expires, standing in
// for an upstream that never answers.
type stalledMetadataProvider struct{}

func (stalledMetadataProvider) FetchMetadata(ctx context.Context, _ string) (*Metadata, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRunDeadlineEmitsTerminalTimeout(t *testing.T) {
	e := NewEngine(Config{RunTimeout: 30 * time.Millisecond}, Deps{
		Metadata: stalledMetadataProvider{},
	})

	events := collectEvents(t, e, InsightInput{URL: "https://youtu.be/dQw4w9WgXcQ"})

	last := events[len(events)-1]
	if last.Type != EventError || last.Code != CodeTimeout {
		t.Fatalf("terminal event = %+v, want timeout error", last)
	}
	terminals := 0
	for _, ev := range events {
		if ev.Terminal() {
			terminals++
		}
	}
	if terminals != 1 {
		t.Errorf("got %d terminal events, want exactly 1", terminals)
	}
}

// A long video with no captions and an over-limit duration still reaches
// analysis and produces a result from metadata alone.
func TestRunLongVideoWithoutCaptionsDegrades(t *testing.T) {
	stt := &fakeSTTClient{lang: "en", segments: englishSegments()}
	analyzer := &fakeAnalyzer{result: &AnalysisResult{Summary: "from metadata", Score: 60}}
	e := NewEngine(Config{
		TargetLanguage:        "en",
		STTEnabled:            true,
		STTMaxDurationMinutes: 30,
	}, Deps{
		Metadata: &fakeMetadataProvider{meta: videoMeta(45 * 60)},
		Captions: &fakeCaptionClient{err: errors.New("no tracks")},
		STT:      stt,
		Analyzer: analyzer,
	})

	events := collectEvents(t, e, InsightInput{URL: "https://youtu.be/dQw4w9WgXcQ"})

	last := events[len(events)-1]
	if last.Type != EventResult {
		t.Fatalf("terminal event = %+v, want result", last)
	}
	if stt.calls.Load() != 0 {
		t.Errorf("stt called %d times for over-limit video, want 0", stt.calls.Load())
	}
	if analyzer.calls.Load() != 1 {
		t.Errorf("analyzer called %d times, want 1", analyzer.calls.Load())
	}
	if last.Payload.Transcript.Source != SourceNone {
		t.Errorf("transcript source = %s, want none", last.Payload.Transcript.Source)
	}
	if last.Payload.Analysis.Summary != "from metadata" {
		t.Errorf("analysis summary = %q", last.Payload.Analysis.Summary)
	}
}

func TestRunAnalyzerFailureYieldsDegradedResult(t *testing.T) {
	e := NewEngine(Config{TargetLanguage: "en"}, Deps{
		Metadata: &fakeMetadataProvider{meta: videoMeta(300)},
		Captions: &fakeCaptionClient{lang: "en", segments: englishSegments()},
		Analyzer: &fakeAnalyzer{err: errors.New("backend down")},
	})

	events := collectEvents(t, e, InsightInput{URL: "https://youtu.be/dQw4w9WgXcQ"})

	last := events[len(events)-1]
	if last.Type != EventResult {
		t.Fatalf("terminal event = %+v, want degraded result, not error", last)
	}
	if !last.Payload.Analysis.Degraded {
		t.Error("analysis not marked degraded")
	}
	if last.Payload.Analysis.Score != defaultScore {
		t.Errorf("score = %v, want default %d", last.Payload.Analysis.Score, defaultScore)
	}
}

// blockingCaptionClient parks in FetchCaptions until its context dies,
// so tests can cancel a run mid-step deterministically.
type blockingCaptionClient struct {
	started chan struct{}
}

func (b *blockingCaptionClient) FetchCaptions(ctx context.Context, _ string, _ []string) (string, []Segment, error) {
	close(b.started)
	<-ctx.Done()
	return "", nil, ctx.Err()
}

func TestRunCancellationStopsBeforeAnalysis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	captions := &blockingCaptionClient{started: make(chan struct{})}
	analyzer := &fakeAnalyzer{result: &AnalysisResult{Summary: "x"}}
	e := NewEngine(Config{TargetLanguage: "en"}, Deps{
		Metadata: &fakeMetadataProvider{meta: videoMeta(300)},
		Captions: captions,
		Analyzer: analyzer,
	})

	sink := NewSink(context.Background(), 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx, InsightInput{URL: "https://youtu.be/dQw4w9WgXcQ"}, sink)
	}()

	// Cancel while the transcript step is in flight.
	<-captions.started
	cancel()

	var events []Event
	for ev := range sink.Events() {
		events = append(events, ev)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	if analyzer.calls.Load() != 0 {
		t.Errorf("analyzer called %d times after cancellation, want 0", analyzer.calls.Load())
	}
	for _, ev := range events {
		if ev.Step == StepAnalysis {
			t.Errorf("analysis step ran after cancellation: %+v", ev)
		}
		if ev.Type == EventResult {
			t.Errorf("result emitted after cancellation: %+v", ev)
		}
	}
}

func TestRunSyncMatchesStreamErrors(t *testing.T) {
	e := NewEngine(Config{}, Deps{
		Metadata: &fakeMetadataProvider{err: ErrNotFound},
	})

	out, err := e.RunSync(context.Background(), InsightInput{URL: "https://youtu.be/dQw4w9WgXcQ"})
	if out != nil {
		t.Fatalf("expected nil output, got %+v", out)
	}
	var pe *PipelineError
	if !errors.As(err, &pe) || pe.Code != CodeNotFound {
		t.Fatalf("err = %v, want PipelineError not_found", err)
	}
}

func TestRunSyncSuccess(t *testing.T) {
	e := NewEngine(Config{TargetLanguage: "en"}, Deps{
		Metadata: &fakeMetadataProvider{meta: videoMeta(300)},
		Captions: &fakeCaptionClient{lang: "en", segments: englishSegments()},
		Analyzer: &fakeAnalyzer{result: &AnalysisResult{Summary: "ok", Score: 75}},
	})

	out, err := e.RunSync(context.Background(), InsightInput{URL: "https://youtu.be/dQw4w9WgXcQ"})
	if err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	if out.Metadata.Title != "Test Video" || out.Analysis.Summary != "ok" {
		t.Errorf("unexpected output: %+v", out)
	}
}
