package insightserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anatolykoptev/go_insight/internal/engine"
)

type stubMetadata struct {
	meta *engine.Metadata
	err  error
}

func (s *stubMetadata) FetchMetadata(_ context.Context, _ string) (*engine.Metadata, error) {
	if s.err != nil {
		return nil, s.err
	}
	m := *s.meta
	return &m, nil
}

type stubCaptions struct{}

func (stubCaptions) FetchCaptions(_ context.Context, _ string, _ []string) (string, []engine.Segment, error) {
	return "en", []engine.Segment{
		{Start: 0, End: 2, Text: "hello"},
		{Start: 2, End: 4, Text: "world"},
	}, nil
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(_ context.Context, _ engine.AnalysisInput, _ string) (*engine.AnalysisResult, error) {
	return &engine.AnalysisResult{Summary: "fine video", Score: 70}, nil
}

func testServer(t *testing.T, deps engine.Deps) *httptest.Server {
	t.Helper()
	e := engine.NewEngine(engine.Config{TargetLanguage: "en"}, deps)
	srv := httptest.NewServer(NewHTTPServer(e, "127.0.0.1:0").Handler)
	t.Cleanup(srv.Close)
	return srv
}

func workingDeps() engine.Deps {
	return engine.Deps{
		Metadata: &stubMetadata{meta: &engine.Metadata{
			ResourceID: "dQw4w9WgXcQ",
			Kind:       engine.KindVideo,
			Title:      "Test",
		}},
		Captions: stubCaptions{},
		Analyzer: stubAnalyzer{},
	}
}

func TestInsightEndpoint(t *testing.T) {
	srv := testServer(t, workingDeps())

	body := bytes.NewBufferString(`{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
	resp, err := http.Post(srv.URL+"/api/insight", "application/json", body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out engine.InsightOutput
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Analysis.Summary != "fine video" {
		t.Errorf("summary = %q", out.Analysis.Summary)
	}
	if out.Transcript.Source != engine.SourcePrimary {
		t.Errorf("transcript source = %s", out.Transcript.Source)
	}
}

func TestInsightEndpointNotFound(t *testing.T) {
	srv := testServer(t, engine.Deps{
		Metadata: &stubMetadata{err: engine.ErrNotFound},
	})

	body := bytes.NewBufferString(`{"url":"https://youtu.be/dQw4w9WgXcQ"}`)
	resp, err := http.Post(srv.URL+"/api/insight", "application/json", body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	var eb errorBody
	if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if eb.Code != engine.CodeNotFound {
		t.Errorf("code = %s, want not_found", eb.Code)
	}
}

func TestInsightEndpointRejectsMissingURL(t *testing.T) {
	srv := testServer(t, workingDeps())

	resp, err := http.Post(srv.URL+"/api/insight", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestStreamEndpoint(t *testing.T) {
	srv := testServer(t, workingDeps())

	resp, err := http.Get(srv.URL + "/api/insight/stream?url=" + "https%3A%2F%2Fyoutu.be%2FdQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type = %q", ct)
	}

	var frames []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			frames = append(frames, strings.TrimPrefix(line, "event: "))
		}
	}

	if len(frames) == 0 {
		t.Fatal("no SSE frames received")
	}
	last := frames[len(frames)-1]
	if last != "result" {
		t.Errorf("last frame = %q, want result", last)
	}
	stepFrames := 0
	for _, f := range frames[:len(frames)-1] {
		if f != "step" {
			t.Errorf("non-terminal frame = %q, want step", f)
		}
		stepFrames++
	}
	if stepFrames != 8 { // 4 steps x start+done
		t.Errorf("got %d step frames, want 8", stepFrames)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := testServer(t, workingDeps())

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(buf.String(), "runs_started") {
		t.Errorf("metrics output missing counters: %q", buf.String())
	}
}
