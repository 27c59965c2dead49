package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anatolykoptev/go-kit/llm"
)

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// llmTranslator translates segments through the chat-completion backend.
type llmTranslator struct {
	client  *llm.Client
	metrics *Metrics
}

// translateChunkSize caps how many segments go into one LLM call; long
// transcripts are translated in order, chunk by chunk.
const translateChunkSize = 80

func (t *llmTranslator) Translate(ctx context.Context, segments []Segment, sourceLang, targetLang string) ([]Segment, error) {
	out := make([]Segment, len(segments))
	copy(out, segments)

	for start := 0; start < len(segments); start += translateChunkSize {
		end := min(start+translateChunkSize, len(segments))
		lines := make([]string, 0, end-start)
		for _, seg := range segments[start:end] {
			lines = append(lines, seg.Text)
		}
		linesJSON, err := json.Marshal(lines)
		if err != nil {
			return nil, err
		}

		t.metrics.LLMCalls.Add(1)
		raw, err := t.client.Complete(ctx, "", fmt.Sprintf(translatePrompt, targetLang, linesJSON),
			llm.WithChatTemperature(0.2),
		)
		if err != nil {
			t.metrics.LLMErrors.Add(1)
			return nil, err
		}

		var translated []string
		if err := json.Unmarshal([]byte(stripFences(raw)), &translated); err != nil {
			return nil, fmt.Errorf("translate: parse failed on %q: %w", TruncateRunes(raw, 120, "..."), err)
		}
		if len(translated) != end-start {
			return nil, fmt.Errorf("translate: got %d lines for %d segments", len(translated), end-start)
		}
		for i, text := range translated {
			out[start+i].OriginalText = segments[start+i].Text
			out[start+i].TranslatedText = text
			out[start+i].Text = text
		}
	}
	return out, nil
}

// llmAnalyzer produces the analysis payload through the LLM backend.
type llmAnalyzer struct {
	client  *llm.Client
	metrics *Metrics
}

func (a *llmAnalyzer) Analyze(ctx context.Context, in AnalysisInput, targetLang string) (*AnalysisResult, error) {
	transcript := in.TranscriptText
	if transcript == "" {
		transcript = "(no transcript available; analyze from metadata only)"
	}
	prompt := fmt.Sprintf(analyzePrompt, targetLang, in.Title, in.Author, in.Description, transcript)

	a.metrics.LLMCalls.Add(1)
	raw, err := a.client.Complete(ctx, "", prompt,
		llm.WithChatTemperature(0.3),
	)
	if err != nil {
		a.metrics.LLMErrors.Add(1)
		return nil, err
	}

	var out AnalysisResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		// Malformed JSON still usually carries the summary text.
		if summary := extractJSONField(raw, "summary"); summary != "" {
			return &AnalysisResult{Summary: summary, Score: defaultScore}, nil
		}
		return nil, fmt.Errorf("analyze: parse failed on %q: %w", TruncateRunes(raw, 120, "..."), err)
	}
	if out.Summary == "" {
		return nil, fmt.Errorf("analyze: empty summary in response")
	}
	return &out, nil
}

// extractJSONField pulls a string field out of malformed JSON where the
// value may contain unescaped newlines or quotes.
func extractJSONField(raw, field string) string {
	prefix := `"` + field + `"`
	idx := strings.Index(raw, prefix)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(raw[idx+len(prefix):])
	if len(rest) == 0 || rest[0] != ':' {
		return ""
	}
	rest = strings.TrimSpace(rest[1:])
	if len(rest) == 0 || rest[0] != '"' {
		return ""
	}
	rest = rest[1:]

	var sb strings.Builder
	for i := 0; i < len(rest); i++ {
		if rest[i] == '\\' && i+1 < len(rest) {
			switch rest[i+1] {
			case '"':
				sb.WriteByte('"')
				i++
				continue
			case 'n':
				sb.WriteByte('\n')
				i++
				continue
			}
			sb.WriteByte(rest[i])
			continue
		}
		if rest[i] == '"' {
			return sb.String()
		}
		sb.WriteByte(rest[i])
	}
	if sb.Len() > 0 {
		return sb.String()
	}
	return ""
}
