package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/anatolykoptev/go_insight/internal/engine"
)

// SpeechClient talks to an external speech-to-text service. The service
// downloads the audio itself given the resource id, so requests are
// small and the response carries the full timed transcript.
type SpeechClient struct {
	HTTP    *http.Client
	BaseURL string
}

var _ engine.STTClient = (*SpeechClient)(nil)

type sttRequest struct {
	ResourceID string `json:"resource_id"`
	Language   string `json:"language,omitempty"`
}

type sttResponse struct {
	Language string `json:"language"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe submits one resource for transcription and waits for the
// result. Policy rejections from the service (payload too large,
// unprocessable media) surface as CodePolicyRejected.
func (c *SpeechClient) Transcribe(ctx context.Context, resourceID, languageHint string) (string, []engine.Segment, error) {
	reqBody, err := json.Marshal(sttRequest{ResourceID: resourceID, Language: languageHint})
	if err != nil {
		return "", nil, err
	}

	endpoint := strings.TrimRight(c.BaseURL, "/") + "/v1/transcribe"
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return c.HTTP.Do(req)
	})
	if err != nil {
		return "", nil, fmt.Errorf("stt request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", nil, engine.ErrNotFound
	case http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", nil, &engine.PipelineError{
			Code:    engine.CodePolicyRejected,
			Message: fmt.Sprintf("speech service rejected resource: %s", strings.TrimSpace(string(snippet))),
		}
	default:
		return "", nil, fmt.Errorf("stt HTTP %d", resp.StatusCode)
	}

	var parsed sttResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 16*1024*1024)).Decode(&parsed); err != nil {
		return "", nil, fmt.Errorf("decode stt response: %w", err)
	}

	segments := make([]engine.Segment, 0, len(parsed.Segments))
	for _, s := range parsed.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, engine.Segment{Start: s.Start, End: s.End, Text: text})
	}
	return parsed.Language, segments, nil
}
