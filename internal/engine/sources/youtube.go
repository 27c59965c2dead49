package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_insight/internal/engine"
)

// YouTube metadata: Data API v3 when a key is configured, ANDROID
// Innertube /player otherwise.

const ytDataAPIBase = "https://www.googleapis.com/youtube/v3"

// YouTubeClient fetches video metadata.
type YouTubeClient struct {
	HTTP        *http.Client
	APIKey      string
	FallbackKey string
}

var _ engine.MetadataProvider = (*YouTubeClient)(nil)

// FetchMetadata returns metadata for one video, or engine.ErrNotFound.
func (c *YouTubeClient) FetchMetadata(ctx context.Context, videoID string) (*engine.Metadata, error) {
	if c.APIKey != "" {
		meta, err := c.fetchViaDataAPI(ctx, videoID)
		if err == nil || errors.Is(err, engine.ErrNotFound) {
			return meta, err
		}
		slog.Warn("youtube data API failed, falling back to innertube",
			slog.String("id", videoID), slog.Any("error", err))
	}
	return c.fetchViaPlayer(ctx, videoID)
}

// --- YouTube Data API v3 ---

type ytVideosResp struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"` // ISO 8601, e.g. PT1H2M3S
		} `json:"contentDetails"`
	} `json:"items"`
}

// fetchViaDataAPI uses videos.list, falling back to the secondary key on
// quota errors (403).
func (c *YouTubeClient) fetchViaDataAPI(ctx context.Context, videoID string) (*engine.Metadata, error) {
	keys := []string{c.APIKey}
	if c.FallbackKey != "" {
		keys = append(keys, c.FallbackKey)
	}
	var lastErr error
	for _, key := range keys {
		meta, err := c.doVideosList(ctx, videoID, key)
		if err == nil || errors.Is(err, engine.ErrNotFound) {
			return meta, err
		}
		lastErr = err
		slog.Debug("youtube data API key failed, trying fallback", slog.Any("err", err))
	}
	return nil, lastErr
}

func (c *YouTubeClient) doVideosList(ctx context.Context, videoID, apiKey string) (*engine.Metadata, error) {
	params := url.Values{}
	params.Set("part", "snippet,contentDetails")
	params.Set("id", videoID)
	params.Set("key", apiKey)

	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ytDataAPIBase+"/videos?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentBot)
		return c.HTTP.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("videos.list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("videos.list HTTP %d: %s", resp.StatusCode, snippet)
	}

	var parsed ytVideosResp
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1024*1024)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode videos.list: %w", err)
	}
	if len(parsed.Items) == 0 {
		return nil, engine.ErrNotFound
	}

	item := parsed.Items[0]
	return &engine.Metadata{
		ResourceID:      videoID,
		Kind:            engine.KindVideo,
		URL:             "https://www.youtube.com/watch?v=" + videoID,
		Title:           item.Snippet.Title,
		Author:          item.Snippet.ChannelTitle,
		Description:     item.Snippet.Description,
		DurationSeconds: ParseISODuration(item.ContentDetails.Duration),
	}, nil
}

// fetchViaPlayer extracts metadata from the Innertube player response.
func (c *YouTubeClient) fetchViaPlayer(ctx context.Context, videoID string) (*engine.Metadata, error) {
	playerResp, err := fetchPlayerResponse(ctx, c.HTTP, videoID)
	if err != nil {
		return nil, err
	}

	if playerResp.PlayabilityStatus != nil && playerResp.PlayabilityStatus.Status == "ERROR" {
		return nil, engine.ErrNotFound
	}
	if playerResp.VideoDetails == nil {
		return nil, fmt.Errorf("no videoDetails in player response")
	}

	d := playerResp.VideoDetails
	length, _ := strconv.Atoi(d.LengthSeconds)
	return &engine.Metadata{
		ResourceID:      videoID,
		Kind:            engine.KindVideo,
		URL:             "https://www.youtube.com/watch?v=" + videoID,
		Title:           d.Title,
		Author:          d.Author,
		Description:     d.ShortDescription,
		DurationSeconds: length,
	}, nil
}

// ParseISODuration converts an ISO 8601 duration like "PT1H2M3S" to
// seconds. Returns 0 for anything it cannot parse.
func ParseISODuration(s string) int {
	s = strings.TrimPrefix(s, "P")
	s = strings.TrimPrefix(s, "T")
	if s == "" {
		return 0
	}

	total := 0
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
		case r == 'T':
			num = ""
		default:
			n, err := strconv.Atoi(num)
			if err != nil {
				return 0
			}
			switch r {
			case 'D':
				total += n * 86400
			case 'H':
				total += n * 3600
			case 'M':
				total += n * 60
			case 'S':
				total += n
			default:
				return 0
			}
			num = ""
		}
	}
	return total
}
