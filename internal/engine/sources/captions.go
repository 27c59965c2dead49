package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/anatolykoptev/go_insight/internal/engine"
)

const playerRespMarker = "var ytInitialPlayerResponse = "

// CaptionsClient fetches YouTube caption tracks. The watch page is tried
// first (tracks there rarely need a PO token), then the Innertube player
// endpoint.
type CaptionsClient struct {
	Browser *engine.BrowserClient
	HTTP    *http.Client
}

var _ engine.CaptionClient = (*CaptionsClient)(nil)

// FetchCaptions returns the language code and segments of the best
// available track. engine.ErrNotFound means the video has no usable
// captions at all.
func (c *CaptionsClient) FetchCaptions(ctx context.Context, videoID string, langs []string) (string, []engine.Segment, error) {
	tracks, err := c.scrapeWatchPage(ctx, videoID)
	if err != nil || len(tracks) == 0 {
		if err != nil {
			slog.Debug("watch page scrape failed, trying innertube",
				slog.String("id", videoID), slog.Any("error", err))
		}
		tracks, err = c.playerTracks(ctx, videoID)
		if err != nil {
			return "", nil, err
		}
	}

	track := pickBestTrack(tracks, langs)
	if track == nil {
		return "", nil, engine.ErrNotFound
	}

	segments, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		return "", nil, fmt.Errorf("timedtext %s: %w", track.LanguageCode, err)
	}
	if len(segments) == 0 {
		return "", nil, engine.ErrNotFound
	}
	return track.LanguageCode, segments, nil
}

// scrapeWatchPage pulls caption tracks out of the ytInitialPlayerResponse
// blob embedded in the watch page HTML.
func (c *CaptionsClient) scrapeWatchPage(ctx context.Context, videoID string) ([]captionTrack, error) {
	if c.Browser == nil {
		return nil, fmt.Errorf("no browser client")
	}

	body, status, err := c.Browser.Do(ctx, http.MethodGet,
		"https://www.youtube.com/watch?v="+videoID+"&hl=en", engine.ChromeHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("watch page HTTP %d", status)
	}

	idx := bytes.Index(body, []byte(playerRespMarker))
	if idx < 0 {
		return nil, fmt.Errorf("no player response in watch page")
	}
	raw := extractJSON(body[idx+len(playerRespMarker):])
	if raw == nil {
		return nil, fmt.Errorf("unbalanced player response JSON")
	}

	var playerResp innertubePlayerResp
	if err := json.Unmarshal(raw, &playerResp); err != nil {
		return nil, fmt.Errorf("parse player response: %w", err)
	}
	if playerResp.Captions == nil {
		return nil, nil
	}
	return playerResp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

func (c *CaptionsClient) playerTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	playerResp, err := fetchPlayerResponse(ctx, c.HTTP, videoID)
	if err != nil {
		return nil, err
	}
	if playerResp.Captions == nil {
		return nil, engine.ErrNotFound
	}
	tracks := playerResp.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return nil, engine.ErrNotFound
	}
	return tracks, nil
}

// pickBestTrack prefers, in order: a manual track in a requested language,
// an ASR track in a requested language, then any usable track. Tracks
// whose URL demands a PO token are skipped since fetching them returns an
// empty body.
func pickBestTrack(tracks []captionTrack, langs []string) *captionTrack {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if t.BaseURL == "" || needsPoToken(t.BaseURL) {
			continue
		}
		usable = append(usable, t)
	}
	if len(usable) == 0 {
		return nil
	}

	for _, lang := range langs {
		if lang == "" {
			continue
		}
		for i, t := range usable {
			if engine.LanguageMatches(t.LanguageCode, lang) && t.Kind != "asr" {
				return &usable[i]
			}
		}
		for i, t := range usable {
			if engine.LanguageMatches(t.LanguageCode, lang) {
				return &usable[i]
			}
		}
	}

	for i, t := range usable {
		if t.Kind != "asr" {
			return &usable[i]
		}
	}
	return &usable[0]
}

// needsPoToken reports whether the track URL carries the experiment flag
// that makes timedtext require a proof-of-origin token.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// fetchTimedText downloads a track and converts it to segments.
func (c *CaptionsClient) fetchTimedText(ctx context.Context, baseURL string) ([]engine.Segment, error) {
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.UserAgentChrome)
		return c.HTTP.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, err
	}
	return parseTimedText(body)
}

// parseTimedText converts timedtext XML into ordered segments.
func parseTimedText(data []byte) ([]engine.Segment, error) {
	var tt ytTimedText
	if err := xml.Unmarshal(data, &tt); err != nil {
		return nil, fmt.Errorf("parse timedtext: %w", err)
	}

	segments := make([]engine.Segment, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		// Timedtext double-escapes entities ("&amp;amp;").
		text := strings.TrimSpace(engine.CleanHTML(html.UnescapeString(line.Text)))
		if text == "" {
			continue
		}
		segments = append(segments, engine.Segment{
			Start: line.Start,
			End:   line.Start + line.Dur,
			Text:  text,
		})
	}
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })
	return segments, nil
}
