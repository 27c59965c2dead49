// go_insight is a media analysis MCP server.
//
// Given a YouTube video or article URL it fetches metadata, resolves a
// transcript (scraped captions with a speech-to-text fallback), translates
// it to the target language, and returns an AI analysis. Exposed as an
// MCP tool (media_insight) and as an HTTP API with an SSE progress stream.
package main

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anatolykoptev/go-mcpserver"
	"github.com/anatolykoptev/go_insight/internal/engine"
	"github.com/anatolykoptev/go_insight/internal/engine/sources"
	"github.com/anatolykoptev/go_insight/internal/insightserver"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var (
	version  = "dev"
	mcpPort  = env.Str("MCP_PORT", "8893")
	httpAddr = env.Str("HTTP_ADDR", ":8894")
)

func main() {
	eng := buildEngine()

	slog.Info("starting go_insight",
		slog.String("mcp_port", mcpPort),
		slog.String("http_addr", httpAddr),
	)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "go_insight",
		Version: version,
	}, nil)
	insightserver.RegisterTools(server, eng)

	httpSrv := insightserver.NewHTTPServer(eng, httpAddr)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server failed", slog.Any("error", err))
		}
	}()

	if err := mcpserver.Run(server, mcpserver.Config{
		Name:         "go_insight",
		Version:      version,
		Port:         mcpPort,
		WriteTimeout: 600 * time.Second,
		Metrics:      func() string { return eng.Metrics().Format(eng.Cache()) },
	}); err != nil {
		slog.Error("server failed", slog.Any("error", err))
	}
}

func buildEngine() *engine.Engine {
	sttBaseURL := env.Str("STT_BASE_URL", "")
	cfg := engine.Config{
		TargetLanguage:        env.Str("TARGET_LANGUAGE", "ko"),
		STTEnabled:            sttBaseURL != "",
		STTBaseURL:            sttBaseURL,
		STTMaxDurationMinutes: env.Int("STT_MAX_DURATION_MINUTES", 30),
		STTTimeout:            env.Duration("STT_TIMEOUT", 120*time.Second),
		CaptionTimeout:        env.Duration("CAPTION_TIMEOUT", 20*time.Second),
		AnalysisTimeout:       env.Duration("ANALYSIS_TIMEOUT", 90*time.Second),
		RunTimeout:            env.Duration("RUN_TIMEOUT", 5*time.Minute),
		FetchTimeout:          env.Duration("FETCH_TIMEOUT", 10*time.Second),
		MaxTranscriptChars:    env.Int("MAX_TRANSCRIPT_CHARS", 12000),
		MaxContentChars:       env.Int("MAX_CONTENT_CHARS", 6000),
		CacheMetadataTTL:      env.Duration("CACHE_METADATA_TTL", time.Hour),
		CacheTranscriptTTL:    env.Duration("CACHE_TRANSCRIPT_TTL", 24*time.Hour),
		CacheMaxEntries:       env.Int("CACHE_MAX_ENTRIES", 1000),
		CacheCleanupInterval:  env.Duration("CACHE_CLEANUP_INTERVAL", 300*time.Second),
		YouTubeAPIKey:         env.Str("YOUTUBE_API_KEY", ""),
		YouTubeAPIKeyFallback: env.Str("YOUTUBE_API_KEY_FALLBACK", ""),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		},
	}

	cfg.LLMClient = llm.NewClient(
		env.Str("LLM_API_BASE", "https://generativelanguage.googleapis.com/v1beta/openai"),
		env.Str("LLM_API_KEY", ""),
		env.Str("LLM_MODEL", "gemini-2.5-flash"),
		llm.WithFallbackKeys(env.List("LLM_API_KEY_FALLBACKS", "")),
		llm.WithMaxTokens(env.Int("LLM_MAX_TOKENS", 16384)),
		llm.WithTemperature(env.Float("LLM_TEMPERATURE", 0.2)),
		llm.WithHTTPClient(&http.Client{Timeout: 90 * time.Second}),
	)

	deps := engine.Deps{
		Metadata: &sources.YouTubeClient{
			HTTP:        cfg.HTTPClient,
			APIKey:      cfg.YouTubeAPIKey,
			FallbackKey: cfg.YouTubeAPIKeyFallback,
		},
		Articles: &sources.ArticleExtractor{MaxContentChars: cfg.MaxContentChars},
		Cache:    engine.NewCache(env.Str("REDIS_URL", ""), cfg.CacheMaxEntries, cfg.CacheCleanupInterval),
	}

	captions := &sources.CaptionsClient{HTTP: cfg.HTTPClient}
	if bc, err := engine.NewBrowserClient(env.Float("SCRAPE_RPS", 2)); err != nil {
		slog.Warn("browser client init failed, caption scraping degraded", slog.Any("error", err))
	} else {
		captions.Browser = bc
		slog.Info("browser client initialized")
	}
	deps.Captions = captions

	if cfg.STTEnabled {
		deps.STT = &sources.SpeechClient{
			HTTP:    &http.Client{Timeout: cfg.STTTimeout},
			BaseURL: cfg.STTBaseURL,
		}
		slog.Info("stt fallback enabled", slog.String("base_url", cfg.STTBaseURL))
	}

	if dataDir := env.Str("DATA_DIR", ""); dataDir != "" {
		h, err := engine.OpenHistory(dataDir)
		if err != nil {
			slog.Warn("history init failed, continuing without persistence", slog.Any("error", err))
		} else {
			deps.History = h
			slog.Info("history initialized", slog.String("dir", dataDir))
		}
	}

	return engine.NewEngine(cfg, deps)
}
