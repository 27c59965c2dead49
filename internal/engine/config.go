package engine

import (
	"context"
	"net/http"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	// Target language for translation and analysis output.
	TargetLanguage string

	// Speech-to-text fallback.
	STTEnabled            bool
	STTBaseURL            string
	STTMaxDurationMinutes int
	STTTimeout            time.Duration

	// Per-step budgets and the whole-run wall clock.
	CaptionTimeout  time.Duration
	AnalysisTimeout time.Duration
	RunTimeout      time.Duration
	FetchTimeout    time.Duration

	// Text budgets.
	MaxTranscriptChars int
	MaxContentChars    int

	// Cache TTLs: metadata is short-lived (titles and descriptions get
	// edited); transcripts are effectively immutable once captions exist.
	CacheMetadataTTL     time.Duration
	CacheTranscriptTTL   time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	// Upstream credentials and clients.
	YouTubeAPIKey         string
	YouTubeAPIKeyFallback string
	LLMClient             *llm.Client
	HTTPClient            *http.Client

	// Breaker tuning, shared by the per-dependency instances.
	BreakerFailureThreshold int
	BreakerRecoveryTimeout  time.Duration
	BreakerHalfOpenRequests int
}

// withDefaults fills unset fields with production defaults.
func (c Config) withDefaults() Config {
	if c.TargetLanguage == "" {
		c.TargetLanguage = "ko"
	}
	if c.STTMaxDurationMinutes <= 0 {
		c.STTMaxDurationMinutes = 30
	}
	if c.STTTimeout <= 0 {
		c.STTTimeout = 120 * time.Second
	}
	if c.CaptionTimeout <= 0 {
		c.CaptionTimeout = 20 * time.Second
	}
	if c.AnalysisTimeout <= 0 {
		c.AnalysisTimeout = 90 * time.Second
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.MaxTranscriptChars <= 0 {
		c.MaxTranscriptChars = 12000
	}
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = 6000
	}
	if c.CacheMetadataTTL <= 0 {
		c.CacheMetadataTTL = time.Hour
	}
	if c.CacheTranscriptTTL <= 0 {
		c.CacheTranscriptTTL = 24 * time.Hour
	}
	if c.CacheMaxEntries <= 0 {
		c.CacheMaxEntries = 1000
	}
	if c.CacheCleanupInterval <= 0 {
		c.CacheCleanupInterval = 5 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}

// --- Collaborator boundaries ---

// MetadataProvider fetches resource metadata. Returns ErrNotFound when the
// resource does not exist upstream.
type MetadataProvider interface {
	FetchMetadata(ctx context.Context, resourceID string) (*Metadata, error)
}

// ArticleClient extracts metadata and main text from a web article URL.
type ArticleClient interface {
	FetchArticle(ctx context.Context, rawURL string) (*Metadata, error)
}

// CaptionClient scrapes caption tracks from the public video page.
// langs is the preference order; implementations fall back to the first
// available track when no preference matches.
type CaptionClient interface {
	FetchCaptions(ctx context.Context, videoID string, langs []string) (lang string, segments []Segment, err error)
}

// STTClient transcribes a resource through the speech-to-text provider.
type STTClient interface {
	Transcribe(ctx context.Context, resourceID, languageHint string) (lang string, segments []Segment, err error)
}

// Translator converts segment text into the target language.
type Translator interface {
	Translate(ctx context.Context, segments []Segment, sourceLang, targetLang string) ([]Segment, error)
}

// Analyzer produces the AI analysis of the assembled input.
type Analyzer interface {
	Analyze(ctx context.Context, in AnalysisInput, targetLang string) (*AnalysisResult, error)
}

// Deps bundles the upstream collaborators injected into the engine.
// Translator and Analyzer default to LLM-backed implementations when nil
// and an LLM client is configured. A nil Cache gets a default in-process
// cache without an L2 tier.
type Deps struct {
	Metadata   MetadataProvider
	Articles   ArticleClient
	Captions   CaptionClient
	STT        STTClient
	Translator Translator
	Analyzer   Analyzer
	History    *History
	Cache      *Cache
}

// Engine owns the shared pipeline state: the cache and the per-dependency
// circuit breakers. Everything is an explicit instance passed by handle;
// there is no package-level singleton, so independent engines (tests) do
// not interfere.
type Engine struct {
	cfg     Config
	cache   *Cache
	metrics *Metrics
	history *History

	// One breaker per downstream dependency, process-lifetime.
	llmBreaker *Breaker
	sttBreaker *Breaker

	metadata   MetadataProvider
	articles   ArticleClient
	captions   CaptionClient
	stt        STTClient
	translator Translator
	analyzer   Analyzer
}

// NewEngine assembles an engine from configuration and collaborators.
func NewEngine(cfg Config, deps Deps) *Engine {
	cfg = cfg.withDefaults()

	cache := deps.Cache
	if cache == nil {
		cache = NewCache("", cfg.CacheMaxEntries, cfg.CacheCleanupInterval)
	}
	metrics := &Metrics{}

	e := &Engine{
		cfg:     cfg,
		cache:   cache,
		metrics: metrics,
		history: deps.History,
		llmBreaker: NewBreaker(BreakerSettings{
			Name:             "llm",
			FailureThreshold: cfg.BreakerFailureThreshold,
			RecoveryTimeout:  cfg.BreakerRecoveryTimeout,
			HalfOpenRequests: cfg.BreakerHalfOpenRequests,
			RejectionCounter: &metrics.BreakerRejections,
		}),
		sttBreaker: NewBreaker(BreakerSettings{
			Name:             "stt",
			FailureThreshold: cfg.BreakerFailureThreshold,
			RecoveryTimeout:  cfg.BreakerRecoveryTimeout,
			HalfOpenRequests: cfg.BreakerHalfOpenRequests,
			RejectionCounter: &metrics.BreakerRejections,
		}),
		metadata: deps.Metadata,
		articles: deps.Articles,
		captions: deps.Captions,
		stt:      deps.STT,
	}

	e.translator = deps.Translator
	if e.translator == nil && cfg.LLMClient != nil {
		e.translator = &llmTranslator{client: cfg.LLMClient, metrics: e.metrics}
	}
	e.analyzer = deps.Analyzer
	if e.analyzer == nil && cfg.LLMClient != nil {
		e.analyzer = &llmAnalyzer{client: cfg.LLMClient, metrics: e.metrics}
	}
	return e
}

// Metrics exposes the engine's counters to the transport layer.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Cache exposes the cache for the metrics endpoint.
func (e *Engine) Cache() *Cache { return e.cache }

// History exposes the analysis log, nil when persistence is disabled.
func (e *Engine) History() *History { return e.history }
