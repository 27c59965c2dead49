package engine

// --- Core resource types ---

// ResourceKind distinguishes the two ingestable source types.
type ResourceKind string

const (
	KindVideo   ResourceKind = "video"
	KindArticle ResourceKind = "article"
)

// Metadata describes the resource being analyzed. For articles, BodyText
// carries the extracted main content (videos get their text from captions).
type Metadata struct {
	ResourceID      string       `json:"resource_id"`
	Kind            ResourceKind `json:"kind"`
	URL             string       `json:"url"`
	Title           string       `json:"title"`
	Author          string       `json:"author,omitempty"`
	Description     string       `json:"description,omitempty"`
	DurationSeconds int          `json:"duration_seconds,omitempty"`
	BodyText        string       `json:"-"`
}

// --- Transcript types ---

// Segment is one timed span of transcript text. End >= Start always.
// Once the translation step has run, OriginalText and TranslatedText are
// both populated; for untranslated transcripts they equal Text.
type Segment struct {
	Start          float64 `json:"start"`
	End            float64 `json:"end"`
	Text           string  `json:"text"`
	OriginalText   string  `json:"originalText,omitempty"`
	TranslatedText string  `json:"translatedText,omitempty"`
}

// TranscriptSource identifies which provider produced a transcript.
type TranscriptSource string

const (
	SourcePrimary  TranscriptSource = "primary"  // scraped captions
	SourceFallback TranscriptSource = "fallback" // speech-to-text
	SourceNone     TranscriptSource = "none"
)

// TranscriptResult is the outcome of transcript resolution. Immutable once
// constructed; cached only when Segments is non-empty.
type TranscriptResult struct {
	Source           TranscriptSource `json:"source"`
	LanguageCode     string           `json:"languageCode,omitempty"`
	IsTargetLanguage bool             `json:"isTargetLanguage"`
	Segments         []Segment        `json:"segments"`
}

// Empty reports whether resolution produced no usable segments.
func (t TranscriptResult) Empty() bool { return len(t.Segments) == 0 }

// --- Analysis types ---

// AnalysisInput is the assembled payload handed to the analysis backend.
type AnalysisInput struct {
	Title          string
	Author         string
	Description    string
	TranscriptText string
	Segments       []Segment
}

// Highlight marks a notable moment in the source material.
type Highlight struct {
	Start float64 `json:"start"`
	Label string  `json:"label"`
}

// AnalysisResult is the AI-produced analysis. Degraded is set when the
// backend was unavailable and a fallback payload was substituted.
type AnalysisResult struct {
	Summary    string      `json:"summary"`
	Score      float64     `json:"score"`
	Keywords   []string    `json:"keywords,omitempty"`
	Highlights []Highlight `json:"highlights,omitempty"`
	Degraded   bool        `json:"degraded,omitempty"`
}

// --- Entry point I/O ---

// InsightInput is the request accepted by both entry points.
type InsightInput struct {
	URL            string `json:"url" jsonschema:"YouTube video or article URL to analyze"`
	TargetLanguage string `json:"target_language,omitempty" jsonschema:"Language code for the analysis output (default: ko)"`
}

// InsightOutput is the terminal result payload of one pipeline run.
type InsightOutput struct {
	Metadata   Metadata         `json:"metadata"`
	Transcript TranscriptResult `json:"transcript"`
	Analysis   AnalysisResult   `json:"analysis"`
}
