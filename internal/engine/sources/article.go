package sources

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	readability "codeberg.org/readeck/go-readability/v2"
	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v5"

	"github.com/anatolykoptev/go_insight/internal/engine"
)

// ArticleExtractor fetches a web page and extracts its readable body.
// Readability is tried first; goquery-based extraction covers pages
// readability cannot parse.
type ArticleExtractor struct {
	MaxContentChars int
}

var _ engine.ArticleClient = (*ArticleExtractor)(nil)

// FetchArticle downloads rawURL and returns article metadata with the
// extracted body in BodyText.
func (a *ArticleExtractor) FetchArticle(ctx context.Context, rawURL string) (*engine.Metadata, error) {
	resp, err := fetchHTMLWithRetry(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return nil, engine.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch article: status %d", resp.StatusCode)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read article body: %w", err)
	}

	meta := a.extractReadable(rawURL, body)
	if meta == nil {
		meta = a.extractGoquery(rawURL, body)
	}
	if meta == nil || strings.TrimSpace(meta.BodyText) == "" {
		return nil, engine.ErrNotFound
	}
	return meta, nil
}

// extractReadable runs readability and converts the article HTML to
// markdown. Returns nil if readability cannot find an article.
func (a *ArticleExtractor) extractReadable(rawURL string, body []byte) *engine.Metadata {
	parsedURL, _ := url.Parse(rawURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return nil
	}

	var htmlBuf strings.Builder
	_ = article.RenderHTML(&htmlBuf)

	md, err := htmltomarkdown.ConvertString(htmlBuf.String())
	if err != nil {
		var textBuf strings.Builder
		_ = article.RenderText(&textBuf)
		md = textBuf.String()
	}

	text := strings.TrimSpace(md)
	if text == "" {
		return nil
	}

	meta := &engine.Metadata{
		ResourceID: rawURL,
		Kind:       engine.KindArticle,
		URL:        rawURL,
		Title:      article.Title(),
		BodyText:   engine.TruncateAtWord(text, a.maxChars()),
	}
	a.fillMetaTags(meta, body)
	return meta
}

// extractGoquery is the fallback extraction for pages readability rejects.
func (a *ArticleExtractor) extractGoquery(rawURL string, body []byte) *engine.Metadata {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title, _ = doc.Find("meta[property='og:title']").First().Attr("content")
	}

	doc.Find(strings.Join([]string{
		"script", "style", "noscript", "iframe", "svg",
		"header", "footer", "nav", "aside",
		".advertisement", ".ad", ".sidebar", ".comments",
	}, ", ")).Remove()

	contentSel := doc.Find("article, main, .content, .post-content, .article-content, #content").First()
	if contentSel.Length() == 0 {
		contentSel = doc.Find("body")
	}

	content := collapseWhitespace(contentSel.Text())
	meta := &engine.Metadata{
		ResourceID: rawURL,
		Kind:       engine.KindArticle,
		URL:        rawURL,
		Title:      title,
		BodyText:   engine.TruncateAtWord(content, a.maxChars()),
	}
	a.fillMetaTags(meta, body)
	return meta
}

// fillMetaTags fills Author and Description from meta tags when empty.
func (a *ArticleExtractor) fillMetaTags(meta *engine.Metadata, body []byte) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return
	}
	if meta.Author == "" {
		meta.Author, _ = doc.Find("meta[name='author']").First().Attr("content")
	}
	if meta.Description == "" {
		meta.Description, _ = doc.Find("meta[property='og:description']").First().Attr("content")
		if meta.Description == "" {
			meta.Description, _ = doc.Find("meta[name='description']").First().Attr("content")
		}
	}
	meta.Author = strings.TrimSpace(meta.Author)
	meta.Description = strings.TrimSpace(meta.Description)
}

func (a *ArticleExtractor) maxChars() int {
	if a.MaxContentChars > 0 {
		return a.MaxContentChars
	}
	return 12000
}

var wsRE = regexp.MustCompile(`[ \t]+`)

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	clean := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(wsRE.ReplaceAllString(line, " "))
		if line != "" {
			clean = append(clean, line)
		}
	}
	return strings.Join(clean, "\n")
}

// fetchHTMLWithRetry performs an HTTP GET with exponential backoff.
// Retryable statuses are retried; anything else is permanent.
func fetchHTMLWithRetry(ctx context.Context, fetchURL string) (*http.Response, error) {
	client := newFetchClient()

	operation := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Accept-Encoding", "gzip, deflate")

		resp, err := client.Do(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		if engine.IsRetryableStatus(resp.StatusCode) {
			resp.Body.Close()
			return nil, fmt.Errorf("status %d", resp.StatusCode)
		}
		return resp, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.MaxInterval = 10 * time.Second

	return backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(3), backoff.WithMaxElapsedTime(30*time.Second))
}

func newFetchClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 5,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 15 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		},
	}
}

// readResponseBody reads the body, decompressing gzip when needed.
func readResponseBody(resp *http.Response) ([]byte, error) {
	r := io.Reader(resp.Body)
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		r = gz
	}
	return io.ReadAll(io.LimitReader(r, 8*1024*1024))
}
