package fetcher

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/knowbase/kb-assistant/common/httpx"
	"github.com/knowbase/kb-assistant/config"
	"github.com/knowbase/kb-assistant/schema"
)

const (
	defaultUserAgent = "kb-assistant/1.0 (+https://github.com/knowbase/kb-assistant)"
	maxBodyBytes     = 10 << 20
)

// Fetcher downloads source pages and reduces them to clean text.
type Fetcher struct {
	client    *httpx.Client
	timeout   time.Duration
	userAgent string
}

func New(cfg config.IngestConfig, client *httpx.Client) *Fetcher {
	if client == nil {
		client = httpx.NewFromConfig(nil)
	}
	timeout := 30 * time.Second
	if cfg.FetchTimeoutMs > 0 {
		timeout = time.Duration(cfg.FetchTimeoutMs) * time.Millisecond
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Fetcher{client: client, timeout: timeout, userAgent: ua}
}

// Fetch downloads one page and returns its cleaned content. The content hash
// covers both URL and text, so the same text served from two URLs hashes
// differently.
func (f *Fetcher) Fetch(ctx context.Context, page config.PageSource) (schema.PageContent, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, page.URL, nil)
	if err != nil {
		return schema.PageContent{}, fmt.Errorf("build request for %s failed, err: %w", page.URL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return schema.PageContent{}, fmt.Errorf("fetch %s failed, err: %w", page.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return schema.PageContent{}, fmt.Errorf("fetch %s failed, status: %d", page.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return schema.PageContent{}, fmt.Errorf("read body of %s failed, err: %w", page.URL, err)
	}

	text, err := ExtractText(string(body))
	if err != nil {
		return schema.PageContent{}, fmt.Errorf("parse %s failed, err: %w", page.URL, err)
	}
	if text == "" {
		return schema.PageContent{}, fmt.Errorf("page %s yielded no text content", page.URL)
	}

	return schema.PageContent{
		URL:         page.URL,
		Label:       page.Label,
		Content:     text,
		ContentHash: ContentHash(page.URL, text),
		ScrapedAt:   time.Now().UTC(),
		WordCount:   len(strings.Fields(text)),
	}, nil
}

// ContentHash fingerprints a page by URL and cleaned text.
func ContentHash(url, content string) string {
	sum := md5.Sum([]byte(url + content))
	return hex.EncodeToString(sum[:])
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"nav": true, "header": true, "footer": true, "aside": true,
	"iframe": true, "svg": true,
}

// ExtractText strips an HTML document down to its visible prose. Chrome
// elements (navigation, headers, footers, scripts) are dropped, and when the
// document has a main or article element only that subtree is used.
func ExtractText(rawHTML string) (string, error) {
	root, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	start := findMainContent(root)
	if start == nil {
		start = root
	}

	var sb strings.Builder
	collectText(start, &sb)
	return collapseWhitespace(sb.String()), nil
}

// findMainContent returns the most specific content root the page offers.
func findMainContent(n *html.Node) *html.Node {
	var main, article, contentDiv *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "main":
				if main == nil {
					main = n
				}
			case "article":
				if article == nil {
					article = n
				}
			case "div":
				if contentDiv == nil && hasContentAttr(n) {
					contentDiv = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)

	if main != nil {
		return main
	}
	if article != nil {
		return article
	}
	return contentDiv
}

func hasContentAttr(n *html.Node) bool {
	for _, attr := range n.Attr {
		if (attr.Key == "id" || attr.Key == "class") && strings.Contains(strings.ToLower(attr.Val), "content") {
			return true
		}
	}
	return false
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skipTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		sb.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
