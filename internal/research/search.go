package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"taskpilot/internal/logger"
	"taskpilot/internal/utils"
)

const (
	DefaultSearxURL = "http://localhost:8081/search"
	DefaultDDGURL   = "https://html.duckduckgo.com/html/"
	userAgent       = "taskpilot-researcher/1.0"
)

type Link struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Searcher queries SearXNG and falls back to DuckDuckGo's HTML endpoint.
type Searcher struct {
	SearxURL string
	DDGURL   string
	client   *http.Client
	log      *slog.Logger
}

func NewSearcher(searxURL string, timeout time.Duration, log *slog.Logger) *Searcher {
	if searxURL == "" {
		searxURL = DefaultSearxURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Searcher{
		SearxURL: searxURL,
		DDGURL:   DefaultDDGURL,
		client:   &http.Client{Timeout: timeout},
		log:      logger.OrDefault(log),
	}
}

// Search returns up to limit links. Errors from either backend only show
// up as an empty result.
func (s *Searcher) Search(ctx context.Context, query string, limit int) []Link {
	links, err := s.Searx(ctx, query, limit, "it,dev,science")
	if err == nil && len(links) > 0 {
		return links
	}
	s.log.Warn("[Research] SearXNG failed or empty, switching to DuckDuckGo", "query", query, "err", err)

	links, err = s.DuckDuckGo(ctx, query, limit)
	if err != nil {
		s.log.Error("[Research] DuckDuckGo failed", "query", query, "err", err)
		return nil
	}
	return links
}

type searxResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Searx runs one SearXNG JSON query. An empty categories string searches
// every category.
func (s *Searcher) Searx(ctx context.Context, query string, limit int, categories string) ([]Link, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("language", "en-US")
	if categories != "" {
		params.Set("categories", categories)
	}

	body, err := s.get(ctx, s.SearxURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var resp searxResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode searx response: %w", err)
	}
	out := make([]Link, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, Link{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return capLinks(out, limit), nil
}

func (s *Searcher) DuckDuckGo(ctx context.Context, query string, limit int) ([]Link, error) {
	body, err := s.get(ctx, s.DDGURL+"?"+url.Values{"q": {query}}.Encode())
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse duckduckgo html: %w", err)
	}
	var out []Link
	doc.Find(".result").Each(func(_ int, r *goquery.Selection) {
		a := r.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		target := utils.UnwrapRedirect(utils.Absolute(s.DDGURL, href))
		if !utils.IsHTTP(target) {
			return
		}
		out = append(out, Link{
			Title:   strings.TrimSpace(a.Text()),
			URL:     target,
			Snippet: strings.TrimSpace(r.Find(".result__snippet").First().Text()),
		})
	})
	return capLinks(out, limit), nil
}

func (s *Searcher) get(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", target, resp.StatusCode)
	}
	return resp.Body, nil
}

func capLinks(links []Link, limit int) []Link {
	if limit > 0 && len(links) > limit {
		return links[:limit]
	}
	return links
}
