package research

import (
	"context"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	htmldom "golang.org/x/net/html"

	"taskpilot/internal/logger"
)

const (
	primaryLimit  = 15000
	fallbackLimit = 10000
	maxPageBytes  = 4 << 20
)

const noise = "script, style, noscript, nav, footer, header, aside, form, iframe, svg"

// blockTags end a line when flattening a document to text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "pre": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "blockquote": true, "table": true,
}

type Scraper struct {
	client *http.Client
	strict *bluemonday.Policy
	log    *slog.Logger
}

func NewScraper(timeout time.Duration, log *slog.Logger) *Scraper {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Scraper{
		client: &http.Client{Timeout: timeout},
		strict: bluemonday.StrictPolicy(),
		log:    logger.OrDefault(log),
	}
}

// Scrape downloads url and returns readable text. Failures come back as
// text starting with "Error scraping".
func (s *Scraper) Scrape(ctx context.Context, url string) string {
	page, err := s.fetch(ctx, url)
	if err != nil {
		return fmt.Sprintf("Error scraping %s: %v", url, err)
	}
	if text := ExtractMain(page); text != "" {
		return truncate(text, primaryLimit)
	}
	s.log.Debug("[Research] main content empty, using fallback", "url", url)
	return truncate(s.Fallback(page), fallbackLimit)
}

func (s *Scraper) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ExtractMain returns the text of the page's article or main element,
// keeping block structure as line breaks. Pages without either yield "".
func ExtractMain(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	doc.Find(noise).Remove()

	main := doc.Find("article").First()
	if main.Length() == 0 {
		main = doc.Find("main, [role=main]").First()
	}
	if main.Length() == 0 {
		return ""
	}
	var b strings.Builder
	for _, n := range main.Nodes {
		writeText(&b, n)
	}
	return tidy(b.String())
}

func writeText(b *strings.Builder, n *htmldom.Node) {
	switch n.Type {
	case htmldom.TextNode:
		b.WriteString(n.Data)
		return
	case htmldom.ElementNode, htmldom.DocumentNode:
	default:
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if n.Type == htmldom.ElementNode && blockTags[n.Data] {
		b.WriteByte('\n')
	}
}

// Fallback strips every tag from the page body after dropping noise
// elements.
func (s *Scraper) Fallback(page string) string {
	body := page
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(page)); err == nil {
		doc.Find(noise).Remove()
		if h, err := doc.Find("body").Html(); err == nil && h != "" {
			body = h
		}
	}
	for tag := range blockTags {
		body = strings.ReplaceAll(body, "</"+tag+">", "</"+tag+">\n")
	}
	body = strings.ReplaceAll(body, "<br>", "\n")
	return tidy(html.UnescapeString(s.strict.Sanitize(body)))
}

// tidy trims every line, splits on double spaces and drops blank lines.
func tidy(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		for _, phrase := range strings.Split(line, "  ") {
			if p := strings.TrimSpace(phrase); p != "" {
				out = append(out, p)
			}
		}
	}
	return strings.Join(out, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
