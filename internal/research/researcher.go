// Package research answers technical questions from the web: search, read
// the top pages, then let the model distil them.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"taskpilot/internal/llm_client"
	"taskpilot/internal/logger"
)

const (
	NoSources      = "No online sources found."
	minSourceChars = 100
	maxSourceChars = 5000
	scrapeWorkers  = 3
)

type Completer interface {
	Complete(ctx context.Context, req llm_client.Request, out any) error
}

type Result struct {
	Summary      string   `json:"summary"`
	CodeSnippets []string `json:"code_snippets"`
	Sources      []string `json:"sources"`
}

func resultSchema() map[string]any {
	list := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":       map[string]any{"type": "string"},
			"code_snippets": list,
			"sources":       list,
		},
		"required": []string{"summary", "code_snippets", "sources"},
	}
}

// String renders the result as tool output.
func (r Result) String() string {
	var sb strings.Builder
	sb.WriteString(r.Summary)
	if len(r.CodeSnippets) > 0 {
		sb.WriteString("\n\nCode snippets:\n")
		sb.WriteString(strings.Join(r.CodeSnippets, "\n---\n"))
	}
	if len(r.Sources) > 0 {
		sb.WriteString("\n\nSources:\n")
		for _, s := range r.Sources {
			sb.WriteString("- " + s + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

type Researcher struct {
	searcher *Searcher
	scraper  *Scraper
	llm      Completer
	system   string
	model    string
	limit    int
	log      *slog.Logger
}

type Options struct {
	System string
	Model  string
	Limit  int
}

func New(searcher *Searcher, scraper *Scraper, llm Completer, opts Options, log *slog.Logger) *Researcher {
	if opts.Limit <= 0 {
		opts.Limit = 3
	}
	if opts.System == "" {
		opts.System = "You are a Technical Researcher."
	}
	return &Researcher{
		searcher: searcher,
		scraper:  scraper,
		llm:      llm,
		system:   opts.System,
		model:    opts.Model,
		limit:    opts.Limit,
		log:      logger.OrDefault(log),
	}
}

func (r *Researcher) Research(ctx context.Context, query string) (Result, error) {
	r.log.Info("[Research] processing", "query", query)
	links := r.searcher.Search(ctx, query, r.limit)
	if len(links) == 0 {
		return Result{Summary: NoSources, CodeSnippets: []string{}, Sources: []string{}}, nil
	}

	pages := make([]string, len(links))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scrapeWorkers)
	for i, link := range links {
		g.Go(func() error {
			r.log.Debug("[Research] reading", "title", link.Title, "url", link.URL)
			pages[i] = r.scraper.Scrape(gctx, link.URL)
			return nil
		})
	}
	_ = g.Wait()

	var material strings.Builder
	for i, link := range links {
		if strings.HasPrefix(pages[i], "Error scraping") || len(pages[i]) <= minSourceChars {
			continue
		}
		fmt.Fprintf(&material, "\n--- Source: %s ---\n%s\n", link.URL, truncate(pages[i], maxSourceChars))
	}

	prompt := fmt.Sprintf("Objective: %s\n\nResearch Materials:\n%s\n\n"+
		"Task: Extract key technical facts, API usage patterns, and code examples relevant to the objective.\n"+
		"Ignore marketing fluff. Focus on implementation details.", query, material.String())

	var out Result
	err := r.llm.Complete(ctx, llm_client.Request{
		Role:   "researcher",
		Model:  r.model,
		System: r.system,
		User:   prompt,
		Schema: resultSchema(),
	}, &out)
	if err != nil {
		return Result{}, fmt.Errorf("synthesize research: %w", err)
	}
	return out, nil
}
