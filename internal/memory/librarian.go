package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"taskpilot/internal/logger"
)

// Librarian recalls earlier solutions and files new ones, with a markdown
// note per solution for humans.
type Librarian struct {
	store    Store
	notesDir string
	log      *slog.Logger
	now      func() time.Time
}

func NewLibrarian(store Store, notesDir string, log *slog.Logger) *Librarian {
	return &Librarian{store: store, notesDir: notesDir, log: logger.OrDefault(log), now: time.Now}
}

// Recall returns the stored document closest to query, or "" when nothing
// matches or the store fails.
func (l *Librarian) Recall(ctx context.Context, query string) string {
	r, err := l.best(ctx, query)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			l.log.Warn("[Memory] recall failed", "err", err)
		}
		return ""
	}
	return r.Document
}

func (l *Librarian) best(ctx context.Context, query string) (Record, error) {
	records, err := l.store.All(ctx)
	if err != nil {
		return Record{}, err
	}
	if len(records) == 0 {
		return Record{}, ErrNotFound
	}
	q := tokens(query)

	// newest first so ties favour recent solutions
	sort.SliceStable(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	bestIdx, bestScore := -1, 0.0
	for i, r := range records {
		if s := similarity(q, tokens(r.Document)); s > bestScore {
			bestIdx, bestScore = i, s
		}
	}
	if bestIdx < 0 {
		return Record{}, ErrNotFound
	}
	return records[bestIdx], nil
}

// Memorize stores the solution and writes its note.
func (l *Librarian) Memorize(ctx context.Context, objective, code, filename string) error {
	rec := Record{
		ID:        fmt.Sprintf("%s_%s", filename, strings.ReplaceAll(uuid.NewString(), "-", "")[:8]),
		Document:  fmt.Sprintf("Objective: %s\nCode:\n%s", objective, code),
		Metadata:  map[string]string{"filename": filename},
		CreatedAt: l.now(),
	}
	if err := l.store.Add(ctx, rec); err != nil {
		return fmt.Errorf("memorize %s: %w", filename, err)
	}
	if l.notesDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.notesDir, os.ModePerm); err != nil {
		return fmt.Errorf("create notes dir: %w", err)
	}
	note := fmt.Sprintf("# %s\n```python\n%s\n```\n", objective, code)
	if err := os.WriteFile(l.NotePath(objective), []byte(note), 0644); err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	l.log.Debug("[Memory] stored", "id", rec.ID)
	return nil
}

// NotePath is <notes>/<alphanumerics of the first 30 runes of objective>.md.
func (l *Librarian) NotePath(objective string) string {
	r := []rune(objective)
	if len(r) > 30 {
		r = r[:30]
	}
	var b strings.Builder
	for _, c := range r {
		if unicode.IsLetter(c) || unicode.IsDigit(c) {
			b.WriteRune(c)
		}
	}
	name := b.String()
	if name == "" {
		name = "skill"
	}
	return filepath.Join(l.notesDir, name+".md")
}

func (l *Librarian) Close() error { return l.store.Close() }

func tokens(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[f] = struct{}{}
	}
	return out
}

// similarity is the share of query tokens present in doc.
func similarity(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	hit := 0
	for t := range query {
		if _, ok := doc[t]; ok {
			hit++
		}
	}
	return float64(hit) / float64(len(query))
}
