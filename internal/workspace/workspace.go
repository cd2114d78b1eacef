package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Artifact is one generated source file destined for the sandbox.
type Artifact struct {
	Filename     string   `json:"filename"`
	Code         string   `json:"code"`
	Dependencies []string `json:"dependencies"`
}

// ArtifactSchema is the JSON schema handed to the completion call for code.
func ArtifactSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"filename":     map[string]any{"type": "string"},
			"code":         map[string]any{"type": "string"},
			"dependencies": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
		},
		"required": []string{"filename", "code"},
	}
}

var (
	openFenceRe  = regexp.MustCompile("(?m)^```[a-zA-Z0-9_+-]*\\n?")
	closeFenceRe = regexp.MustCompile("\\n?```\\s*$")
)

// Dir is the folder shared between code generation and the sandbox.
type Dir struct {
	root string
}

func New(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, os.ModePerm); err != nil {
		return nil, fmt.Errorf("could not create workspace folder: %w", err)
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) Root() string { return d.root }

func (d *Dir) Path(name string) string { return filepath.Join(d.root, name) }

// StripFences removes markdown code fences around generated source.
func StripFences(text string) string {
	clean := openFenceRe.ReplaceAllString(text, "")
	clean = closeFenceRe.ReplaceAllString(clean, "")
	return strings.TrimSpace(clean)
}

// SanitizeFilename returns a name that is safe to create directly inside
// the workspace. Empty names and names with path separators get a
// random gen_XXXX.py name; names that would land on an existing directory
// get script_XXXX.py. Generated names never collide with existing entries.
func (d *Dir) SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return d.freshName("gen_")
	}
	if info, err := os.Stat(d.Path(name)); err == nil && info.IsDir() {
		return d.freshName("script_")
	}
	return name
}

func (d *Dir) freshName(prefix string) string {
	for {
		candidate := prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:4] + ".py"
		if _, err := os.Lstat(d.Path(candidate)); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// WriteArtifact cleans and stores the artifact, updating its filename and
// code in place.
func (d *Dir) WriteArtifact(a *Artifact) error {
	a.Code = StripFences(a.Code)
	a.Filename = d.SanitizeFilename(a.Filename)

	if err := os.WriteFile(d.Path(a.Filename), []byte(a.Code), 0644); err != nil {
		return fmt.Errorf("could not write artifact %s: %w", a.Filename, err)
	}
	return nil
}

func (d *Dir) ReadFile(name string) (string, error) {
	if strings.ContainsAny(name, `/\`) || strings.TrimSpace(name) == "" || name == ".." {
		return "", fmt.Errorf("invalid workspace file name %q", name)
	}
	b, err := os.ReadFile(d.Path(name))
	if err != nil {
		return "", fmt.Errorf("could not read file: %w", err)
	}
	return string(b), nil
}

// List returns the workspace entries, directories suffixed with "/".
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("could not list workspace: %w", err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() {
			n += "/"
		}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}
