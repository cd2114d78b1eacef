// Package builtin registers the tools every mission starts with.
package builtin

import (
	"context"
	"fmt"
	"strings"

	"taskpilot/internal/research"
	"taskpilot/internal/sandbox"
	"taskpilot/internal/tools"
)

const (
	SearchFailed   = "Search failed."
	CommandBlocked = "Command blocked."
	FileNotFound   = "File not found."
)

var DefaultForbidden = []string{"docker", "sudo", "rm -rf /"}

type Searcher interface {
	Searx(ctx context.Context, query string, limit int, categories string) ([]research.Link, error)
}

type Shell interface {
	RunShell(ctx context.Context, command string) sandbox.Result
}

type Files interface {
	ReadFile(name string) (string, error)
}

type Researcher interface {
	Research(ctx context.Context, query string) (research.Result, error)
}

// Deps are the collaborators behind the builtin tools. Nil members leave
// their tools unregistered.
type Deps struct {
	Search      Searcher
	SearchLimit int
	Shell       Shell
	Forbidden   []string
	Files       Files
	Research    Researcher
}

func Register(reg *tools.Registry, d Deps) {
	if d.SearchLimit <= 0 {
		d.SearchLimit = 3
	}
	if d.Forbidden == nil {
		d.Forbidden = DefaultForbidden
	}

	if d.Search != nil {
		reg.Register(tools.Capability{
			Name:        "web_search",
			Description: "Search internet. Input: query",
			Params:      []tools.Param{{Name: "query", Description: "search terms"}},
			Fn:          webSearch(d.Search, d.SearchLimit),
		})
	}
	if d.Shell != nil {
		reg.Register(tools.Capability{
			Name:        "run_shell",
			Description: "Run shell command. Input: command",
			Params:      []tools.Param{{Name: "command", Description: "shell command run inside the sandbox"}},
			Fn:          runShell(d.Shell, d.Forbidden),
		})
		reg.Register(tools.Capability{
			Name:        "list_files",
			Description: "List files. Input: (ignored)",
			Params:      []tools.Param{{Name: "dummy", Description: "ignored"}},
			Fn: func(ctx context.Context, _ map[string]string) (string, error) {
				return shell(ctx, d.Shell, d.Forbidden, "ls -la"), nil
			},
		})
	}
	if d.Files != nil {
		reg.Register(tools.Capability{
			Name:        "read_file",
			Description: "Read a file from the workspace. Input: filename",
			Params:      []tools.Param{{Name: "filename", Description: "name of a file in the workspace"}},
			Fn: func(_ context.Context, args map[string]string) (string, error) {
				content, err := d.Files.ReadFile(tools.Arg(args, "filename"))
				if err != nil {
					return FileNotFound, nil
				}
				return content, nil
			},
		})
	}
	if d.Research != nil {
		reg.Register(tools.Capability{
			Name:        "research",
			Description: "Research a technical topic online and summarize findings. Input: query",
			Params:      []tools.Param{{Name: "query", Description: "topic to research"}},
			Fn: func(ctx context.Context, args map[string]string) (string, error) {
				res, err := d.Research.Research(ctx, tools.Arg(args, "query"))
				if err != nil {
					return "", err
				}
				return res.String(), nil
			},
		})
	}
}

func webSearch(s Searcher, limit int) tools.Func {
	return func(ctx context.Context, args map[string]string) (string, error) {
		links, err := s.Searx(ctx, tools.Arg(args, "query"), limit, "")
		if err != nil || len(links) == 0 {
			return SearchFailed, nil
		}
		lines := make([]string, 0, len(links))
		for _, l := range links {
			lines = append(lines, fmt.Sprintf("- %s: %s", l.Title, l.URL))
		}
		return strings.Join(lines, "\n"), nil
	}
}

func runShell(sh Shell, forbidden []string) tools.Func {
	return func(ctx context.Context, args map[string]string) (string, error) {
		return shell(ctx, sh, forbidden, tools.Arg(args, "command")), nil
	}
}

func shell(ctx context.Context, sh Shell, forbidden []string, command string) string {
	if Blocked(command, forbidden) {
		return CommandBlocked
	}
	return sh.RunShell(ctx, command).Raw()
}

// Blocked reports whether command contains any forbidden fragment.
func Blocked(command string, forbidden []string) bool {
	for _, f := range forbidden {
		if f != "" && strings.Contains(command, f) {
			return true
		}
	}
	return false
}
