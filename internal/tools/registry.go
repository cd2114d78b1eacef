package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"taskpilot/internal/observability"
)

// Func is the body of a tool. Arguments are opaque strings keyed by
// parameter name.
type Func func(ctx context.Context, args map[string]string) (string, error)

type Param struct {
	Name        string
	Description string
}

// Capability describes a tool at registration time.
type Capability struct {
	Name        string
	Description string
	Params      []Param
	Fn          Func
}

type entry struct {
	cap Capability
}

type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

func New() *Registry {
	return &Registry{tools: make(map[string]entry)}
}

// Register stores the capability under its own name. Registering a name
// twice silently replaces the earlier entry.
func (r *Registry) Register(c Capability) {
	if c.Description == "" {
		c.Description = "Tool " + c.Name
	}
	params := make([]Param, 0, len(c.Params))
	for _, p := range c.Params {
		if p.Name == "" || p.Name == "self" {
			continue
		}
		if p.Description == "" {
			p.Description = "Parameter " + p.Name
		}
		params = append(params, p)
	}
	c.Params = params

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[c.Name] = entry{cap: c}
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type paramSchema struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

type CatalogEntry struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]paramSchema `json:"parameters"`
	Required    []string               `json:"required"`
}

// Entries returns the catalog in name order.
func (r *Registry) Entries() []CatalogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]CatalogEntry, 0, len(r.tools))
	for _, e := range r.tools {
		ce := CatalogEntry{
			Name:        e.cap.Name,
			Description: e.cap.Description,
			Parameters:  make(map[string]paramSchema, len(e.cap.Params)),
			Required:    make([]string, 0, len(e.cap.Params)),
		}
		for _, p := range e.cap.Params {
			ce.Parameters[p.Name] = paramSchema{Type: "string", Description: p.Description}
			ce.Required = append(ce.Required, p.Name)
		}
		out = append(out, ce)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Catalog renders every tool as indented JSON for planning prompts.
func (r *Registry) Catalog() string {
	b, err := json.MarshalIndent(r.Entries(), "", "  ")
	if err != nil {
		return "[]"
	}
	return string(b)
}

// Execute runs the named tool and always returns text. Unknown tools,
// returned errors and panics all come back as "Error..." strings.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]string) (out string) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		observability.RecordToolCall(name, "unknown")
		return fmt.Sprintf("Error: Tool '%s' not found.", name)
	}
	if e.cap.Fn == nil {
		observability.RecordToolCall(name, "error")
		return fmt.Sprintf("Error: Tool '%s' has no implementation.", name)
	}

	defer func() {
		if rec := recover(); rec != nil {
			observability.RecordToolCall(name, "panic")
			out = fmt.Sprintf("Error executing tool: panic: %v", rec)
		}
	}()

	res, err := e.cap.Fn(ctx, bindArgs(e.cap.Params, args))
	if err != nil {
		observability.RecordToolCall(name, "error")
		return fmt.Sprintf("Error executing tool: %v", err)
	}
	observability.RecordToolCall(name, "ok")
	return res
}

// bindArgs passes a single supplied value positionally to one-parameter
// tools, so planners do not have to guess the parameter name.
func bindArgs(params []Param, args map[string]string) map[string]string {
	if len(params) != 1 || len(args) == 0 {
		return args
	}
	only := params[0].Name
	if v, ok := args[only]; ok {
		return map[string]string{only: v}
	}
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return map[string]string{only: args[keys[0]]}
}

// Arg returns the trimmed value of a named argument.
func Arg(args map[string]string, key string) string {
	return strings.TrimSpace(args[key])
}
