package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(key string) Func {
	return func(_ context.Context, args map[string]string) (string, error) {
		return "got:" + args[key], nil
	}
}

func TestExecuteSingleParamIsPositional(t *testing.T) {
	r := New()
	r.Register(Capability{Name: "web_search", Params: []Param{{Name: "query"}}, Fn: echo("query")})

	testCases := []struct {
		name string
		args map[string]string
		want string
	}{
		{name: "Exact parameter name", args: map[string]string{"query": "golang"}, want: "got:golang"},
		{name: "Arbitrary key", args: map[string]string{"argument": "golang"}, want: "got:golang"},
		{name: "Several keys picks the matching one", args: map[string]string{"a": "x", "query": "y"}, want: "got:y"},
		{name: "Several unknown keys is deterministic", args: map[string]string{"b": "2", "a": "1"}, want: "got:1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, r.Execute(context.Background(), "web_search", tc.args))
		})
	}
}

func TestExecuteMultiParamIsByName(t *testing.T) {
	r := New()
	r.Register(Capability{
		Name:   "copy",
		Params: []Param{{Name: "src"}, {Name: "dst"}},
		Fn: func(_ context.Context, args map[string]string) (string, error) {
			return args["src"] + "->" + args["dst"], nil
		},
	})

	out := r.Execute(context.Background(), "copy", map[string]string{"dst": "b", "src": "a"})
	assert.Equal(t, "a->b", out)
}

func TestExecuteNeverRaises(t *testing.T) {
	r := New()
	r.Register(Capability{
		Name:   "boom",
		Params: []Param{{Name: "x"}},
		Fn: func(context.Context, map[string]string) (string, error) {
			panic("kaboom")
		},
	})
	r.Register(Capability{
		Name:   "fails",
		Params: []Param{{Name: "x"}},
		Fn: func(context.Context, map[string]string) (string, error) {
			return "", errors.New("bad input")
		},
	})

	testCases := []struct {
		name     string
		tool     string
		contains string
	}{
		{name: "Unknown tool", tool: "missing", contains: "Error: Tool 'missing' not found."},
		{name: "Panicking tool", tool: "boom", contains: "Error executing tool: panic: kaboom"},
		{name: "Erroring tool", tool: "fails", contains: "Error executing tool: bad input"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out string
			require.NotPanics(t, func() {
				out = r.Execute(context.Background(), tc.tool, map[string]string{"argument": "v"})
			})
			assert.Contains(t, out, tc.contains)
		})
	}
}

func TestRegisterOverwritesAndDropsSelf(t *testing.T) {
	r := New()
	r.Register(Capability{Name: "t", Description: "first", Fn: echo("x")})
	r.Register(Capability{Name: "t", Description: "second", Params: []Param{{Name: "self"}, {Name: "x"}}, Fn: echo("x")})

	entries := r.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Description)
	assert.Equal(t, []string{"x"}, entries[0].Required)
	assert.Equal(t, "Parameter x", entries[0].Parameters["x"].Description)
}

func TestCatalogIsStableJSON(t *testing.T) {
	r := New()
	r.Register(Capability{Name: "zeta", Description: "z", Params: []Param{{Name: "q"}}, Fn: echo("q")})
	r.Register(Capability{Name: "alpha", Description: "a", Fn: echo("q")})

	first := r.Catalog()
	assert.Equal(t, first, r.Catalog())
	assert.True(t, strings.Index(first, "alpha") < strings.Index(first, "zeta"))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(first), &decoded))
	require.Len(t, decoded, 2)
	params := decoded[1]["parameters"].(map[string]any)
	assert.Equal(t, "string", params["q"].(map[string]any)["type"])
	assert.Equal(t, []string{"alpha", "zeta"}, r.Names())
}
