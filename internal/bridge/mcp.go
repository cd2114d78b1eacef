package bridge

import (
	"context"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"taskpilot/internal/tools"
)

const clientName = "taskpilot"

type mcpSession struct {
	c *client.Client
}

// DialMCP launches srv as a stdio MCP server and completes the initialize
// handshake.
func DialMCP(version string) Dialer {
	return func(ctx context.Context, srv Server) (Session, error) {
		c, err := client.NewStdioMCPClient(srv.Command, srv.Env, srv.Args...)
		if err != nil {
			return nil, fmt.Errorf("start %s: %w", srv.Command, err)
		}

		req := mcp.InitializeRequest{}
		req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
		req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: version}
		if _, err := c.Initialize(ctx, req); err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("initialize: %w", err)
		}
		return &mcpSession{c: c}, nil
	}
}

func (s *mcpSession) ListTools(ctx context.Context) ([]ToolInfo, error) {
	res, err := s.c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, err
	}
	out := make([]ToolInfo, 0, len(res.Tools))
	for _, t := range res.Tools {
		out = append(out, ToolInfo{
			Name:        t.Name,
			Description: t.Description,
			Params:      schemaParams(t.InputSchema.Properties),
		})
	}
	return out, nil
}

func schemaParams(props map[string]any) []tools.Param {
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)

	params := make([]tools.Param, 0, len(names))
	for _, n := range names {
		p := tools.Param{Name: n}
		if m, ok := props[n].(map[string]any); ok {
			if d, ok := m["description"].(string); ok {
				p.Description = d
			}
		}
		params = append(params, p)
	}
	return params
}

func (s *mcpSession) CallTool(ctx context.Context, name string, args map[string]any) ([]Item, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	res, err := s.c.CallTool(ctx, req)
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(res.Content))
	for _, c := range res.Content {
		if tc, ok := mcp.AsTextContent(c); ok {
			items = append(items, Item{Type: "text", Text: tc.Text})
			continue
		}
		items = append(items, Item{Type: "blob", Value: c})
	}
	if res.IsError {
		return items, fmt.Errorf("tool %s reported an error: %s", name, Flatten(items))
	}
	return items, nil
}

func (s *mcpSession) Close() error { return s.c.Close() }
