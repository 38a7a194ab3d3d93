package guichet

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/quillard/formulaire/dialog"
	"github.com/quillard/formulaire/docx"
	"github.com/quillard/formulaire/kit"
)

// RegisterMCP registers the fill tools on an MCP server, so an agent can
// drive extraction and rendering without the HTTP surface.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	s.registerExtractTool(srv)
	s.registerRenderTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// --- extract ---

type extractReq struct {
	Path string `json:"path"`
}

type extractResp struct {
	Placeholders []string `json:"placeholders"`
	Prompt       string   `json:"prompt"`
	Text         string   `json:"text"`
}

func (s *Service) registerExtractTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formulaire_extract",
		Description: "List the placeholders of a .docx template and the question to ask for the first one.",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "Template file path"},
		}, []string{"path"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*extractReq)
		data, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, err
		}
		normalized, names, err := docx.Normalize(data)
		if err != nil {
			return nil, err
		}
		text, err := docx.ExtractText(normalized)
		if err != nil {
			return nil, err
		}
		return &extractResp{
			Placeholders: names,
			Prompt:       dialog.NextQuestion(dialog.NewPlaceholders(names)),
			Text:         text,
		}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r extractReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}

// --- render ---

type renderReq struct {
	Path   string            `json:"path"`
	Values map[string]string `json:"values"`
	Output string            `json:"output,omitempty"`
}

type renderResp struct {
	Output string `json:"output"`
	Size   int64  `json:"size_bytes"`
}

func (s *Service) registerRenderTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "formulaire_render",
		Description: "Fill a .docx template with the given placeholder values and write the completed document.",
		InputSchema: inputSchema(map[string]any{
			"path":   map[string]any{"type": "string", "description": "Template file path"},
			"values": map[string]any{"type": "object", "description": "Placeholder name to value"},
			"output": map[string]any{"type": "string", "description": "Output path (default: alongside the template)"},
		}, []string{"path", "values"}),
	}

	endpoint := func(ctx context.Context, req any) (any, error) {
		r := req.(*renderReq)
		data, err := os.ReadFile(r.Path)
		if err != nil {
			return nil, err
		}
		normalized, _, err := docx.Normalize(data)
		if err != nil {
			return nil, err
		}
		out, err := docx.Render(normalized, r.Values)
		if err != nil {
			return nil, err
		}

		output := r.Output
		if output == "" {
			base := strings.TrimSuffix(filepath.Base(r.Path), filepath.Ext(r.Path))
			output = filepath.Join(filepath.Dir(r.Path), fmt.Sprintf("%s_filled.docx", base))
		}
		if err := os.WriteFile(output, out, 0o644); err != nil {
			return nil, err
		}
		return &renderResp{Output: output, Size: int64(len(out))}, nil
	}

	decode := func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		var r renderReq
		if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
			return nil, err
		}
		return &kit.MCPDecodeResult{Request: &r}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decode)
}
