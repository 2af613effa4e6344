package server

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skitzo2000/MD-easy/notify"
)

// RegisterMCP adds the document tools to an MCP server. Agents use
// docs_refresh to notify connected viewers after editing, and docs_list /
// docs_read to inspect the collection through the same confined library the
// HTTP surface serves. The transport is local stdio, so no API key applies.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "docs_refresh",
		Description: "Notify connected viewers that documents changed, optionally directing them to a file and heading.",
	}, s.mcpRefresh)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "docs_list",
		Description: "List all markdown documents under the serving root.",
	}, s.mcpList)

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "docs_read",
		Description: "Read one markdown document, rendered to HTML with rewritten links.",
	}, s.mcpRead)
}

type refreshInput struct {
	Reason    string `json:"reason,omitempty" jsonschema:"why the refresh is being published"`
	Path      string `json:"path,omitempty" jsonschema:"document to direct viewers to, relative to the serving root"`
	Fragment  string `json:"fragment,omitempty" jsonschema:"heading slug to scroll to in the target document"`
	Highlight *bool  `json:"highlight,omitempty" jsonschema:"flash the target section once visible (default true)"`
}

type refreshOutput struct {
	Version uint64 `json:"version"`
}

func (s *Service) mcpRefresh(_ context.Context, _ *mcp.CallToolRequest, in refreshInput) (*mcp.CallToolResult, refreshOutput, error) {
	var nav *notify.Navigation
	if in.Path != "" {
		nav = &notify.Navigation{
			Path:      in.Path,
			Fragment:  in.Fragment,
			Highlight: in.Highlight == nil || *in.Highlight,
		}
	}
	version := s.hub.Notify(in.Reason, nav)
	return nil, refreshOutput{Version: version}, nil
}

type listInput struct{}

type listOutput struct {
	Files   []string `json:"files"`
	Version uint64   `json:"version"`
}

func (s *Service) mcpList(_ context.Context, _ *mcp.CallToolRequest, _ listInput) (*mcp.CallToolResult, listOutput, error) {
	files, err := s.lib.List()
	if err != nil {
		return nil, listOutput{}, err
	}
	if files == nil {
		files = []string{}
	}
	version, _ := s.hub.Current()
	return nil, listOutput{Files: files, Version: version}, nil
}

type readInput struct {
	Path string `json:"path" jsonschema:"document path relative to the serving root"`
}

type readOutput struct {
	Path  string `json:"path"`
	Title string `json:"title"`
	HTML  string `json:"html"`
	Raw   string `json:"raw"`
}

func (s *Service) mcpRead(_ context.Context, _ *mcp.CallToolRequest, in readInput) (*mcp.CallToolResult, readOutput, error) {
	doc, err := s.lib.Get(in.Path)
	if err != nil {
		return nil, readOutput{}, err
	}
	return nil, readOutput{Path: doc.Path, Title: doc.Title, HTML: doc.HTML, Raw: doc.Raw}, nil
}
