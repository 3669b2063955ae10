// Package mcp provides the MCP (Model Context Protocol) server for sift.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/siftlab/sift/internal/detect"
	"github.com/siftlab/sift/internal/knowledge"
)

// Server represents the MCP server.
type Server struct {
	store  KnowledgeStore
	server *mcp.Server
}

// KnowledgeStore defines the store surface the server queries.
type KnowledgeStore interface {
	Retrieve(patternType string) ([]knowledge.PatternRecord, error)
	FindingsByFile(file string) ([]detect.Finding, error)
	AllFindings() (map[string][]detect.Finding, error)
	Related(node string) []string
	HasDependency(a, b string) bool
	GraphSize() (nodes, edges int)
	Close() error
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server.
func NewServer(store KnowledgeStore) *Server {
	s := &Server{
		store: store,
	}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "sift",
		Version: "0.1.0",
	}, nil)

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "sift_patterns",
			Description: "List stored code patterns, most frequent first. Optionally filter by pattern type.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"type":  {Type: "string", Description: "Pattern type to filter by (e.g. class_definition)"},
					"limit": {Type: "integer", Description: "Maximum number of results"},
				},
			},
		},
		{
			Name:        "sift_findings",
			Description: "List analysis findings (design patterns, code smells, security and performance issues). Optionally filter by file.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"file": {Type: "string", Description: "File path to filter by"},
				},
			},
		},
		{
			Name:        "sift_related",
			Description: "List files directly related to a file through the dependency graph, in either direction.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"file": {Type: "string", Description: "File path to look up"},
				},
				Required: []string{"file"},
			},
		},
		{
			Name:        "sift_has_dependency",
			Description: "Check whether one file directly imports another.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"source": {Type: "string", Description: "Importing file"},
					"target": {Type: "string", Description: "Imported file or module"},
				},
				Required: []string{"source", "target"},
			},
		},
		{
			Name:        "sift_stats",
			Description: "High-level statistics about the scanned codebase.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "sift://overview",
			Name:        "Codebase Overview",
			Description: "High-level statistics about the scanned codebase",
			MimeType:    "text/plain",
		},
		{
			URI:         "sift://findings",
			Name:        "Findings Report",
			Description: "All stored analysis findings grouped by file",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "sift_patterns":
		patternType, _ := args["type"].(string)
		limit, _ := args["limit"].(float64)
		if limit == 0 {
			limit = 20
		}
		return handlePatterns(s.store, patternType, int(limit))
	case "sift_findings":
		file, _ := args["file"].(string)
		return handleFindings(s.store, file)
	case "sift_related":
		file, _ := args["file"].(string)
		return handleRelated(s.store, file)
	case "sift_has_dependency":
		source, _ := args["source"].(string)
		target, _ := args["target"].(string)
		return handleHasDependency(s.store, source, target)
	case "sift_stats":
		return handleStats(s.store)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "sift://overview":
		return handleStats(s.store)
	case "sift://findings":
		return handleFindings(s.store, "")
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "sift",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool Handlers

func handlePatterns(store KnowledgeStore, patternType string, limit int) (string, error) {
	records, err := store.Retrieve(patternType)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "No patterns stored. Run `sift scan --group` first.", nil
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d pattern(s):\n\n", len(records)))
	for i, r := range records {
		sb.WriteString(fmt.Sprintf("%d. **%s** (frequency %d)\n", i+1, r.PatternType, r.Frequency))
		if examples, ok := r.Payload["examples"].([]any); ok {
			for _, ex := range examples {
				if text, ok := ex.(string); ok {
					if len(text) > 120 {
						text = text[:120] + "..."
					}
					sb.WriteString(fmt.Sprintf("   - %s\n", strings.SplitN(text, "\n", 2)[0]))
				}
			}
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func handleFindings(store KnowledgeStore, file string) (string, error) {
	var sb strings.Builder

	if file != "" {
		findings, err := store.FindingsByFile(file)
		if err != nil {
			return "", err
		}
		if len(findings) == 0 {
			return fmt.Sprintf("No findings for `%s`.", file), nil
		}
		sb.WriteString(fmt.Sprintf("Findings for `%s` (%d):\n\n", file, len(findings)))
		for _, f := range findings {
			sb.WriteString(fmt.Sprintf("- line %d: %s/%s\n", f.Line, f.Category, f.Subtype))
		}
		return sb.String(), nil
	}

	byFile, err := store.AllFindings()
	if err != nil {
		return "", err
	}
	if len(byFile) == 0 {
		return "No findings stored. Run `sift scan` first.", nil
	}

	files := make([]string, 0, len(byFile))
	for f := range byFile {
		files = append(files, f)
	}
	sort.Strings(files)

	sb.WriteString("## Findings Report\n\n")
	for _, f := range files {
		findings := byFile[f]
		if len(findings) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("### %s (%d)\n", f, len(findings)))
		for _, finding := range findings {
			sb.WriteString(fmt.Sprintf("- line %d: %s/%s\n", finding.Line, finding.Category, finding.Subtype))
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func handleRelated(store KnowledgeStore, file string) (string, error) {
	if file == "" {
		return "No file provided", nil
	}

	related := store.Related(file)
	if len(related) == 0 {
		return fmt.Sprintf("`%s` has no recorded dependency relationships.", file), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Files related to `%s` (%d):\n\n", file, len(related)))
	for _, r := range related {
		sb.WriteString(fmt.Sprintf("- %s\n", r))
	}
	return sb.String(), nil
}

func handleHasDependency(store KnowledgeStore, source, target string) (string, error) {
	if source == "" || target == "" {
		return "Both source and target are required", nil
	}
	if store.HasDependency(source, target) {
		return fmt.Sprintf("Yes: `%s` imports `%s`.", source, target), nil
	}
	return fmt.Sprintf("No: `%s` does not directly import `%s`.", source, target), nil
}

func handleStats(store KnowledgeStore) (string, error) {
	nodes, edges := store.GraphSize()

	byFile, err := store.AllFindings()
	if err != nil {
		return "", err
	}
	total := 0
	byCategory := make(map[string]int)
	for _, findings := range byFile {
		total += len(findings)
		for _, f := range findings {
			byCategory[string(f.Category)]++
		}
	}

	var sb strings.Builder
	sb.WriteString("# Codebase Overview\n\n")
	sb.WriteString(fmt.Sprintf("**Graph nodes:** %d\n", nodes))
	sb.WriteString(fmt.Sprintf("**Dependency edges:** %d\n", edges))
	sb.WriteString(fmt.Sprintf("**Findings:** %d\n", total))
	if len(byCategory) > 0 {
		sb.WriteString("\n## Findings by Category\n\n")
		categories := make([]string, 0, len(byCategory))
		for c := range byCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)
		for _, c := range categories {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", c, byCategory[c]))
		}
	}
	return sb.String(), nil
}

// Helper functions

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
