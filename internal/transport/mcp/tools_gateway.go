package mcptransport

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"resights/internal/registry"
)

func (s *Server) registerGatewayTools() {
	s.mcp.AddTool(mcp.NewTool("call_resight_api",
		mcp.WithDescription("Call any Resights API endpoint. The path is relative to the versioned API base, "+
			"for example /properties or company/12345678."),
		mcp.WithString("endpoint_path", mcp.Description("Endpoint path relative to the API base"), mcp.Required()),
		mcp.WithString("method",
			mcp.Description("HTTP method (default GET)"),
			mcp.Enum("GET", "POST", "PUT", "DELETE", "PATCH"),
		),
		mcp.WithObject("query_params", mcp.Description("Query string parameters")),
		mcp.WithObject("json_payload", mcp.Description("JSON request body")),
	), s.handleCall)
}

func (s *Server) handleCall(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path := strings.TrimSpace(req.GetString("endpoint_path", ""))
	if path == "" {
		return toolError(invalidArgument("endpoint_path is required")), nil
	}
	method := req.GetString("method", "GET")

	var rawQuery map[string]any
	if v, ok := args["query_params"]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return toolError(invalidArgument(fmt.Sprintf("query_params must be an object, got %T", v))), nil
		}
		rawQuery = m
	}
	query, err := registry.QueryFromMap(rawQuery)
	if err != nil {
		return toolError(err), nil
	}

	payload, err := s.service.Call(ctx, registry.CallRequest{
		Method: method,
		Path:   path,
		Query:  query,
		Body:   args["json_payload"],
	})
	if err != nil {
		return toolError(err), nil
	}
	return textResult(string(payload)), nil
}
