package mcptransport

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"resights/internal/registry"
	"resights/internal/registry/service"
)

func (s *Server) registerPropertyTools() {
	s.mcp.AddTool(mcp.NewTool("fetch_resight_property_table",
		mcp.WithDescription("Fetch BBR units and buildings for a property and return them as a flat table. "+
			"Use output_fields to select columns; omit it for the default set."),
		mcp.WithNumber("bfe_number", mcp.Description("BFE number of the property"), mcp.Required()),
		mcp.WithArray("output_fields",
			mcp.Description("Columns to include, in order"),
			mcp.Items(map[string]any{
				"type": "string",
				"enum": registry.CatalogNames(),
			}),
		),
	), s.handlePropertyTable)

	s.mcp.AddTool(mcp.NewTool("fetch_resight_valuations",
		mcp.WithDescription("Fetch the public valuations recorded for a property"),
		mcp.WithNumber("bfe_number", mcp.Description("BFE number of the property"), mcp.Required()),
	), s.handleValuations)

	s.mcp.AddTool(mcp.NewTool("check_resight_health",
		mcp.WithDescription("Check that the Resights API is reachable"),
	), s.handleHealth)
}

func (s *Server) handlePropertyTable(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	bfe, err := bfeArgument(args)
	if err != nil {
		return toolError(err), nil
	}
	projection := s.lenientProjection(ctx, args["output_fields"])

	table, err := s.service.Table(ctx, bfe, projection)
	if err != nil {
		return toolError(err), nil
	}
	out, err := service.RenderTable(table)
	if err != nil {
		return toolError(err), nil
	}
	return textResult(out), nil
}

// lenientProjection keeps the known names and drops the rest with a warning.
// Agents get a table even when they guess a column name wrong.
func (s *Server) lenientProjection(ctx context.Context, raw any) registry.Projection {
	items, _ := raw.([]any)
	names := make([]string, 0, len(items))
	for _, item := range items {
		if name, ok := item.(string); ok {
			names = append(names, name)
		}
	}
	projection, err := registry.ParseProjection(names)
	if err != nil {
		s.logger.WarnContext(ctx, "ignoring unknown output fields", "error", err)
	}
	return projection
}

func (s *Server) handleValuations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	bfe, err := bfeArgument(req.GetArguments())
	if err != nil {
		return toolError(err), nil
	}
	payload, err := s.service.Valuations(ctx, bfe)
	if err != nil {
		return toolError(err), nil
	}
	return textResult(string(payload)), nil
}

func (s *Server) handleHealth(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.service.Health(ctx); err != nil {
		return toolError(err), nil
	}
	return textResult(`{"status":"ok"}`), nil
}

// bfeArgument accepts the number as JSON number or numeric string.
func bfeArgument(args map[string]any) (registry.BFE, error) {
	switch v := args["bfe_number"].(type) {
	case float64:
		if v <= 0 || v != math.Trunc(v) || v >= math.MaxInt64 {
			return 0, invalidArgument(fmt.Sprintf("invalid BFE number %v: must be a positive integer", v))
		}
		return registry.BFE(v), nil
	case json.Number:
		return registry.ParseBFE(v.String())
	case string:
		return registry.ParseBFE(strings.TrimSpace(v))
	case nil:
		return 0, invalidArgument("bfe_number is required")
	default:
		return 0, invalidArgument(fmt.Sprintf("bfe_number must be a number, got %T", v))
	}
}

func invalidArgument(msg string) error {
	return &registry.Error{Kind: registry.KindInvalidRequest, Op: "tool", Message: msg}
}
