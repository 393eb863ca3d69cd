package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"resights/internal/registry"
	"resights/internal/registry/service"
)

// runOneShot builds the app with logs on stderr, runs fn and closes the app.
func runOneShot(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app, out io.Writer) error) error {
	a, err := newApp(cmd.Context(), *flags, appOptions{logWriter: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())
	return fn(cmd.Context(), a, cmd.OutOrStdout())
}

func newTableCmd(flags *globalFlags) *cobra.Command {
	var fields []string
	cmd := &cobra.Command{
		Use:   "table <bfe>",
		Short: "Print the flattened unit and building table for a property",
		Example: `  resights table 6022110
  resights table 6022110 --fields bbr.units.id,units.status`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bfe, err := registry.ParseBFE(args[0])
			if err != nil {
				return err
			}
			projection, err := registry.ParseProjection(fields)
			if err != nil {
				return err
			}
			return runOneShot(cmd, flags, func(ctx context.Context, a *app, out io.Writer) error {
				table, err := a.service.Table(ctx, bfe, projection)
				if err != nil {
					return err
				}
				rendered, err := service.RenderTable(table)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, rendered)
				return err
			})
		},
	}
	cmd.Flags().StringSliceVar(&fields, "fields", nil,
		"output columns in order (default: all). Available: "+strings.Join(registry.CatalogNames(), ", "))
	return cmd
}

func newValuationsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "valuations <bfe>",
		Short: "Print the valuation payload for a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bfe, err := registry.ParseBFE(args[0])
			if err != nil {
				return err
			}
			return runOneShot(cmd, flags, func(ctx context.Context, a *app, out io.Writer) error {
				payload, err := a.service.Valuations(ctx, bfe)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(payload))
				return err
			})
		},
	}
}

func newCallCmd(flags *globalFlags) *cobra.Command {
	var (
		queryPairs []string
		body       string
	)
	cmd := &cobra.Command{
		Use:   "call <method> <path>",
		Short: "Call any registry endpoint relative to the API base",
		Example: `  resights call GET company/12345678 --query expand=owners
  resights call POST persons/search --body '{"name":"Jensen"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			query, err := parseQueryPairs(queryPairs)
			if err != nil {
				return err
			}
			payload, err := parseBody(body)
			if err != nil {
				return err
			}
			req := registry.CallRequest{Method: args[0], Path: args[1], Query: query, Body: payload}
			return runOneShot(cmd, flags, func(ctx context.Context, a *app, out io.Writer) error {
				resp, err := a.service.Call(ctx, req)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(resp))
				return err
			})
		},
	}
	cmd.Flags().StringArrayVar(&queryPairs, "query", nil, "query parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&body, "body", "", "JSON request body")
	return cmd
}

func newHealthCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the registry is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOneShot(cmd, flags, func(ctx context.Context, a *app, out io.Writer) error {
				if err := a.service.Health(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(out, `{"status":"ok"}`)
				return err
			})
		},
	}
}

func parseQueryPairs(pairs []string) (url.Values, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	values := url.Values{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, &registry.Error{
				Kind:    registry.KindInvalidRequest,
				Op:      "call",
				Message: fmt.Sprintf("invalid --query %q: want key=value", pair),
			}
		}
		values.Add(key, value)
	}
	return values, nil
}

func parseBody(raw string) (any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &registry.Error{
			Kind:    registry.KindInvalidRequest,
			Op:      "call",
			Message: "invalid --body: not valid JSON",
			Err:     err,
		}
	}
	return v, nil
}
