package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"resights/internal/audit"
	"resights/internal/registry"
	"resights/internal/registry/metrics"
	"resights/pkg/requestcontext"
)

// AuditLog records operation outcomes.
type AuditLog interface {
	Emit(ctx context.Context, event audit.Event) error
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Service composes the registry components behind the operations exposed by
// the HTTP API, the MCP tools and the CLI.
type Service struct {
	client     *registry.Client
	fetcher    *registry.Fetcher
	normalizer *registry.Normalizer
	valuations *registry.ValuationFetcher
	gateway    *registry.Gateway

	logger  *slog.Logger
	metrics *metrics.Metrics
	audit   AuditLog
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditPublisher enables audit events for every operation.
func WithAuditPublisher(log AuditLog) Option {
	return func(s *Service) {
		s.audit = log
	}
}

// WithClock sets the clock used for row timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds the service on a shared registry client.
func New(client *registry.Client, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, errors.New("registry client is required")
	}
	s := &Service{
		client: client,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	resolver, err := registry.NewResolver(client)
	if err != nil {
		return nil, err
	}
	if s.fetcher, err = registry.NewFetcher(resolver); err != nil {
		return nil, err
	}
	if s.valuations, err = registry.NewValuationFetcher(resolver); err != nil {
		return nil, err
	}
	if s.gateway, err = registry.NewGateway(client); err != nil {
		return nil, err
	}
	s.normalizer = registry.NewNormalizer(
		registry.WithClock(s.now),
		registry.WithNormalizerLogger(s.logger),
	)
	return s, nil
}

// Table fetches the property record for bfe and flattens it under projection.
func (s *Service) Table(ctx context.Context, bfe registry.BFE, projection registry.Projection) (*registry.Table, error) {
	start := s.now()
	record, err := s.fetcher.Fetch(ctx, bfe)
	if err != nil {
		s.finish(ctx, audit.Event{Operation: audit.OperationTable, BFENumber: int64(bfe)}, start, err)
		return nil, err
	}
	table := s.normalizer.Normalize(record, bfe, projection)
	s.metrics.ObserveRows(len(table.Rows))
	s.finish(ctx, audit.Event{Operation: audit.OperationTable, BFENumber: int64(bfe)}, start, nil,
		"property_id", table.PropertyID,
		"rows", len(table.Rows),
	)
	return table, nil
}

// Valuations returns the registry valuation payload for bfe.
func (s *Service) Valuations(ctx context.Context, bfe registry.BFE) (json.RawMessage, error) {
	start := s.now()
	payload, err := s.valuations.FetchValuations(ctx, bfe)
	s.finish(ctx, audit.Event{Operation: audit.OperationValuations, BFENumber: int64(bfe)}, start, err)
	return payload, err
}

// Call performs a passthrough request.
func (s *Service) Call(ctx context.Context, req registry.CallRequest) (json.RawMessage, error) {
	start := s.now()
	payload, err := s.gateway.Call(ctx, req)
	s.finish(ctx, audit.Event{Operation: audit.OperationCall, Target: req.Method + " " + req.Path}, start, err)
	return payload, err
}

// Health probes the registry.
func (s *Service) Health(ctx context.Context) error {
	start := s.now()
	err := s.client.Health(ctx)
	s.finish(ctx, audit.Event{Operation: audit.OperationHealth}, start, err)
	return err
}

// RecentAudit returns the latest audit events, newest first. Without an
// audit log it returns nothing.
func (s *Service) RecentAudit(ctx context.Context, limit int) ([]audit.Event, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.Recent(ctx, limit)
}

// finish logs the outcome, counts it and emits the audit event. Audit
// failures are logged and never fail the operation.
func (s *Service) finish(ctx context.Context, event audit.Event, start time.Time, err error, attrs ...any) {
	event.RequestID = requestcontext.RequestID(ctx)
	event.Duration = s.now().Sub(start)
	event.Outcome = audit.OutcomeSuccess
	if err != nil {
		event.Outcome = string(registry.KindOf(err))
		event.Status = registry.StatusOf(err)
	}
	s.metrics.IncrementOutcome(string(event.Operation), event.Outcome)

	args := []any{
		"request_id", event.RequestID,
		"operation", string(event.Operation),
		"duration_ms", event.Duration.Milliseconds(),
	}
	if event.BFENumber != 0 {
		args = append(args, "bfe_number", event.BFENumber)
	}
	if event.Target != "" {
		args = append(args, "target", event.Target)
	}
	args = append(args, attrs...)
	if err != nil {
		args = append(args, "kind", event.Outcome, "error", err)
		if event.Status != 0 {
			args = append(args, "upstream_status", event.Status)
		}
		s.logger.WarnContext(ctx, "registry operation failed", args...)
	} else {
		s.logger.InfoContext(ctx, "registry operation completed", args...)
	}

	if s.audit == nil {
		return
	}
	if auditErr := s.audit.Emit(ctx, event); auditErr != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"request_id", event.RequestID,
			"operation", string(event.Operation),
			"error", auditErr,
		)
	}
}

// RenderTable produces the tool output for a table: the JSON row array, or
// an explanatory sentence when the property has no unit or building data.
func RenderTable(table *registry.Table) (string, error) {
	if table == nil {
		return "", errors.New("nil table")
	}
	if !table.HasDetail {
		return fmt.Sprintf("No BBR units or buildings data found for BFE %s. Raw property ID: %s",
			table.RequestedBFE, table.PropertyID), nil
	}
	out, err := json.Marshal(table)
	if err != nil {
		return "", fmt.Errorf("render table: %w", err)
	}
	return string(out), nil
}
