package service_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"resights/internal/audit"
	"resights/internal/audit/store/memory"
	"resights/internal/registry"
	"resights/internal/registry/metrics"
	"resights/internal/registry/service"
	"resights/pkg/requestcontext"
)

// =============================================================================
// Service Test Suite
// =============================================================================
// Justification for unit tests: the facade owns the audit, metric and output
// rendering side effects that the transports rely on.

type ServiceSuite struct {
	suite.Suite
	mux      *http.ServeMux
	server   *httptest.Server
	audit    *audit.Publisher
	metrics  *metrics.Metrics
	service  *service.Service
	clockNow time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.mux = http.NewServeMux()
	s.server = httptest.NewServer(s.mux)
	s.T().Cleanup(s.server.Close)
	s.clockNow = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	auth, err := registry.NewAuthContext(s.server.URL+"/api/v2", "tok")
	s.Require().NoError(err)
	client, err := registry.NewClient(auth)
	s.Require().NoError(err)

	s.audit, err = audit.NewPublisher(memory.NewInMemoryStore(10))
	s.Require().NoError(err)
	s.metrics = metrics.New(prometheus.NewRegistry())

	s.service, err = service.New(client,
		service.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		service.WithMetrics(s.metrics),
		service.WithAuditPublisher(s.audit),
		service.WithClock(func() time.Time { return s.clockNow }),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) respond(pattern string, status int, body string) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
}

func (s *ServiceSuite) TestNew() {
	_, err := service.New(nil)
	s.Error(err)
}

func (s *ServiceSuite) TestTable() {
	s.respond("GET /api/v2/properties", http.StatusOK, `{"data":[{"id":"abc-123","bbr":{
		"units":[{"id":"u1"},{"id":"u2"}],
		"buildings":[{"id":"b1"}]}}]}`)

	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	table, err := s.service.Table(ctx, 6022110, registry.Projection{registry.FieldUnitID, registry.FieldBFENumber})
	s.Require().NoError(err)
	s.Len(table.Rows, 2)

	out, err := service.RenderTable(table)
	s.Require().NoError(err)
	s.JSONEq(`[{"bbr.units.id":"u1","bfe_number":6022110},{"bbr.units.id":"u2","bfe_number":6022110}]`, out)

	events, err := s.service.RecentAudit(context.Background(), 10)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("req-1", events[0].RequestID)
	s.Equal(audit.OperationTable, events[0].Operation)
	s.Equal(int64(6022110), events[0].BFENumber)
	s.Equal(audit.OutcomeSuccess, events[0].Outcome)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.OperationOutcome.WithLabelValues("property_table", "success")))
}

func (s *ServiceSuite) TestTableWithoutDetail() {
	s.respond("GET /api/v2/properties", http.StatusOK, `{"data":[{"id":"abc-123","bbr":{}}]}`)

	table, err := s.service.Table(context.Background(), 6022110, nil)
	s.Require().NoError(err)
	out, err := service.RenderTable(table)
	s.Require().NoError(err)
	s.Equal("No BBR units or buildings data found for BFE 6022110. Raw property ID: abc-123", out)
}

func (s *ServiceSuite) TestTableWithoutDetailNamesRequestedBFE() {
	s.respond("GET /api/v2/properties", http.StatusOK, `{"data":[{"id":"abc-123","bfe_number":999,"bbr":{}}]}`)

	table, err := s.service.Table(context.Background(), 6022110, nil)
	s.Require().NoError(err)
	s.Equal(registry.BFE(999), table.BFENumber)
	out, err := service.RenderTable(table)
	s.Require().NoError(err)
	s.Equal("No BBR units or buildings data found for BFE 6022110. Raw property ID: abc-123", out)
}

func (s *ServiceSuite) TestFailureIsAudited() {
	s.respond("GET /api/v2/properties", http.StatusForbidden, `denied`)

	_, err := s.service.Table(context.Background(), 6022110, nil)
	s.ErrorIs(err, registry.ErrUnauthorized)

	events, _ := s.service.RecentAudit(context.Background(), 10)
	s.Require().Len(events, 1)
	s.Equal("unauthorized", events[0].Outcome)
	s.Equal(http.StatusForbidden, events[0].Status)
}

func (s *ServiceSuite) TestCallAndHealth() {
	s.respond("POST /api/v2/persons/search", http.StatusOK, `{"hits":[]}`)
	s.respond("GET /health", http.StatusOK, `ok`)

	out, err := s.service.Call(context.Background(), registry.CallRequest{Method: "POST", Path: "/persons/search", Body: map[string]string{"q": "x"}})
	s.Require().NoError(err)
	s.JSONEq(`{"hits":[]}`, string(out))
	s.NoError(s.service.Health(context.Background()))

	events, _ := s.service.RecentAudit(context.Background(), 10)
	s.Require().Len(events, 2)
	s.Equal(audit.OperationHealth, events[0].Operation)
	s.Equal("POST /persons/search", events[1].Target)
}

func (s *ServiceSuite) TestValuations() {
	s.respond("GET /api/v2/properties", http.StatusOK, `{"items":[{"id":"p-9"}]}`)
	s.respond("GET /api/v2/properties/p-9/valuations", http.StatusOK, `{"valuations":[]}`)

	out, err := s.service.Valuations(context.Background(), 10)
	s.Require().NoError(err)
	s.JSONEq(`{"valuations":[]}`, string(out))
}

func (s *ServiceSuite) TestRecentAuditWithoutLog() {
	auth, err := registry.NewAuthContext(s.server.URL, "tok")
	s.Require().NoError(err)
	client, err := registry.NewClient(auth)
	s.Require().NoError(err)
	svc, err := service.New(client)
	s.Require().NoError(err)

	events, err := svc.RecentAudit(context.Background(), 5)
	s.NoError(err)
	s.Empty(events)
}

func (s *ServiceSuite) TestRenderNilTable() {
	_, err := service.RenderTable(nil)
	s.Error(err)
}
