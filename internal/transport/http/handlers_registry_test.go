package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"resights/internal/audit"
	"resights/internal/platform/middleware"
	"resights/internal/registry"
	"resights/internal/transport/http/mocks"
	"resights/pkg/requestcontext"
	"resights/pkg/testutil"
)

//go:generate mockgen -source=handlers_registry.go -destination=mocks/registry-mocks.go -package=mocks RegistryService
type RegistryHandlerSuite struct {
	suite.Suite
}

func TestRegistryHandlerSuite(t *testing.T) {
	suite.Run(t, new(RegistryHandlerSuite))
}

func (s *RegistryHandlerSuite) newRouter(t *testing.T, validator middleware.TokenValidator) (*mocks.MockRegistryService, http.Handler) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockService := mocks.NewMockRegistryService(ctrl)
	handler := NewRegistryHandler(mockService, logger)
	return mockService, NewRouter(handler, RouterConfig{
		Validator: validator,
		Gatherer:  prometheus.NewRegistry(),
		Logger:    logger,
	})
}

func (s *RegistryHandlerSuite) do(t *testing.T, router http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := testutil.DoRequest(router, testutil.NewRequest(t, method, target, body))
	return rr, testutil.JSONObject(t, rr)
}

func sampleTable() *registry.Table {
	return registry.NewNormalizer(registry.WithClock(func() time.Time {
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	})).Normalize(&registry.PropertyRecord{
		ID:        "abc-123",
		Units:     []registry.Unit{{ID: "u1"}, {ID: "u2"}},
		Buildings: []registry.Building{{ID: "b1"}},
	}, 6022110, registry.Projection{registry.FieldUnitID, registry.FieldBuildingID})
}

func (s *RegistryHandlerSuite) TestTable() {
	s.T().Run("returns rows in projection order - 200", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().
			Table(gomock.Any(), registry.BFE(6022110), registry.Projection{registry.FieldUnitID, registry.FieldBuildingID}).
			Return(sampleTable(), nil)

		rr, body := s.do(t, router, http.MethodGet, "/properties/6022110/table?fields=bbr.units.id,bbr.buildings.id", "")

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "abc-123", body["property_id"])
		assert.Equal(t, float64(6022110), body["bfe_number"])
		assert.Equal(t, []any{"bbr.units.id", "bbr.buildings.id"}, body["columns"])
		rows, ok := body["rows"].([]any)
		require.True(t, ok)
		assert.Len(t, rows, 2)
		assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
	})

	s.T().Run("repeated fields parameters are accepted", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().
			Table(gomock.Any(), registry.BFE(7), registry.Projection{registry.FieldUnitStatus, registry.FieldPropertyID}).
			Return(sampleTable(), nil)

		rr, _ := s.do(t, router, http.MethodGet, "/properties/7/table?fields=units.status&fields=propertyId", "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	s.T().Run("returns 400 for unknown fields without calling the service", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().Table(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr, body := s.do(t, router, http.MethodGet, "/properties/1/table?fields=owner.name", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_request", body["error"])
		assert.Contains(t, body["error_description"], "owner.name")
	})

	s.T().Run("returns 400 for a malformed BFE", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().Table(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		rr, _ := s.do(t, router, http.MethodGet, "/properties/abc/table", "")
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_request")
	})

	s.T().Run("identity-only table carries a message", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		empty := registry.NewNormalizer().Normalize(&registry.PropertyRecord{ID: "p"}, 5, nil)
		mockService.EXPECT().Table(gomock.Any(), registry.BFE(5), gomock.Any()).Return(empty, nil)

		rr, body := s.do(t, router, http.MethodGet, "/properties/5/table", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "No BBR units or buildings data found for BFE 5", body["message"])
	})

	s.T().Run("message names the requested bfe", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		registryBFE := registry.BFE(999)
		empty := registry.NewNormalizer().Normalize(&registry.PropertyRecord{ID: "p", BFENumber: &registryBFE}, 5, nil)
		mockService.EXPECT().Table(gomock.Any(), registry.BFE(5), gomock.Any()).Return(empty, nil)

		rr, body := s.do(t, router, http.MethodGet, "/properties/5/table", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "No BBR units or buildings data found for BFE 5", body["message"])
	})
}

func (s *RegistryHandlerSuite) TestErrorMapping() {
	cases := []struct {
		kind   registry.Kind
		status int
		code   string
	}{
		{registry.KindNotFound, http.StatusNotFound, "not_found"},
		{registry.KindUnauthorized, http.StatusBadGateway, "registry_unauthorized"},
		{registry.KindUpstream, http.StatusBadGateway, "upstream"},
		{registry.KindTransform, http.StatusBadGateway, "transform"},
		{registry.KindConfiguration, http.StatusInternalServerError, "configuration"},
		{registry.KindInvalidRequest, http.StatusBadRequest, "invalid_request"},
	}
	for _, tc := range cases {
		s.T().Run(string(tc.kind), func(t *testing.T) {
			mockService, router := s.newRouter(t, nil)
			mockService.EXPECT().Valuations(gomock.Any(), registry.BFE(1)).
				Return(nil, &registry.Error{Kind: tc.kind, Message: "boom", Status: 503})

			rr, body := s.do(t, router, http.MethodGet, "/properties/1/valuations", "")
			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, tc.code, body["error"])
			assert.Equal(t, "boom", body["error_description"])
			assert.Equal(t, float64(503), body["upstream_status"])
		})
	}

	s.T().Run("non-registry errors are internal and not echoed", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().Health(gomock.Any()).Return(errors.New("secret detail"))

		rr, body := s.do(t, router, http.MethodGet, "/health/registry", "")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "internal", body["error"])
		assert.Equal(t, "internal error", body["error_description"])
	})
}

func (s *RegistryHandlerSuite) TestValuationsPassthrough() {
	mockService, router := s.newRouter(s.T(), nil)
	mockService.EXPECT().Valuations(gomock.Any(), registry.BFE(6022110)).
		Return(json.RawMessage(`[{"year":2024}]`), nil)

	rr, _ := s.do(s.T(), router, http.MethodGet, "/properties/6022110/valuations", "")
	s.Equal(http.StatusOK, rr.Code)
	s.JSONEq(`[{"year":2024}]`, rr.Body.String())
}

func (s *RegistryHandlerSuite) TestCall() {
	s.T().Run("decodes method, path, query and body", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().Call(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req registry.CallRequest) (json.RawMessage, error) {
				assert.Equal(t, "POST", req.Method)
				assert.Equal(t, "/persons/search", req.Path)
				assert.Equal(t, url.Values{"limit": []string{"5"}}, req.Query)
				assert.NotNil(t, req.Body)
				return json.RawMessage(`{"hits":[]}`), nil
			})

		rr, _ := s.do(t, router, http.MethodPost, "/registry/call",
			`{"method":"POST","path":"/persons/search","query":{"limit":5},"body":{"name":"Jensen"}}`)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"hits":[]}`, rr.Body.String())
	})

	s.T().Run("returns 400 when request body is invalid json", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().Call(gomock.Any(), gomock.Any()).Times(0)

		rr, body := s.do(t, router, http.MethodPost, "/registry/call", "{bad-json")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "invalid_request", body["error"])
	})

	s.T().Run("returns 400 for nested query values", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().Call(gomock.Any(), gomock.Any()).Times(0)

		rr, _ := s.do(t, router, http.MethodPost, "/registry/call", `{"method":"GET","path":"x","query":{"a":{"b":1}}}`)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func (s *RegistryHandlerSuite) TestAudit() {
	s.T().Run("lists recent events", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().RecentAudit(gomock.Any(), 2).Return([]audit.Event{{
			ID:        "e1",
			Timestamp: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			Operation: audit.OperationTable,
			BFENumber: 6022110,
			Outcome:   audit.OutcomeSuccess,
			Duration:  120 * time.Millisecond,
		}}, nil)

		rr, body := s.do(t, router, http.MethodGet, "/audit?limit=2", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		events, ok := body["events"].([]any)
		require.True(t, ok)
		require.Len(t, events, 1)
		event := events[0].(map[string]any)
		assert.Equal(t, "property_table", event["operation"])
		assert.Equal(t, float64(120), event["duration_ms"])
	})

	s.T().Run("rejects a bad limit", func(t *testing.T) {
		mockService, router := s.newRouter(t, nil)
		mockService.EXPECT().RecentAudit(gomock.Any(), gomock.Any()).Times(0)

		rr, _ := s.do(t, router, http.MethodGet, "/audit?limit=0", "")
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func (s *RegistryHandlerSuite) TestAuthAndOpenRoutes() {
	validator := middleware.TokenValidatorFunc(func(token string) (string, error) {
		if token == "good" {
			return "analyst", nil
		}
		return "", errors.New("invalid")
	})

	s.T().Run("registry routes require a token", func(t *testing.T) {
		mockService, router := s.newRouter(t, validator)
		mockService.EXPECT().Health(gomock.Any()).Times(0)

		rr, body := s.do(t, router, http.MethodGet, "/health/registry", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "unauthorized", body["error"])
	})

	s.T().Run("valid token reaches the service with subject set", func(t *testing.T) {
		mockService, router := s.newRouter(t, validator)
		mockService.EXPECT().Health(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
			assert.Equal(t, "analyst", requestcontext.Subject(ctx))
			return nil
		})

		req := httptest.NewRequest(http.MethodGet, "/health/registry", nil)
		req.Header.Set("Authorization", "Bearer good")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	s.T().Run("liveness and metrics stay open", func(t *testing.T) {
		_, router := s.newRouter(t, validator)

		rr, body := s.do(t, router, http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ok", body["status"])

		rr, _ = s.do(t, router, http.MethodGet, "/metrics", "")
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
