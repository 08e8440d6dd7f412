package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"pgfnsync/internal/platform/config"
	"pgfnsync/internal/upstream"
	dErrors "pgfnsync/pkg/domain-errors"
)

const successBody = `{
	"success": true,
	"cnpj_consultado": "44.718.903/0001-88",
	"dados_receita": {
		"total_divida_ativa": "R$1.234,56",
		"execucao_fiscal_ativa": "SIM",
		"cpf_socio_responde": "NÃO",
		"transacao_impugnacao": "NÃO",
		"parcelamentos_5_anos": "3",
		"parcelamentos_ativos": "1",
		"total_parcelado": "R$10.000,00",
		"total_saldo_devedor": "R$1.234,56",
		"possui_transacao_beneficio": "NÃO"
	},
	"empresa": {"nome": "ACME LTDA", "municipio": "SAO PAULO", "uf": "SP"},
	"execution_time_ms": 12,
	"timestamp": "2026-10-14T12:00:00Z"
}`

type ClientSuite struct {
	suite.Suite
	calls  atomic.Int32
	waits  []time.Duration
	reply  func(w http.ResponseWriter, r *http.Request, call int32)
	server *httptest.Server
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.calls.Store(0)
	s.waits = nil
	s.reply = func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write([]byte(successBody))
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		s.reply(w, r, s.calls.Add(1))
	}))
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) newClient(mutate ...func(*config.RegistryConfig)) *Client {
	cfg := config.DefaultConfig().Registry
	cfg.BaseURL = s.server.URL
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg, WithSleep(func(_ context.Context, d time.Duration) error {
		s.waits = append(s.waits, d)
		return nil
	}))
	s.Require().NoError(err)
	return c
}

// =============================================================================
// Lookup
// =============================================================================

func (s *ClientSuite) TestLookupParsesRecordAndEntityName() {
	var gotPath, gotAgent string
	s.reply = func(w http.ResponseWriter, r *http.Request, _ int32) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(successBody))
	}

	result, err := s.newClient().Lookup(context.Background(), "44.718.903/0001-88")
	s.Require().NoError(err)

	s.Equal("/api/cnpj/44718903000188", gotPath, "taxpayer id should be cleaned to digits")
	s.Equal("PGFN-Automation/1.0", gotAgent)
	s.True(result.HasRecord())
	s.Equal("44718903000188", result.TaxpayerID)
	s.Equal("ACME LTDA", result.EntityName)
	s.Equal("R$1.234,56", result.Record.TotalActiveDebt)
	s.Equal("3", result.Record.InstallmentsLast5Y)
}

func (s *ClientSuite) TestLookupWithoutPayloadHasNoRecord() {
	s.reply = func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write([]byte(`{"success": true, "cnpj_consultado": "1"}`))
	}

	result, err := s.newClient().Lookup(context.Background(), "11222333000181")
	s.Require().NoError(err)
	s.False(result.HasRecord())
}

func (s *ClientSuite) TestLookupRejectsEmptyTaxpayerID() {
	_, err := s.newClient().Lookup(context.Background(), "--")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Zero(s.calls.Load())
}

// =============================================================================
// Retry policy
// =============================================================================

func (s *ClientSuite) TestRetriesTransientFailuresWithLinearBackoff() {
	s.reply = func(w http.ResponseWriter, _ *http.Request, call int32) {
		if call < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(successBody))
	}

	result, err := s.newClient().Lookup(context.Background(), "44718903000188")
	s.Require().NoError(err)
	s.True(result.HasRecord())
	s.Equal(int32(3), s.calls.Load())
	s.Equal([]time.Duration{time.Second, 2 * time.Second}, s.waits)
}

func (s *ClientSuite) TestSuccessFalseIsRetriedAndLastErrorSurfaced() {
	s.reply = func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write([]byte(`{"success": false, "error": "database offline"}`))
	}

	_, err := s.newClient().Lookup(context.Background(), "44718903000188")
	s.Require().Error(err)
	s.Equal(int32(3), s.calls.Load(), "exactly MaxRetries attempts")
	s.Contains(err.Error(), "database offline")
	s.Equal(upstream.CategoryOutage, upstream.GetCategory(err))
}

func (s *ClientSuite) TestClientErrorsAreNotRetried() {
	s.reply = func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success": false, "error": "CNPJ é obrigatório"}`))
	}

	_, err := s.newClient().Lookup(context.Background(), "44718903000188")
	s.Require().Error(err)
	s.Equal(int32(1), s.calls.Load())
	s.Equal(upstream.CategoryBadData, upstream.GetCategory(err))
}

func (s *ClientSuite) TestMalformedBodyIsBadData() {
	s.reply = func(w http.ResponseWriter, _ *http.Request, _ int32) {
		_, _ = w.Write([]byte(`{not json`))
	}

	_, err := s.newClient().Lookup(context.Background(), "44718903000188")
	s.Equal(upstream.CategoryBadData, upstream.GetCategory(err))
	s.Equal(int32(1), s.calls.Load())
}

// =============================================================================
// Circuit breaker
// =============================================================================

func (s *ClientSuite) TestBreakerOpensAfterExhaustedLookups() {
	s.reply = func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusBadGateway)
	}
	c := s.newClient(func(cfg *config.RegistryConfig) {
		cfg.MaxRetries = 1
		cfg.BreakerFailures = 2
		cfg.BreakerOpenFor = time.Minute
	})

	for range 2 {
		_, err := c.Lookup(context.Background(), "44718903000188")
		s.Require().Error(err)
	}
	s.Equal(int32(2), s.calls.Load())

	_, err := c.Lookup(context.Background(), "44718903000188")
	s.Require().Error(err)
	s.Equal(int32(2), s.calls.Load(), "open breaker must not reach the service")
	s.Equal(upstream.CategoryOutage, upstream.GetCategory(err))
	s.Contains(err.Error(), "circuit breaker open")
}

func (s *ClientSuite) TestNonRetryableFailuresDoNotTripBreaker() {
	s.reply = func(w http.ResponseWriter, _ *http.Request, _ int32) {
		w.WriteHeader(http.StatusNotFound)
	}
	c := s.newClient(func(cfg *config.RegistryConfig) {
		cfg.BreakerFailures = 1
	})

	for range 3 {
		_, err := c.Lookup(context.Background(), "44718903000188")
		s.Equal(upstream.CategoryNotFound, upstream.GetCategory(err))
	}
	s.Equal(int32(3), s.calls.Load())
}

// =============================================================================
// Health
// =============================================================================

func (s *ClientSuite) TestHealth() {
	s.NoError(s.newClient().Health(context.Background()))
}

func TestHealthFailsWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config.DefaultConfig().Registry
	cfg.BaseURL = url
	c, err := New(cfg)
	require.NoError(t, err)

	err = c.Health(context.Background())
	require.Error(t, err)
	assert.Equal(t, upstream.CategoryOutage, upstream.GetCategory(err))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(config.RegistryConfig{})
	assert.Error(t, err)
}

func TestParseLookupResponse(t *testing.T) {
	t.Run("non-2xx carries status", func(t *testing.T) {
		_, err := parseLookupResponse("1", http.StatusInternalServerError, []byte(`{"success":false,"error":"boom"}`))
		var ue *upstream.Error
		require.ErrorAs(t, err, &ue)
		assert.Equal(t, http.StatusInternalServerError, ue.StatusCode)
		assert.True(t, ue.Retryable)
		assert.Contains(t, ue.Message, "boom")
	})

	t.Run("missing company leaves entity name empty", func(t *testing.T) {
		result, err := parseLookupResponse("1", http.StatusOK, []byte(`{"success":true,"dados_receita":{"total_divida_ativa":"R$0,00"}}`))
		require.NoError(t, err)
		assert.Empty(t, result.EntityName)
		assert.True(t, result.HasRecord())
	})
}
