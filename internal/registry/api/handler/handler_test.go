package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"pgfnsync/internal/registry/models"
	dErrors "pgfnsync/pkg/domain-errors"
	"pgfnsync/pkg/testutil"
)

type fakeService struct {
	lookupResp *models.LookupResponse
	lookupErr  error
	raw        *models.Aggregate
	rawErr     error
	webhook    *models.WebhookData
	webhookErr error
	healthErr  error

	gotLookup  string
	gotWebhook models.WebhookRequest
}

func (f *fakeService) Lookup(_ context.Context, raw string) (*models.LookupResponse, error) {
	f.gotLookup = raw
	return f.lookupResp, f.lookupErr
}

func (f *fakeService) Raw(_ context.Context, _ string) (*models.Aggregate, error) {
	return f.raw, f.rawErr
}

func (f *fakeService) SyncContact(_ context.Context, req models.WebhookRequest) (*models.WebhookData, error) {
	f.gotWebhook = req
	return f.webhook, f.webhookErr
}

func (f *fakeService) Health(context.Context) error {
	return f.healthErr
}

// =============================================================================
// Lookup API Handler Test Suite
// =============================================================================
// Justification: CRM webhooks and operators parse these bodies directly.
// Tests pin the success:false envelope and the status mapping of service errors.

type HandlerSuite struct {
	suite.Suite
	service *fakeService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.service = &fakeService{}
	h, err := New(s.service, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) TestNewRequiresService() {
	_, err := New(nil)
	s.Require().EqualError(err, "service is required")
}

func (s *HandlerSuite) TestLookup() {
	s.Run("returns the formatted record", func() {
		s.service.lookupResp = &models.LookupResponse{
			Success:    true,
			TaxpayerID: "12345678000195",
			Record:     &models.Record{TotalActiveDebt: "R$1.234,56"},
		}
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/cnpj/12345678000195"))

		testutil.AssertStatusOK(s.T(), rr)
		s.Equal("12345678000195", s.service.gotLookup)
		resp := testutil.UnmarshalResponse[models.LookupResponse](s.T(), rr)
		s.True(resp.Success)
		s.Equal("R$1.234,56", resp.Record.TotalActiveDebt)
	})

	s.Run("bad request keeps the envelope", func() {
		s.service.lookupErr = dErrors.New(dErrors.CodeBadRequest, "cnpj is required")
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/cnpj/abc"))

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		resp := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal("bad_request", resp["error"])
		s.Equal("cnpj is required", resp["error_description"])
		s.Equal("abc", resp["cnpj_provided"])
	})

	s.Run("query failure is a 500", func() {
		s.service.lookupErr = dErrors.Wrap(errors.New("conn reset"), dErrors.CodeInternal, "failed to query tax debt")
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/api/cnpj/12345678000195"))

		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
		testutil.AssertJSONContains(s.T(), rr, "success", false)
	})
}

func (s *HandlerSuite) TestRaw() {
	s.service.raw = &models.Aggregate{TotalInstallments: 3, TotalOutstanding: 10.5, Benefit: true}
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/test/12345678000195"))

	testutil.AssertStatusOK(s.T(), rr)
	resp := testutil.UnmarshalResponse[models.RawResponse](s.T(), rr)
	s.True(resp.Success)
	s.Equal("12345678000195", resp.TaxpayerID)
	s.Require().NotNil(resp.Data)
	s.Equal(int64(3), resp.Data.TotalInstallments)
	s.True(resp.Data.Benefit)
}

func (s *HandlerSuite) TestWebhook() {
	s.Run("numeric id is accepted", func() {
		s.service.webhook = &models.WebhookData{ContactID: "77", TaxpayerID: "12345678000195"}
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/webhook/pgfn", `{"cnpj":"12345678000195","id":77}`)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		s.Equal("77", s.service.gotWebhook.ID)
		resp := testutil.UnmarshalResponse[models.WebhookResponse](s.T(), rr)
		s.True(resp.Success)
		s.Require().NotNil(resp.Data)
		s.Equal("77", resp.Data.ContactID)
	})

	s.Run("malformed body", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/webhook/pgfn", `{"cnpj":`)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})

	s.Run("validation error", func() {
		s.service.webhookErr = dErrors.New(dErrors.CodeValidation, "cnpj and id are required")
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/webhook/pgfn", `{"cnpj":"12345678000195"}`)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "validation_error")
	})

	s.Run("crm not configured", func() {
		s.service.webhookErr = dErrors.New(dErrors.CodeUnavailable, "crm is not configured")
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/webhook/pgfn", `{"cnpj":"12345678000195","id":"1"}`)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
	})
}

func (s *HandlerSuite) TestHealth() {
	s.Run("ok", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "OK")
	})

	s.Run("database down", func() {
		s.service.healthErr = dErrors.New(dErrors.CodeUnavailable, "database unavailable")
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/health"))
		testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)
		testutil.AssertJSONContains(s.T(), rr, "status", "DEGRADED")
	})
}
