package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"pgfnsync/internal/enrichment"
	"pgfnsync/internal/registry/api/service/mocks"
	"pgfnsync/internal/registry/models"
	dErrors "pgfnsync/pkg/domain-errors"
	audit "pgfnsync/pkg/platform/audit"
	"pgfnsync/pkg/platform/sentinel"
)

const (
	cleanID     = "11222333000181"
	formattedID = "11.222.333/0001-81"
)

type recordingPublisher struct {
	events []audit.Event
}

func (p *recordingPublisher) Emit(_ context.Context, e audit.Event) error {
	p.events = append(p.events, e)
	return nil
}

func TestFormatRecord(t *testing.T) {
	tests := []struct {
		name string
		in   models.Aggregate
		want models.Record
	}{
		{
			name: "no rows",
			in:   models.Aggregate{},
			want: models.Record{
				TotalActiveDebt: "R$0,00", ActiveExecution: "NÃO", PartnerLiability: "NÃO",
				ContestTransaction: "NÃO", InstallmentsLast5Y: "0", ActiveInstallments: "0",
				TotalInstallment: "R$0,00", TotalOutstanding: "R$0,00", BenefitTransaction: "NÃO",
			},
		},
		{
			name: "active installments with balance",
			in: models.Aggregate{
				TotalInstallments: 4, ActiveInstallments: 2,
				TotalInstallment: 98765.4, TotalOutstanding: 1234.56,
				PartnerLiability: true, Contest: true, Benefit: true,
			},
			want: models.Record{
				TotalActiveDebt: "R$1.234,56", ActiveExecution: "SIM", PartnerLiability: "SIM",
				ContestTransaction: "SIM", InstallmentsLast5Y: "4", ActiveInstallments: "2",
				TotalInstallment: "R$98.765,40", TotalOutstanding: "R$1.234,56", BenefitTransaction: "SIM",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatRecord(tt.in))
		})
	}
}

func TestActiveExecutionNeedsBalance(t *testing.T) {
	assert.Equal(t, "NÃO", FormatRecord(models.Aggregate{ActiveInstallments: 3}).ActiveExecution)
	assert.Equal(t, "NÃO", FormatRecord(models.Aggregate{TotalOutstanding: 10}).ActiveExecution)
}

// =============================================================================
// Lookup Service Test Suite
// =============================================================================
// Justification: the service owns id normalization, cache use and the
// webhook write path; the store and CRM are mocked.

type ServiceSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	store    *mocks.MockStore
	cache    *mocks.MockCache
	contacts *mocks.MockContactUpdater
	events   *recordingPublisher
	keys     enrichment.FieldKeys
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.cache = mocks.NewMockCache(s.ctrl)
	s.contacts = mocks.NewMockContactUpdater(s.ctrl)
	s.events = &recordingPublisher{}
	s.keys = enrichment.DefaultFieldKeys()

	var err error
	s.service, err = New(s.store,
		WithCache(s.cache),
		WithContactUpdater(s.contacts, enrichment.NewMapper(s.keys)),
		WithEventPublisher(s.events),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC) }),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store", func() {
		_, err := New(nil)
		s.ErrorContains(err, "store is required")
	})
	s.Run("contact updater without mapper", func() {
		_, err := New(s.store, WithContactUpdater(s.contacts, nil))
		s.ErrorContains(err, "field mapper is required")
	})
}

func (s *ServiceSuite) TestLookupRejectsEmptyID() {
	_, err := s.service.Lookup(context.Background(), "abc")
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestLookupQueriesBothForms() {
	ctx := context.Background()
	s.cache.EXPECT().Get(gomock.Any(), cleanID).Return(nil, sentinel.ErrNotFound)
	s.store.EXPECT().Aggregate(gomock.Any(), cleanID, formattedID).
		Return(&models.Aggregate{TotalInstallments: 2, ActiveInstallments: 1, TotalOutstanding: 1234.56}, nil)
	s.store.EXPECT().Company(gomock.Any(), cleanID, formattedID).
		Return(&models.Company{Name: "ACME LTDA", Municipality: "SAO PAULO", State: "SP"}, nil)
	s.cache.EXPECT().Set(gomock.Any(), cleanID, gomock.Any()).Return(nil)

	resp, err := s.service.Lookup(ctx, formattedID)
	s.Require().NoError(err)
	s.True(resp.Success)
	s.Equal(formattedID, resp.TaxpayerID)
	s.Equal("R$1.234,56", resp.Record.TotalActiveDebt)
	s.Equal("SIM", resp.Record.ActiveExecution)
	s.Equal("2", resp.Record.InstallmentsLast5Y)
	s.Equal("ACME LTDA", resp.Company.Name)
}

func (s *ServiceSuite) TestLookupServedFromCache() {
	cached := &models.LookupResponse{Success: true, TaxpayerID: formattedID, Record: &models.Record{TotalActiveDebt: "R$1,00"}}
	s.cache.EXPECT().Get(gomock.Any(), cleanID).Return(cached, nil)

	resp, err := s.service.Lookup(context.Background(), cleanID)
	s.Require().NoError(err)
	s.Equal("R$1,00", resp.Record.TotalActiveDebt)
}

func (s *ServiceSuite) TestLookupSurvivesCacheFailures() {
	s.cache.EXPECT().Get(gomock.Any(), cleanID).Return(nil, errors.New("redis down"))
	s.store.EXPECT().Aggregate(gomock.Any(), cleanID, formattedID).Return(&models.Aggregate{}, nil)
	s.store.EXPECT().Company(gomock.Any(), cleanID, formattedID).Return(nil, sentinel.ErrNotFound)
	s.cache.EXPECT().Set(gomock.Any(), cleanID, gomock.Any()).Return(errors.New("redis down"))

	resp, err := s.service.Lookup(context.Background(), cleanID)
	s.Require().NoError(err)
	s.Nil(resp.Company)
	s.Equal("R$0,00", resp.Record.TotalOutstanding)
}

func (s *ServiceSuite) TestLookupStoreFailure() {
	s.cache.EXPECT().Get(gomock.Any(), cleanID).Return(nil, sentinel.ErrNotFound)
	s.store.EXPECT().Aggregate(gomock.Any(), cleanID, formattedID).Return(nil, errors.New("connection reset"))

	_, err := s.service.Lookup(context.Background(), cleanID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestLookupWithoutCache() {
	svc, err := New(s.store)
	s.Require().NoError(err)
	s.store.EXPECT().Aggregate(gomock.Any(), "12345678901", "123.456.789-01").Return(&models.Aggregate{}, nil)
	s.store.EXPECT().Company(gomock.Any(), "12345678901", "123.456.789-01").Return(nil, errors.New("column missing"))

	resp, err := svc.Lookup(context.Background(), "123.456.789-01")
	s.Require().NoError(err)
	s.Equal("123.456.789-01", resp.TaxpayerID)
}

func (s *ServiceSuite) TestRaw() {
	s.store.EXPECT().Aggregate(gomock.Any(), cleanID, formattedID).Return(&models.Aggregate{TotalInstallments: 7}, nil)

	agg, err := s.service.Raw(context.Background(), cleanID)
	s.Require().NoError(err)
	s.EqualValues(7, agg.TotalInstallments)
}

// =============================================================================
// Webhook Tests
// =============================================================================

func (s *ServiceSuite) TestSyncContactRequiresBothFields() {
	_, err := s.service.SyncContact(context.Background(), models.WebhookRequest{TaxpayerID: cleanID})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.service.SyncContact(context.Background(), models.WebhookRequest{ID: "9"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestSyncContactWithoutCRM() {
	svc, err := New(s.store)
	s.Require().NoError(err)
	_, err = svc.SyncContact(context.Background(), models.WebhookRequest{TaxpayerID: cleanID, ID: "9"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestSyncContactWritesMappedFields() {
	s.store.EXPECT().Aggregate(gomock.Any(), cleanID, formattedID).
		Return(&models.Aggregate{TotalInstallments: 1, ActiveInstallments: 1, TotalOutstanding: 1234.56, TotalInstallment: 2000}, nil)
	s.store.EXPECT().Company(gomock.Any(), cleanID, formattedID).Return(&models.Company{Name: "ACME LTDA"}, nil)

	var written map[string]string
	s.contacts.EXPECT().UpdateContactFields(gomock.Any(), "9", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, fields map[string]string) (bool, error) {
			written = fields
			return true, nil
		})

	data, err := s.service.SyncContact(context.Background(), models.WebhookRequest{TaxpayerID: formattedID, ID: "9"})
	s.Require().NoError(err)
	s.Equal("9", data.ContactID)
	s.Equal("R$1.234,56", data.Record.TotalActiveDebt)

	s.Equal("1234.56", written[s.keys.TotalActiveDebt])
	s.Equal("2000.00", written[s.keys.TotalInstallment])
	s.Equal("SIM", written[s.keys.ActiveExecution])
	s.Equal("ACME LTDA", written[s.keys.EntityName])

	s.Require().Len(s.events.events, 1)
	s.Equal(string(audit.EventContactUpdated), s.events.events[0].Action)
	s.Equal(cleanID, s.events.events[0].TaxpayerID)
}

func (s *ServiceSuite) TestSyncContactRejected() {
	s.store.EXPECT().Aggregate(gomock.Any(), gomock.Any(), gomock.Any()).Return(&models.Aggregate{}, nil)
	s.store.EXPECT().Company(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)
	s.contacts.EXPECT().UpdateContactFields(gomock.Any(), "9", gomock.Any()).Return(false, nil)

	_, err := s.service.SyncContact(context.Background(), models.WebhookRequest{TaxpayerID: cleanID, ID: "9"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Empty(s.events.events)
}

func (s *ServiceSuite) TestHealth() {
	s.store.EXPECT().Health(gomock.Any()).Return(nil)
	s.NoError(s.service.Health(context.Background()))

	s.store.EXPECT().Health(gomock.Any()).Return(errors.New("refused"))
	s.True(dErrors.HasCode(s.service.Health(context.Background()), dErrors.CodeUnavailable))
}
