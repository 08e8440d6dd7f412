//go:build integration

package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"pgfnsync/internal/registry/api/store"
	"pgfnsync/pkg/platform/sentinel"
	"pgfnsync/pkg/testutil/containers"
)

const schema = `
CREATE TABLE IF NOT EXISTS convencional_sn (
	cnpj TEXT,
	nome TEXT,
	municipio TEXT,
	uf TEXT,
	valor_parcelado NUMERIC,
	saldo_devedor NUMERIC
);
CREATE TABLE IF NOT EXISTS empresas (
	cpf_cnpj TEXT,
	nome TEXT,
	municipio TEXT,
	uf TEXT,
	valor_parcelado NUMERIC,
	saldo_devedor NUMERIC
);
CREATE TABLE IF NOT EXISTS especial_pj_pf (
	cpf_cnpj TEXT,
	nome TEXT,
	municipio TEXT,
	uf TEXT,
	modalidade TEXT,
	valor_parcelado NUMERIC,
	saldo_devedor NUMERIC
)`

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.pg.Exec(s.T(), schema)
	s.store = store.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.pg.Exec(s.T(), "TRUNCATE convencional_sn, empresas, especial_pj_pf")
}

func (s *PostgresStoreSuite) TestAggregateAcrossTables() {
	s.pg.Exec(s.T(),
		`INSERT INTO convencional_sn (cnpj, nome, valor_parcelado, saldo_devedor) VALUES
			('11222333000181', 'ACME SN', 1000, 250.50),
			('11222333000181', 'ACME SN', 500, 0)`,
		`INSERT INTO empresas (cpf_cnpj, nome, municipio, uf, valor_parcelado, saldo_devedor) VALUES
			('11.222.333/0001-81', 'ACME LTDA', 'CAMPINAS', 'SP', 2000, 1000)`,
		`INSERT INTO especial_pj_pf (cpf_cnpj, nome, modalidade, valor_parcelado, saldo_devedor) VALUES
			('11222333000181', 'ACME ESP', 'TRANSACAO COM BENEFÍCIO', 300, 0),
			('11222333000181', 'ACME ESP', 'RESPONSÁVEL SOLIDARIO', 100, 10)`,
	)

	agg, err := s.store.Aggregate(context.Background(), "11222333000181", "11.222.333/0001-81")
	s.Require().NoError(err)
	s.Equal(int64(5), agg.TotalInstallments)
	s.Equal(int64(3), agg.ActiveInstallments)
	s.InDelta(3900.0, agg.TotalInstallment, 0.001)
	s.InDelta(1260.50, agg.TotalOutstanding, 0.001)
	s.True(agg.PartnerLiability)
	s.True(agg.Benefit)
	s.False(agg.Contest)
}

func (s *PostgresStoreSuite) TestAggregateWithoutRows() {
	agg, err := s.store.Aggregate(context.Background(), "99888777000166", "99.888.777/0001-66")
	s.Require().NoError(err)
	s.Zero(agg.TotalInstallments)
	s.Zero(agg.TotalOutstanding)
	s.False(agg.PartnerLiability)
}

func (s *PostgresStoreSuite) TestCompanyPriority() {
	s.pg.Exec(s.T(),
		`INSERT INTO convencional_sn (cnpj, nome) VALUES ('11222333000181', 'ACME SN')`,
		`INSERT INTO especial_pj_pf (cpf_cnpj, nome, uf) VALUES ('11222333000181', 'ACME ESP', 'RJ')`,
	)

	c, err := s.store.Company(context.Background(), "11222333000181", "11.222.333/0001-81")
	s.Require().NoError(err)
	s.Equal("ACME ESP", c.Name)
	s.Equal("RJ", c.State)

	s.pg.Exec(s.T(), `INSERT INTO empresas (cpf_cnpj, nome, municipio) VALUES ('11.222.333/0001-81', 'ACME LTDA', 'CAMPINAS')`)
	c, err = s.store.Company(context.Background(), "11222333000181", "11.222.333/0001-81")
	s.Require().NoError(err)
	s.Equal("ACME LTDA", c.Name)
	s.Equal("CAMPINAS", c.Municipality)
}

func (s *PostgresStoreSuite) TestCompanyNotFound() {
	s.pg.Exec(s.T(), `INSERT INTO empresas (cpf_cnpj, nome) VALUES ('11222333000181', '  ')`)

	_, err := s.store.Company(context.Background(), "11222333000181", "11.222.333/0001-81")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestHealth() {
	s.NoError(s.store.Health(context.Background()))
}
