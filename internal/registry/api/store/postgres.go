// Package store reads tax-debt installments from the PGFN Postgres tables.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pgfnsync/internal/registry/models"
	"pgfnsync/pkg/platform/sentinel"
)

// aggregateQuery rolls the three installment tables into one row. $1 is the
// digits-only id, $2 the masked form; convencional_sn stores digits only.
const aggregateQuery = `
WITH consolidated AS (
	SELECT
		COUNT(*) AS total_installments,
		SUM(CASE WHEN saldo_devedor > 0 THEN 1 ELSE 0 END) AS active_installments,
		COALESCE(SUM(valor_parcelado), 0) AS total_installed,
		COALESCE(SUM(saldo_devedor), 0) AS total_outstanding,
		false AS partner_liability,
		false AS contest,
		false AS benefit
	FROM convencional_sn
	WHERE cnpj = $1

	UNION ALL

	SELECT
		COUNT(*),
		SUM(CASE WHEN saldo_devedor > 0 THEN 1 ELSE 0 END),
		COALESCE(SUM(valor_parcelado), 0),
		COALESCE(SUM(saldo_devedor), 0),
		false,
		false,
		false
	FROM empresas
	WHERE cpf_cnpj = $1 OR cpf_cnpj = $2

	UNION ALL

	SELECT
		COUNT(*),
		SUM(CASE WHEN saldo_devedor > 0 THEN 1 ELSE 0 END),
		COALESCE(SUM(valor_parcelado), 0),
		COALESCE(SUM(saldo_devedor), 0),
		COALESCE(BOOL_OR(modalidade ILIKE '%SOCIO%' OR modalidade ILIKE '%RESPONSÁVEL%'), false),
		COALESCE(BOOL_OR(modalidade ILIKE '%IMPUGNAÇÃO%' OR modalidade ILIKE '%IMPUGNACAO%'), false),
		COALESCE(BOOL_OR(modalidade ILIKE '%BENEFÍCIO%' OR modalidade ILIKE '%BENEFICIO%'), false)
	FROM especial_pj_pf
	WHERE cpf_cnpj = $1 OR cpf_cnpj = $2
)
SELECT
	COALESCE(SUM(total_installments), 0)::bigint,
	COALESCE(SUM(active_installments), 0)::bigint,
	COALESCE(SUM(total_installed), 0)::float8,
	COALESCE(SUM(total_outstanding), 0)::float8,
	COALESCE(BOOL_OR(partner_liability), false),
	COALESCE(BOOL_OR(contest), false),
	COALESCE(BOOL_OR(benefit), false)
FROM consolidated`

// companyQuery picks the first non-empty name, preferring empresas.
const companyQuery = `
SELECT nome, COALESCE(municipio, ''), COALESCE(uf, '')
FROM (
	SELECT 1 AS priority, nome, municipio, uf FROM empresas WHERE cpf_cnpj = $1 OR cpf_cnpj = $2
	UNION ALL
	SELECT 2, nome, municipio, uf FROM especial_pj_pf WHERE cpf_cnpj = $1 OR cpf_cnpj = $2
	UNION ALL
	SELECT 3, nome, municipio, uf FROM convencional_sn WHERE cnpj = $1
) candidates
WHERE nome IS NOT NULL AND btrim(nome) <> ''
ORDER BY priority
LIMIT 1`

// PostgresStore runs the aggregation over a *sql.DB.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Aggregate returns the rollup for a taxpayer. A taxpayer without rows yields
// a zero Aggregate, not an error.
func (s *PostgresStore) Aggregate(ctx context.Context, clean, formatted string) (*models.Aggregate, error) {
	var a models.Aggregate
	err := s.db.QueryRowContext(ctx, aggregateQuery, clean, formatted).Scan(
		&a.TotalInstallments,
		&a.ActiveInstallments,
		&a.TotalInstallment,
		&a.TotalOutstanding,
		&a.PartnerLiability,
		&a.Contest,
		&a.Benefit,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate tax debt: %w", err)
	}
	return &a, nil
}

// Company returns the entity name found alongside the debt rows.
func (s *PostgresStore) Company(ctx context.Context, clean, formatted string) (*models.Company, error) {
	var c models.Company
	err := s.db.QueryRowContext(ctx, companyQuery, clean, formatted).Scan(&c.Name, &c.Municipality, &c.State)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find company: %w", err)
	}
	return &c, nil
}

// Health pings the database.
func (s *PostgresStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
