package enrichment

// FieldKeys names the CRM custom fields that receive registry data. The nine
// registry-derived keys form the completeness set; EntityName is optional.
type FieldKeys struct {
	TotalActiveDebt    string // total_divida_ativa
	ActiveExecution    string // execucao_fiscal_ativa
	PartnerLiability   string // cpf_socio_responde
	ContestTransaction string // transacao_impugnacao
	InstallmentsLast5Y string // parcelamentos_5_anos
	ActiveInstallments string // parcelamentos_ativos
	TotalInstallment   string // total_parcelado
	TotalOutstanding   string // total_saldo_devedor
	BenefitTransaction string // possui_transacao_beneficio
	EntityName         string // nome_empresa
}

// DefaultFieldKeys returns the production Bitrix24 field ids.
func DefaultFieldKeys() FieldKeys {
	return FieldKeys{
		TotalActiveDebt:    "UF_CRM_1758806120",
		ActiveExecution:    "UF_CRM_1758806167",
		PartnerLiability:   "UF_CRM_1758808716",
		ContestTransaction: "UF_CRM_1758806267",
		InstallmentsLast5Y: "UF_CRM_1758806322",
		ActiveInstallments: "UF_CRM_1758806337",
		TotalInstallment:   "UF_CRM_1758806357",
		TotalOutstanding:   "UF_CRM_1758806370",
		BenefitTransaction: "UF_CRM_1758806394",
		EntityName:         "UF_CRM_1557101315015",
	}
}

// Required returns the nine registry-derived keys in a stable order.
func (k FieldKeys) Required() []string {
	return []string{
		k.TotalActiveDebt,
		k.ActiveExecution,
		k.PartnerLiability,
		k.ContestTransaction,
		k.InstallmentsLast5Y,
		k.ActiveInstallments,
		k.TotalInstallment,
		k.TotalOutstanding,
		k.BenefitTransaction,
	}
}

// Boolean returns the keys holding SIM/NÃO tokens.
func (k FieldKeys) Boolean() []string {
	return []string{
		k.ActiveExecution,
		k.PartnerLiability,
		k.ContestTransaction,
		k.BenefitTransaction,
	}
}

// All returns the required keys plus EntityName when configured.
func (k FieldKeys) All() []string {
	keys := k.Required()
	if k.EntityName != "" {
		keys = append(keys, k.EntityName)
	}
	return keys
}
