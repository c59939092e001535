package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Plan é o conjunto fechado de planos vendidos para revendas.
type Plan string

const (
	PlanParceiro Plan = "parceiro"
	PlanBasico   Plan = "basico"
	PlanPremium  Plan = "premium"
)

var planPrices = map[Plan]decimal.Decimal{
	PlanParceiro: decimal.Zero,
	PlanBasico:   decimal.RequireFromString("9.99"),
	PlanPremium:  decimal.RequireFromString("99.00"),
}

// ParsePlan aceita apenas os planos conhecidos; nunca cai num padrão.
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, s)
	}
	return p, nil
}

// Price devolve o valor mensal do plano.
func (p Plan) Price() decimal.Decimal {
	return planPrices[p]
}

// Free indica o plano parceiro, ativado sem cobrança.
func (p Plan) Free() bool {
	return p == PlanParceiro
}

func (p Plan) Valid() bool {
	_, ok := planPrices[p]
	return ok
}

// Label é o nome exibido nas mensagens ao cliente.
func (p Plan) Label() string {
	switch p {
	case PlanParceiro:
		return "Parceiro"
	case PlanBasico:
		return "Básico"
	case PlanPremium:
		return "Premium"
	}
	return string(p)
}
