package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/willjrcristo/revendas-billing/internal/domain"
)

// Textos enviados por WhatsApp. Valores em reais no formato brasileiro.

func DueIn3Days(name string, amount decimal.Decimal, dueDate, pixCode string) string {
	return fmt.Sprintf("Olá %s! Sua mensalidade de R$ %s vence em 3 dias (%s).\n\nPIX copia e cola:\n%s",
		name, brl(amount), brDate(dueDate), pixCode)
}

func DueToday(name string, amount decimal.Decimal, pixCode string) string {
	return fmt.Sprintf("Olá %s! Sua mensalidade de R$ %s vence hoje. Evite a suspensão da sua revenda.\n\nPIX copia e cola:\n%s",
		name, brl(amount), pixCode)
}

func Suspended(name string) string {
	return fmt.Sprintf("Olá %s. Sua revenda foi suspensa por falta de pagamento. Gere uma nova cobrança no painel para reativá-la.", name)
}

func PaymentConfirmed(name string, plan domain.Plan, until time.Time, loc *time.Location) string {
	return fmt.Sprintf("Pagamento confirmado, %s! Plano %s ativo até %s. Obrigado!",
		name, plan.Label(), until.In(loc).Format("02/01/2006"))
}

func brl(v decimal.Decimal) string {
	return strings.Replace(v.StringFixed(2), ".", ",", 1)
}

func brDate(day string) string {
	t, err := time.Parse(domain.DateLayout, day)
	if err != nil {
		return day
	}
	return t.Format("02/01/2006")
}
