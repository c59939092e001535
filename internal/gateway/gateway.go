// Package gateway é a fachada de pagamentos: transforma eventos do ledger em
// descritores PIX e converte webhooks de confirmação em transições do ledger.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/willjrcristo/revendas-billing/internal/domain"
	"github.com/willjrcristo/revendas-billing/internal/metrics"
	"github.com/willjrcristo/revendas-billing/internal/pix"
	"github.com/willjrcristo/revendas-billing/internal/service"
)

// Merchant identifica o recebedor que aparece no BR Code.
type Merchant struct {
	Key  string
	Name string
	City string
}

// QRRenderer transforma o payload em uma URL de imagem escaneável.
type QRRenderer interface {
	RenderQR(payload string) (string, error)
}

// PaymentConfirmer é a parte do ledger de que o webhook precisa.
type PaymentConfirmer interface {
	GetPayment(ctx context.Context, id int64) (*domain.Payment, error)
	ConfirmPayment(ctx context.Context, id int64) (*service.ConfirmResult, error)
}

// Webhook é o aviso de confirmação recebido de fora.
type Webhook struct {
	PaymentID int64
	Status    string
	TxID      string
}

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeStale   Outcome = "stale"
	OutcomeIgnored Outcome = "ignored"
)

var ErrNotBound = errors.New("gateway sem ledger associado")

type PixGateway struct {
	merchant  Merchant
	qr        QRRenderer
	confirmer PaymentConfirmer
}

func NewPixGateway(m Merchant, qr QRRenderer) *PixGateway {
	return &PixGateway{merchant: m, qr: qr}
}

// Bind liga o gateway ao ledger que aplica as confirmações. Deve ser chamado
// na montagem da aplicação, antes de atender requisições.
func (g *PixGateway) Bind(c PaymentConfirmer) {
	g.confirmer = c
}

// Issue gera o PIX copia-e-cola e o QR Code de uma cobrança. payerName fica
// apenas no log: o nome no BR Code é sempre o do recebedor.
func (g *PixGateway) Issue(ctx context.Context, amount decimal.Decimal, payerName, txID string) (domain.Charge, error) {
	code, err := pix.Encode(pix.Payload{
		Key:          g.merchant.Key,
		MerchantName: g.merchant.Name,
		MerchantCity: g.merchant.City,
		Amount:       &amount,
		TxID:         txID,
	})
	if err != nil {
		return domain.Charge{}, err
	}
	if err := pix.Validate(code); err != nil {
		return domain.Charge{}, fmt.Errorf("payload gerado inválido: %w", err)
	}

	qrURL, err := g.qr.RenderQR(code)
	if err != nil {
		return domain.Charge{}, fmt.Errorf("gerando qr code: %w", err)
	}

	slog.Debug("Cobrança PIX gerada", "tx_id", txID, "amount", amount.StringFixed(2), "payer", payerName)
	return domain.Charge{PixCode: code, QRURL: qrURL}, nil
}

// ReportWebhook aplica um aviso de pagamento. Só os status paid/confirmed
// disparam a confirmação; os demais são registrados e ignorados. Pagamento
// desconhecido ou tx_id divergente também é ignorado, e evento repetido é
// sucesso silencioso. Apenas falhas de armazenamento voltam como erro.
func (g *PixGateway) ReportWebhook(ctx context.Context, ev Webhook) (Outcome, error) {
	if g.confirmer == nil {
		return "", ErrNotBound
	}
	outcome, err := g.reportWebhook(ctx, ev)
	if err == nil {
		metrics.WebhooksReceived.WithLabelValues(string(outcome)).Inc()
	}
	return outcome, err
}

func (g *PixGateway) reportWebhook(ctx context.Context, ev Webhook) (Outcome, error) {
	status := strings.ToLower(strings.TrimSpace(ev.Status))
	if status != "paid" && status != "confirmed" {
		slog.Info("Webhook com status não conclusivo ignorado", "payment_id", ev.PaymentID, "status", ev.Status)
		return OutcomeIgnored, nil
	}

	payment, err := g.confirmer.GetPayment(ctx, ev.PaymentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("Webhook para pagamento inexistente", "payment_id", ev.PaymentID)
			return OutcomeIgnored, nil
		}
		return "", err
	}
	if ev.TxID != "" && payment.TxID != "" && ev.TxID != payment.TxID {
		slog.Warn("Webhook com tx_id divergente", "payment_id", ev.PaymentID, "tx_id", ev.TxID)
		return OutcomeIgnored, nil
	}

	res, err := g.confirmer.ConfirmPayment(ctx, ev.PaymentID)
	if err != nil {
		return "", err
	}
	if !res.Applied {
		return OutcomeStale, nil
	}
	return OutcomeApplied, nil
}
