// Package metrics concentra os contadores Prometheus do motor de cobrança.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OutcomeRejected rotula webhooks recusados na verificação de assinatura,
// antes de chegarem ao gateway.
const OutcomeRejected = "rejected"

var (
	SubscriptionsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_subscriptions_created_total",
			Help: "Assinaturas criadas, por plano.",
		},
		[]string{"plan"},
	)

	PaymentsConfirmed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_payments_confirmed_total",
			Help: "Pagamentos que passaram de pending para paid.",
		},
	)

	// outcome: applied, stale, ignored (gateway) ou OutcomeRejected (assinatura inválida).
	WebhooksReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhooks_received_total",
			Help: "Webhooks de confirmação recebidos, por resultado.",
		},
		[]string{"outcome"},
	)

	// result: ran, skipped, failed.
	SweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_sweep_runs_total",
			Help: "Execuções da varredura diária de vencimentos.",
		},
		[]string{"result"},
	)

	RemindersQueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_reminders_queued_total",
			Help: "Avisos enfileirados pela varredura, por tipo.",
		},
		[]string{"kind"},
	)

	Suspensions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "billing_suspensions_total",
			Help: "Clientes suspensos por falta de pagamento.",
		},
	)

	// result: sent, failed.
	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_notifications_total",
			Help: "Tentativas de envio de notificação, por resultado.",
		},
		[]string{"result"},
	)
)
