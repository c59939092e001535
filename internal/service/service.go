package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/willjrcristo/revendas-billing/internal/domain"
	"github.com/willjrcristo/revendas-billing/internal/metrics"
	"github.com/willjrcristo/revendas-billing/internal/notification"
	"github.com/willjrcristo/revendas-billing/internal/repository"
)

const (
	trialPeriod      = 7 * 24 * time.Hour
	chargeExpiry     = time.Hour
	freePlanYears    = 100
	txIDLength       = 25
	cancelReplaced   = "substituída por nova assinatura"
	cancelByRequest  = "cancelada a pedido do cliente"
	subdomainPattern = "revenda-%d"
)

// ChargeIssuer gera o descritor PIX de uma cobrança.
type ChargeIssuer interface {
	Issue(ctx context.Context, amount decimal.Decimal, payerName, txID string) (domain.Charge, error)
}

// Kicker acorda o despachante de notificações depois de um commit.
type Kicker interface {
	Kick()
}

// Ledger é o dono exclusivo das escritas em clientes, assinaturas e
// pagamentos. Toda transição de várias linhas acontece numa única transação.
type Ledger struct {
	store   *repository.Store
	issuer  ChargeIssuer
	kicker  Kicker
	now     func() time.Time
	loc     *time.Location
	newTxID func() string
}

type Option func(*Ledger)

// WithClock troca o relógio, usado nos testes.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLocation define o fuso usado para datas de vencimento.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

func WithKicker(k Kicker) Option {
	return func(l *Ledger) { l.kicker = k }
}

func WithTxIDGenerator(f func() string) Option {
	return func(l *Ledger) { l.newTxID = f }
}

// NewLedger cria o ledger sobre o repositório SQLite.
func NewLedger(store *repository.Store, issuer ChargeIssuer, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		issuer:  issuer,
		now:     time.Now,
		loc:     time.UTC,
		newTxID: newTxID,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// newTxID gera o identificador de transação do campo 62/05 do BR Code:
// até 25 caracteres alfanuméricos.
func newTxID() string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return id[:txIDLength]
}

// NewClient são os dados de cadastro de uma revenda.
type NewClient struct {
	Name  string
	Phone string
	Plan  string
}

// SubscriptionResult é a resposta de CreateSubscription. Payment fica nil no plano gratuito.
type SubscriptionResult struct {
	Subscription domain.Subscription
	Payment      *domain.Payment
}

// ConfirmResult descreve o efeito de ConfirmPayment. Applied=false significa
// que o pagamento já havia saído de pending (evento repetido).
type ConfirmResult struct {
	Applied bool
	Payment domain.Payment
	Next    *domain.Payment
}

// StatusSnapshot é a visão do cliente usada por GET /subscription/status.
type StatusSnapshot struct {
	Client         domain.Client        `json:"client"`
	Subscription   *domain.Subscription `json:"subscription"`
	PendingPayment *domain.Payment      `json:"pending_payment,omitempty"`
	DaysLeft       int                  `json:"days_left"`
}

// --- CLIENTES ---

// CreateClient cadastra a revenda em período de teste, com uma landing ativa.
func (l *Ledger) CreateClient(ctx context.Context, in NewClient) (*domain.Client, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: nome é obrigatório", domain.ErrValidation)
	}
	phone, err := domain.NormalizePhone(in.Phone)
	if err != nil {
		return nil, err
	}
	plan := domain.PlanBasico
	if in.Plan != "" {
		if plan, err = domain.ParsePlan(in.Plan); err != nil {
			return nil, err
		}
	}

	now := l.now()
	trialEnds := now.Add(trialPeriod)
	client := domain.Client{
		Name:        name,
		Phone:       phone,
		Plan:        plan,
		Status:      domain.ClientTrial,
		TrialEndsAt: &trialEnds,
		CreatedAt:   now,
	}

	err = l.store.WithTx(ctx, func(q *repository.Queries) error {
		existing, err := q.GetClientByPhone(ctx, phone)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrDuplicateClient
		}
		id, err := q.CreateClient(ctx, client)
		if err != nil {
			return err
		}
		client.ID = id
		_, err = q.CreateInstance(ctx, id, fmt.Sprintf(subdomainPattern, id))
		return err
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Cliente cadastrado em período de teste", "client_id", client.ID, "plan", plan)
	return &client, nil
}

func (l *Ledger) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	c, err := l.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrClientNotFound
	}
	return c, nil
}

// --- ASSINATURAS ---

// CreateSubscription abre uma assinatura para o cliente. O plano gratuito já
// nasce ativo; os pagos nascem pendentes com a primeira cobrança PIX.
func (l *Ledger) CreateSubscription(ctx context.Context, clientID int64, planName string) (*SubscriptionResult, error) {
	plan, err := domain.ParsePlan(planName)
	if err != nil {
		return nil, err
	}

	var result SubscriptionResult
	err = l.store.WithTx(ctx, func(q *repository.Queries) error {
		client, err := q.GetClient(ctx, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return domain.ErrClientNotFound
		}

		now := l.now()
		if err := l.retireLiveSubscriptions(ctx, q, clientID, now); err != nil {
			return err
		}

		if plan.Free() {
			sub, err := l.createFreeSubscription(ctx, q, client, now)
			result.Subscription = sub
			return err
		}

		sub := domain.Subscription{
			ClientID:  clientID,
			Plan:      plan,
			Status:    domain.SubscriptionPending,
			StartDate: now,
			EndDate:   now.AddDate(0, 1, 0),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if sub.ID, err = q.CreateSubscription(ctx, sub); err != nil {
			return err
		}

		payment, err := l.issuePayment(ctx, q, client, sub, domain.Day(now.Add(chargeExpiry), l.loc), now)
		if err != nil {
			return err
		}
		sub.LastPaymentID = &payment.ID

		if err := q.SyncClient(ctx, clientID, sub.Status.ClientStatus(), plan, client.SubscriptionEndsAt); err != nil {
			return err
		}

		result.Subscription = sub
		result.Payment = payment
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SubscriptionsCreated.WithLabelValues(string(plan)).Inc()
	slog.Info("Assinatura criada",
		"client_id", clientID, "subscription_id", result.Subscription.ID,
		"plan", plan, "status", result.Subscription.Status)
	return &result, nil
}

// retireLiveSubscriptions garante a regra de uma assinatura viva por cliente:
// uma ativa bloqueia a criação, as pendentes são canceladas junto com suas cobranças.
func (l *Ledger) retireLiveSubscriptions(ctx context.Context, q *repository.Queries, clientID int64, now time.Time) error {
	live, err := q.ListSubscriptions(ctx, clientID, domain.SubscriptionActive, domain.SubscriptionPending)
	if err != nil {
		return err
	}
	for _, s := range live {
		if s.Status == domain.SubscriptionActive {
			return domain.ErrSubscriptionActive
		}
	}
	for _, s := range live {
		if _, err := q.FailPendingPayments(ctx, s.ID); err != nil {
			return err
		}
		if _, err := q.TransitionSubscription(ctx, s.ID, domain.SubscriptionCancelled, cancelReplaced, now, domain.SubscriptionPending); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) createFreeSubscription(ctx context.Context, q *repository.Queries, client *domain.Client, now time.Time) (domain.Subscription, error) {
	sub := domain.Subscription{
		ClientID:  client.ID,
		Plan:      domain.PlanParceiro,
		Status:    domain.SubscriptionActive,
		StartDate: now,
		EndDate:   now.AddDate(freePlanYears, 0, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := q.CreateSubscription(ctx, sub)
	if err != nil {
		return sub, err
	}
	sub.ID = id
	if err := q.SyncClient(ctx, client.ID, sub.Status.ClientStatus(), domain.PlanParceiro, &sub.EndDate); err != nil {
		return sub, err
	}
	_, err = q.SetInstancesStatus(ctx, client.ID, domain.InstanceActive)
	return sub, err
}

// issuePayment gera o PIX e grava a cobrança pendente ligada à assinatura.
func (l *Ledger) issuePayment(ctx context.Context, q *repository.Queries, client *domain.Client, sub domain.Subscription, dueDate string, now time.Time) (*domain.Payment, error) {
	amount := sub.Plan.Price()
	txID := l.newTxID()
	charge, err := l.issuer.Issue(ctx, amount, client.Name, txID)
	if err != nil {
		return nil, fmt.Errorf("gerando cobrança pix: %w", err)
	}

	payment := domain.Payment{
		ClientID:       client.ID,
		SubscriptionID: sub.ID,
		Amount:         amount,
		Plan:           sub.Plan,
		Status:         domain.PaymentPending,
		PixCode:        charge.PixCode,
		PixQRURL:       charge.QRURL,
		TxID:           txID,
		DueDate:        dueDate,
		CreatedAt:      now,
	}
	if payment.ID, err = q.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	if err := q.SetLastPayment(ctx, sub.ID, payment.ID, now); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ConfirmPayment liquida um pagamento pendente, ativa a assinatura por mais um
// mês e já deixa pendente a cobrança do próximo período. Pagamentos fora de
// pending são ignorados, o que torna webhooks repetidos inofensivos.
func (l *Ledger) ConfirmPayment(ctx context.Context, paymentID int64) (*ConfirmResult, error) {
	var result ConfirmResult
	var end time.Time
	err := l.store.WithTx(ctx, func(q *repository.Queries) error {
		payment, err := q.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return domain.ErrPaymentNotFound
		}
		result.Payment = *payment

		now := l.now()
		applied, err := q.MarkPaymentPaid(ctx, paymentID, now)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		result.Applied = true
		result.Payment.Status = domain.PaymentPaid
		result.Payment.PaidAt = &now

		sub, err := q.GetSubscription(ctx, payment.SubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return fmt.Errorf("%w: pagamento %d sem assinatura", domain.ErrStorage, paymentID)
		}
		client, err := q.GetClient(ctx, payment.ClientID)
		if err != nil {
			return err
		}
		if client == nil {
			return fmt.Errorf("%w: pagamento %d sem cliente", domain.ErrStorage, paymentID)
		}

		// Renovação antecipada não perde os dias que ainda restam.
		start := now
		if sub.Status == domain.SubscriptionActive && sub.EndDate.After(now) {
			start = sub.EndDate
		}
		end = start.AddDate(0, 1, 0)
		if err := q.ActivateSubscription(ctx, sub.ID, start, end, now); err != nil {
			return err
		}
		sub.Status, sub.StartDate, sub.EndDate = domain.SubscriptionActive, start, end

		if err := q.SyncClient(ctx, client.ID, sub.Status.ClientStatus(), sub.Plan, &end); err != nil {
			return err
		}
		if _, err := q.SetInstancesStatus(ctx, client.ID, domain.InstanceActive); err != nil {
			return err
		}

		next, err := l.issuePayment(ctx, q, client, *sub, domain.Day(end, l.loc), now)
		if err != nil {
			return err
		}
		result.Next = next

		_, err = q.EnqueueNotification(ctx, domain.OutboxMessage{
			Phone:     client.Phone,
			Message:   notification.PaymentConfirmed(client.Name, sub.Plan, end, l.loc),
			Kind:      domain.NoticePaymentConfirmed,
			PaymentID: &paymentID,
			CreatedAt: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	if !result.Applied {
		slog.Info("Pagamento já processado, confirmação ignorada", "payment_id", paymentID, "status", result.Payment.Status)
		return &result, nil
	}

	metrics.PaymentsConfirmed.Inc()
	slog.Info("Pagamento confirmado",
		"payment_id", paymentID, "subscription_id", result.Payment.SubscriptionID,
		"active_until", end, "next_payment_id", result.Next.ID)
	l.kick()
	return &result, nil
}

// CancelSubscription cancela as assinaturas vivas do cliente. O histórico de
// pagamentos é mantido; cobranças em aberto passam a failed.
func (l *Ledger) CancelSubscription(ctx context.Context, clientID int64, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = cancelByRequest
	}

	cancelled := 0
	err := l.store.WithTx(ctx, func(q *repository.Queries) error {
		client, err := q.GetClient(ctx, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return domain.ErrClientNotFound
		}

		now := l.now()
		live, err := q.ListSubscriptions(ctx, clientID, domain.SubscriptionActive, domain.SubscriptionPending)
		if err != nil {
			return err
		}
		for _, s := range live {
			if _, err := q.FailPendingPayments(ctx, s.ID); err != nil {
				return err
			}
			changed, err := q.TransitionSubscription(ctx, s.ID, domain.SubscriptionCancelled, reason, now,
				domain.SubscriptionActive, domain.SubscriptionPending)
			if err != nil {
				return err
			}
			if changed {
				cancelled++
			}
		}

		if err := q.SetClientStatus(ctx, clientID, domain.SubscriptionCancelled.ClientStatus()); err != nil {
			return err
		}
		_, err = q.SetInstancesStatus(ctx, clientID, domain.InstanceSuspended)
		return err
	})
	if err != nil {
		return err
	}

	slog.Info("Assinatura cancelada", "client_id", clientID, "subscriptions", cancelled, "reason", reason)
	return nil
}

// Expire encerra uma assinatura cujo pagamento venceu além da carência e
// suspende o cliente e suas landings.
func (l *Ledger) Expire(ctx context.Context, subscriptionID int64) error {
	var expired bool
	err := l.store.WithTx(ctx, func(q *repository.Queries) error {
		var err error
		expired, err = l.expire(ctx, q, subscriptionID)
		return err
	})
	if err != nil {
		return err
	}
	if expired {
		metrics.Suspensions.Inc()
	}
	return nil
}

func (l *Ledger) expire(ctx context.Context, q *repository.Queries, subscriptionID int64) (bool, error) {
	sub, err := q.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, domain.ErrSubscriptionMissing
	}

	changed, err := q.TransitionSubscription(ctx, subscriptionID, domain.SubscriptionExpired, "", l.now(),
		domain.SubscriptionActive, domain.SubscriptionPending)
	if err != nil || !changed {
		return false, err
	}
	if _, err := q.FailPendingPayments(ctx, subscriptionID); err != nil {
		return false, err
	}
	if err := q.SetClientStatus(ctx, sub.ClientID, domain.SubscriptionExpired.ClientStatus()); err != nil {
		return false, err
	}
	if _, err := q.SetInstancesStatus(ctx, sub.ClientID, domain.InstanceSuspended); err != nil {
		return false, err
	}

	slog.Info("Assinatura expirada, cliente suspenso", "subscription_id", subscriptionID, "client_id", sub.ClientID)
	return true, nil
}

// --- CONSULTAS ---

// Status monta a foto atual do cliente: assinatura mais recente, cobrança em
// aberto e dias restantes (da assinatura ativa ou do período de teste).
func (l *Ledger) Status(ctx context.Context, clientID int64) (*StatusSnapshot, error) {
	client, err := l.GetClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	sub, err := l.store.LatestSubscription(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := l.now()
	snapshot := &StatusSnapshot{Client: *client, Subscription: sub}
	switch {
	case sub != nil && sub.Status == domain.SubscriptionActive:
		snapshot.DaysLeft = domain.DaysLeft(now, sub.EndDate)
	case client.Status == domain.ClientTrial && client.TrialEndsAt != nil:
		snapshot.DaysLeft = domain.DaysLeft(now, *client.TrialEndsAt)
	}
	if sub != nil && sub.Status.Live() {
		if snapshot.PendingPayment, err = l.store.PendingPayment(ctx, sub.ID); err != nil {
			return nil, err
		}
	}
	return snapshot, nil
}

func (l *Ledger) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	p, err := l.store.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrPaymentNotFound
	}
	return p, nil
}

func (l *Ledger) kick() {
	if l.kicker != nil {
		l.kicker.Kick()
	}
}
