package service

import (
	"context"
	"time"

	"github.com/willjrcristo/revendas-billing/internal/domain"
	"github.com/willjrcristo/revendas-billing/internal/repository"
)

// SweepTx é a visão transacional que o ledger oferece ao agendador. Todas as
// leituras e transições da varredura, inclusive o marcador do dia, acontecem
// na mesma transação; o agendador nunca escreve SQL diretamente.
type SweepTx struct {
	ledger *Ledger
	q      *repository.Queries
}

// Sweep executa fn numa transação e, após o commit, acorda o despachante de
// notificações.
func (l *Ledger) Sweep(ctx context.Context, fn func(tx *SweepTx) error) error {
	err := l.store.WithTx(ctx, func(q *repository.Queries) error {
		return fn(&SweepTx{ledger: l, q: q})
	})
	if err != nil {
		return err
	}
	l.kick()
	return nil
}

// Location é o fuso em que os dias de vencimento são calculados.
func (l *Ledger) Location() *time.Location { return l.loc }

// Today devolve o dia civil corrente no fuso do ledger.
func (l *Ledger) Today() string { return domain.Day(l.now(), l.loc) }

// Item aplica fn como uma unidade: se fn falha, tudo que ela escreveu é
// desfeito e o restante da varredura segue na mesma transação.
func (t *SweepTx) Item(ctx context.Context, fn func() error) error {
	return t.q.Savepoint(ctx, "sweep_item", fn)
}

func (t *SweepTx) LastRunDate(ctx context.Context) (string, error) {
	return t.q.LastSweepDate(ctx)
}

func (t *SweepTx) MarkRun(ctx context.Context, day string) error {
	return t.q.SetLastSweepDate(ctx, day)
}

// PendingDueOn lista as cobranças pendentes de assinaturas vivas que vencem em day.
func (t *SweepTx) PendingDueOn(ctx context.Context, day string) ([]domain.DuePayment, error) {
	return t.q.PendingPaymentsDueOn(ctx, day)
}

// RecordReminder devolve false se esse aviso já foi emitido para o pagamento.
func (t *SweepTx) RecordReminder(ctx context.Context, paymentID int64, kind domain.ReminderKind, day string) (bool, error) {
	return t.q.RecordReminder(ctx, paymentID, kind, day)
}

// Expire aplica a mesma transição de Ledger.Expire dentro da transação da varredura.
// Devolve false quando a assinatura já não estava viva.
func (t *SweepTx) Expire(ctx context.Context, subscriptionID int64) (bool, error) {
	return t.ledger.expire(ctx, t.q, subscriptionID)
}

// Notify grava a mensagem no outbox; o envio só acontece depois do commit.
func (t *SweepTx) Notify(ctx context.Context, phone, message string, kind domain.ReminderKind, paymentID int64) error {
	_, err := t.q.EnqueueNotification(ctx, domain.OutboxMessage{
		Phone:     phone,
		Message:   message,
		Kind:      kind,
		PaymentID: &paymentID,
		CreatedAt: t.ledger.now(),
	})
	return err
}
