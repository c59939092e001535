package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/willjrcristo/revendas-billing/internal/domain"
)

const paymentColumns = "p.id, p.client_id, p.subscription_id, p.amount, p.plan, p.status, p.pix_code, p.pix_qr_url, p.tx_id, p.due_date, p.paid_at, p.created_at"

func scanPayment(row interface{ Scan(...any) error }, extra ...any) (*domain.Payment, error) {
	var (
		p      domain.Payment
		paidAt sql.NullTime
	)
	dest := []any{&p.ID, &p.ClientID, &p.SubscriptionID, &p.Amount, &p.Plan, &p.Status,
		&p.PixCode, &p.PixQRURL, &p.TxID, &p.DueDate, &paidAt, &p.CreatedAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	p.PaidAt = timePtr(paidAt)
	return &p, nil
}

// CreatePayment insere a cobrança. Um segundo pagamento pendente para a mesma
// assinatura viola o índice único e vira ErrConflict.
func (r *Queries) CreatePayment(ctx context.Context, p domain.Payment) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO payments (client_id, subscription_id, amount, plan, status, pix_code, pix_qr_url, tx_id, due_date, paid_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ClientID, p.SubscriptionID, p.Amount.StringFixed(2), p.Plan, p.Status,
		p.PixCode, p.PixQRURL, p.TxID, p.DueDate, nullTime(p.PaidAt), p.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrConflict
		}
		return 0, storageErr("insert payment", err)
	}
	return res.LastInsertId()
}

// GetPayment devolve nil, nil quando o pagamento não existe.
func (r *Queries) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+paymentColumns+" FROM payments p WHERE p.id = ?", id)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("select payment", err)
	}
	return p, nil
}

// ListPayments devolve o histórico de cobranças do cliente, mais antigas primeiro.
func (r *Queries) ListPayments(ctx context.Context, clientID int64) ([]domain.Payment, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+paymentColumns+" FROM payments p WHERE p.client_id = ? ORDER BY p.id", clientID)
	if err != nil {
		return nil, storageErr("select payments", err)
	}
	defer rows.Close()

	var payments []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, storageErr("scan payment", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}

// PendingPayment devolve a cobrança pendente da assinatura (ou nil).
func (r *Queries) PendingPayment(ctx context.Context, subscriptionID int64) (*domain.Payment, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments p WHERE p.subscription_id = ? AND p.status = ?",
		subscriptionID, domain.PaymentPending)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("select payment", err)
	}
	return p, nil
}

// MarkPaymentPaid só altera a linha enquanto ela estiver pendente; é esse
// predicado que torna a confirmação idempotente sob webhooks repetidos.
func (r *Queries) MarkPaymentPaid(ctx context.Context, id int64, paidAt time.Time) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE payments SET status = ?, paid_at = ? WHERE id = ? AND status = ?",
		domain.PaymentPaid, paidAt.UTC(), id, domain.PaymentPending)
	if err != nil {
		return false, storageErr("update payment", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// FailPendingPayments encerra as cobranças em aberto de uma assinatura.
func (r *Queries) FailPendingPayments(ctx context.Context, subscriptionID int64) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		"UPDATE payments SET status = ? WHERE subscription_id = ? AND status = ?",
		domain.PaymentFailed, subscriptionID, domain.PaymentPending)
	if err != nil {
		return 0, storageErr("update payments", err)
	}
	return res.RowsAffected()
}

// PendingPaymentsDueOn lista as cobranças pendentes com vencimento no dia
// informado, apenas de assinaturas vivas.
func (r *Queries) PendingPaymentsDueOn(ctx context.Context, day string) ([]domain.DuePayment, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+paymentColumns+`, c.name, c.phone, c.status
		   FROM payments p
		   JOIN clients c ON c.id = p.client_id
		   JOIN subscriptions s ON s.id = p.subscription_id
		  WHERE p.status = ? AND p.due_date = ? AND s.status IN (?, ?)
		  ORDER BY p.id`,
		domain.PaymentPending, day, domain.SubscriptionActive, domain.SubscriptionPending)
	if err != nil {
		return nil, storageErr("select due payments", err)
	}
	defer rows.Close()

	var due []domain.DuePayment
	for rows.Next() {
		var d domain.DuePayment
		p, err := scanPayment(rows, &d.ClientName, &d.ClientPhone, &d.ClientStatus)
		if err != nil {
			return nil, storageErr("scan due payment", err)
		}
		d.Payment = *p
		due = append(due, d)
	}
	return due, rows.Err()
}
