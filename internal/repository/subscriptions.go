package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/willjrcristo/revendas-billing/internal/domain"
)

const subscriptionColumns = "id, client_id, plan, status, start_date, end_date, last_payment_id, cancel_reason, created_at, updated_at"

func scanSubscription(row interface{ Scan(...any) error }) (*domain.Subscription, error) {
	var (
		s           domain.Subscription
		lastPayment sql.NullInt64
	)
	err := row.Scan(&s.ID, &s.ClientID, &s.Plan, &s.Status, &s.StartDate, &s.EndDate,
		&lastPayment, &s.CancelReason, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if lastPayment.Valid {
		id := lastPayment.Int64
		s.LastPaymentID = &id
	}
	return &s, nil
}

// CreateSubscription insere a assinatura. Violar o índice de "uma assinatura
// viva por cliente" vira ErrSubscriptionActive.
func (r *Queries) CreateSubscription(ctx context.Context, s domain.Subscription) (int64, error) {
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO subscriptions (client_id, plan, status, start_date, end_date, cancel_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		s.ClientID, s.Plan, s.Status, s.StartDate.UTC(), s.EndDate.UTC(), s.CreatedAt.UTC(), s.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, domain.ErrSubscriptionActive
		}
		return 0, storageErr("insert subscription", err)
	}
	return res.LastInsertId()
}

// GetSubscription devolve nil, nil quando a assinatura não existe.
func (r *Queries) GetSubscription(ctx context.Context, id int64) (*domain.Subscription, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+subscriptionColumns+" FROM subscriptions WHERE id = ?", id)
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("select subscription", err)
	}
	return s, nil
}

// LatestSubscription devolve a assinatura mais recente do cliente (ou nil).
func (r *Queries) LatestSubscription(ctx context.Context, clientID int64) (*domain.Subscription, error) {
	row := r.q.QueryRowContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE client_id = ? ORDER BY id DESC LIMIT 1", clientID)
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, storageErr("select subscription", err)
	}
	return s, nil
}

// ListSubscriptions devolve as assinaturas do cliente nos status informados
// (todos, se nenhum for passado), da mais antiga para a mais nova.
func (r *Queries) ListSubscriptions(ctx context.Context, clientID int64, statuses ...domain.SubscriptionStatus) ([]domain.Subscription, error) {
	rows, err := r.q.QueryContext(ctx,
		"SELECT "+subscriptionColumns+" FROM subscriptions WHERE client_id = ? ORDER BY id", clientID)
	if err != nil {
		return nil, storageErr("select subscriptions", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, storageErr("scan subscription", err)
		}
		if len(statuses) == 0 || containsStatus(statuses, s.Status) {
			subs = append(subs, *s)
		}
	}
	return subs, rows.Err()
}

func containsStatus(statuses []domain.SubscriptionStatus, s domain.SubscriptionStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

// TransitionSubscription move a assinatura para `to` apenas se o status atual
// estiver em `from`. Devolve false quando nada mudou.
func (r *Queries) TransitionSubscription(ctx context.Context, id int64, to domain.SubscriptionStatus, reason string, now time.Time, from ...domain.SubscriptionStatus) (bool, error) {
	query := "UPDATE subscriptions SET status = ?, cancel_reason = ?, updated_at = ? WHERE id = ?"
	args := []any{to, reason, now.UTC(), id}
	if len(from) > 0 {
		query += " AND status IN (" + placeholders(len(from)) + ")"
		for _, f := range from {
			args = append(args, f)
		}
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return false, domain.ErrSubscriptionActive
		}
		return false, storageErr("update subscription", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ActivateSubscription abre uma nova janela de vigência para a assinatura.
func (r *Queries) ActivateSubscription(ctx context.Context, id int64, start, end, now time.Time) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE subscriptions SET status = ?, start_date = ?, end_date = ?, updated_at = ? WHERE id = ?",
		domain.SubscriptionActive, start.UTC(), end.UTC(), now.UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSubscriptionActive
		}
		return storageErr("activate subscription", err)
	}
	return nil
}

// SetLastPayment liga a assinatura à cobrança mais recente.
func (r *Queries) SetLastPayment(ctx context.Context, subscriptionID, paymentID int64, now time.Time) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE subscriptions SET last_payment_id = ?, updated_at = ? WHERE id = ?",
		paymentID, now.UTC(), subscriptionID)
	if err != nil {
		return storageErr("update subscription", err)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, 0, 2*n-1)
	for i := 0; i < n; i++ {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, '?')
	}
	return string(b)
}
