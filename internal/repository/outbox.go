package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/willjrcristo/revendas-billing/internal/domain"
)

// --- LEMBRETES ---

// RecordReminder registra que o aviso `kind` do pagamento foi emitido.
// Devolve false se ele já havia sido registrado antes.
func (r *Queries) RecordReminder(ctx context.Context, paymentID int64, kind domain.ReminderKind, day string) (bool, error) {
	res, err := r.q.ExecContext(ctx,
		"INSERT OR IGNORE INTO reminders (payment_id, kind, sent_on) VALUES (?, ?, ?)",
		paymentID, kind, day)
	if err != nil {
		return false, storageErr("insert reminder", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// --- MARCADOR DA VARREDURA ---

// LastSweepDate devolve o dia da última varredura concluída ("" se nunca rodou).
func (r *Queries) LastSweepDate(ctx context.Context) (string, error) {
	var day string
	err := r.q.QueryRowContext(ctx, "SELECT last_run_date FROM sweep_state WHERE id = 1").Scan(&day)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", storageErr("select sweep state", err)
	}
	return day, nil
}

func (r *Queries) SetLastSweepDate(ctx context.Context, day string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO sweep_state (id, last_run_date) VALUES (1, ?)
		 ON CONFLICT (id) DO UPDATE SET last_run_date = excluded.last_run_date`, day)
	if err != nil {
		return storageErr("update sweep state", err)
	}
	return nil
}

// --- OUTBOX DE NOTIFICAÇÕES ---

func (r *Queries) EnqueueNotification(ctx context.Context, m domain.OutboxMessage) (int64, error) {
	var paymentID sql.NullInt64
	if m.PaymentID != nil {
		paymentID = sql.NullInt64{Int64: *m.PaymentID, Valid: true}
	}
	res, err := r.q.ExecContext(ctx,
		"INSERT INTO outbox (phone, message, kind, payment_id, status, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		m.Phone, m.Message, m.Kind, paymentID, domain.OutboxPending, m.CreatedAt.UTC())
	if err != nil {
		return 0, storageErr("insert outbox", err)
	}
	return res.LastInsertId()
}

// PendingNotifications devolve até limit mensagens ainda não entregues, na ordem de criação.
func (r *Queries) PendingNotifications(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, phone, message, kind, payment_id, status, attempts, last_error, created_at, sent_at
		   FROM outbox WHERE status = ? ORDER BY id LIMIT ?`, domain.OutboxPending, limit)
	if err != nil {
		return nil, storageErr("select outbox", err)
	}
	defer rows.Close()

	var msgs []domain.OutboxMessage
	for rows.Next() {
		var (
			m         domain.OutboxMessage
			paymentID sql.NullInt64
			sentAt    sql.NullTime
		)
		if err := rows.Scan(&m.ID, &m.Phone, &m.Message, &m.Kind, &paymentID, &m.Status,
			&m.Attempts, &m.LastError, &m.CreatedAt, &sentAt); err != nil {
			return nil, storageErr("scan outbox", err)
		}
		if paymentID.Valid {
			id := paymentID.Int64
			m.PaymentID = &id
		}
		m.SentAt = timePtr(sentAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (r *Queries) MarkNotificationSent(ctx context.Context, id int64, at time.Time) error {
	_, err := r.q.ExecContext(ctx,
		"UPDATE outbox SET status = ?, attempts = attempts + 1, sent_at = ?, last_error = '' WHERE id = ?",
		domain.OutboxSent, at.UTC(), id)
	if err != nil {
		return storageErr("update outbox", err)
	}
	return nil
}

// MarkNotificationFailed conta mais uma tentativa; ao atingir maxAttempts a
// mensagem sai da fila como failed.
func (r *Queries) MarkNotificationFailed(ctx context.Context, id int64, reason string, maxAttempts int) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE outbox
		    SET attempts = attempts + 1,
		        last_error = ?,
		        status = CASE WHEN attempts + 1 >= ? THEN ? ELSE status END
		  WHERE id = ?`,
		reason, maxAttempts, domain.OutboxFailed, id)
	if err != nil {
		return storageErr("update outbox", err)
	}
	return nil
}
