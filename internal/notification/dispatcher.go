package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/willjrcristo/revendas-billing/internal/metrics"
	"github.com/willjrcristo/revendas-billing/internal/repository"
)

const (
	defaultMaxAttempts = 3
	defaultBatchSize   = 50
	defaultInterval    = time.Minute
)

// Dispatcher envia as mensagens do outbox. Falhas ficam registradas na própria
// fila e nunca voltam para quem fez a transição de cobrança.
type Dispatcher struct {
	store       *repository.Store
	notifier    Notifier
	maxAttempts int
	batchSize   int
	interval    time.Duration
	now         func() time.Time

	mu   sync.Mutex
	kick chan struct{}
}

type DispatcherOption func(*Dispatcher)

func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

func WithInterval(interval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

func NewDispatcher(store *repository.Store, notifier Notifier, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		notifier:    notifier,
		maxAttempts: defaultMaxAttempts,
		batchSize:   defaultBatchSize,
		interval:    defaultInterval,
		now:         time.Now,
		kick:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Kick pede um Flush ao loop de Run sem bloquear quem chamou.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Flush tenta entregar um lote de mensagens pendentes. Cada falha é registrada
// e o lote continua.
func (d *Dispatcher) Flush(ctx context.Context) (sent, failed int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	msgs, err := d.store.PendingNotifications(ctx, d.batchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, m := range msgs {
		if sendErr := d.notifier.Send(ctx, m.Phone, m.Message); sendErr != nil {
			failed++
			metrics.Notifications.WithLabelValues("failed").Inc()
			slog.Warn("Falha ao enviar notificação", "outbox_id", m.ID, "kind", m.Kind, "attempt", m.Attempts+1, "error", sendErr)
			if err := d.store.MarkNotificationFailed(ctx, m.ID, sendErr.Error(), d.maxAttempts); err != nil {
				slog.Error("Erro ao registrar falha de notificação", "outbox_id", m.ID, "error", err)
			}
			continue
		}

		sent++
		metrics.Notifications.WithLabelValues("sent").Inc()
		if err := d.store.MarkNotificationSent(ctx, m.ID, d.now()); err != nil {
			slog.Error("Erro ao marcar notificação como enviada", "outbox_id", m.ID, "error", err)
		}
	}
	return sent, failed, nil
}

// Run esvazia o outbox periodicamente e sempre que Kick é chamado, até ctx acabar.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.kick:
		}
		if _, _, err := d.Flush(ctx); err != nil {
			slog.Error("Erro ao processar outbox de notificações", "error", err)
		}
	}
}
