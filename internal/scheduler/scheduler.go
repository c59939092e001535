// Package scheduler roda a varredura diária de vencimentos: avisa 3 dias antes,
// no dia do vencimento, e suspende o cliente 3 dias depois sem pagamento.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/willjrcristo/revendas-billing/internal/domain"
	"github.com/willjrcristo/revendas-billing/internal/metrics"
	"github.com/willjrcristo/revendas-billing/internal/notification"
	"github.com/willjrcristo/revendas-billing/internal/service"
)

const (
	DefaultSpec        = "@every 1h"
	DefaultWindowStart = 9
	DefaultWindowEnd   = 18

	reminderOffset = 3
	suspendOffset  = -3
	runTimeout     = 5 * time.Minute
)

// Flusher entrega as notificações enfileiradas pela varredura.
type Flusher interface {
	Flush(ctx context.Context) (sent, failed int, err error)
}

// Config controla quando a varredura automática roda. A janela é [WindowStart, WindowEnd)
// em horas do fuso do ledger.
type Config struct {
	Spec        string
	WindowStart int
	WindowEnd   int
}

// Report resume uma execução da varredura.
type Report struct {
	Day        string `json:"day"`
	Forced     bool   `json:"forced"`
	Skipped    bool   `json:"skipped"`
	DueIn3Days int    `json:"due_in_3_days"`
	DueToday   int    `json:"due_today"`
	Suspended  int    `json:"suspended"`
	Errors     int    `json:"errors"`

	SuspensionNotices int `json:"suspension_notices"`
}

type Scheduler struct {
	ledger  *service.Ledger
	flusher Flusher
	cfg     Config
	now     func() time.Time
	cron    *cron.Cron

	mu sync.Mutex
}

func New(ledger *service.Ledger, flusher Flusher, cfg Config) *Scheduler {
	if cfg.Spec == "" {
		cfg.Spec = DefaultSpec
	}
	if cfg.WindowStart == 0 && cfg.WindowEnd == 0 {
		cfg.WindowStart, cfg.WindowEnd = DefaultWindowStart, DefaultWindowEnd
	}
	return &Scheduler{
		ledger:  ledger,
		flusher: flusher,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start agenda a varredura no cron. Execuções sobrepostas são descartadas.
func (s *Scheduler) Start() error {
	s.cron = cron.New(
		cron.WithLocation(s.ledger.Location()),
		cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
	)
	if _, err := s.cron.AddFunc(s.cfg.Spec, s.tick); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("Agendador de cobranças iniciado",
		"spec", s.cfg.Spec, "window_start", s.cfg.WindowStart, "window_end", s.cfg.WindowEnd)
	return nil
}

// Stop para o cron; o contexto devolvido termina quando a execução corrente acaba.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	return s.cron.Stop()
}

func (s *Scheduler) tick() {
	if !s.InWindow(s.now()) {
		slog.Debug("Fora da janela de operação, varredura adiada")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.Run(ctx, false); err != nil {
		slog.Error("Erro na varredura de vencimentos", "error", err)
	}
}

// InWindow indica se t cai dentro da janela de operação.
func (s *Scheduler) InWindow(t time.Time) bool {
	h := t.In(s.ledger.Location()).Hour()
	return h >= s.cfg.WindowStart && h < s.cfg.WindowEnd
}

// Run executa a varredura do dia. Sem force, uma segunda execução no mesmo dia
// não faz nada; com force o marcador é ignorado, mas cada aviso continua sendo
// enviado no máximo uma vez por pagamento.
func (s *Scheduler) Run(ctx context.Context, force bool) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := s.ledger.Today()
	report := &Report{Day: today, Forced: force}

	err := s.ledger.Sweep(ctx, func(tx *service.SweepTx) error {
		last, err := tx.LastRunDate(ctx)
		if err != nil {
			return err
		}
		if !force && last == today {
			report.Skipped = true
			return nil
		}

		s.remind(ctx, tx, report, reminderOffset, domain.ReminderDueIn3Days, &report.DueIn3Days)
		s.remind(ctx, tx, report, 0, domain.ReminderDueToday, &report.DueToday)
		s.suspend(ctx, tx, report)

		// Com erros o marcador não avança: a próxima execução tenta de novo e os
		// lembretes já registrados não se repetem.
		if report.Errors > 0 {
			return nil
		}
		return tx.MarkRun(ctx, today)
	})
	if err != nil {
		metrics.SweepRuns.WithLabelValues("failed").Inc()
		return nil, err
	}

	if report.Skipped {
		metrics.SweepRuns.WithLabelValues("skipped").Inc()
		slog.Info("Varredura já executada hoje", "day", today)
		return report, nil
	}

	metrics.SweepRuns.WithLabelValues("ran").Inc()
	metrics.RemindersQueued.WithLabelValues(string(domain.ReminderDueIn3Days)).Add(float64(report.DueIn3Days))
	metrics.RemindersQueued.WithLabelValues(string(domain.ReminderDueToday)).Add(float64(report.DueToday))
	metrics.RemindersQueued.WithLabelValues(string(domain.ReminderSuspended)).Add(float64(report.SuspensionNotices))
	metrics.Suspensions.Add(float64(report.Suspended))
	slog.Info("Varredura de vencimentos concluída",
		"day", today, "forced", force, "due_in_3_days", report.DueIn3Days,
		"due_today", report.DueToday, "suspended", report.Suspended, "errors", report.Errors)

	if s.flusher != nil {
		if _, _, err := s.flusher.Flush(ctx); err != nil {
			slog.Error("Erro ao enviar notificações da varredura", "error", err)
		}
	}
	return report, nil
}

// remind enfileira o aviso `kind` para as cobranças que vencem em hoje+offset.
// Registro do lembrete e mensagem no outbox entram juntos ou nenhum dos dois.
func (s *Scheduler) remind(ctx context.Context, tx *service.SweepTx, report *Report, offset int, kind domain.ReminderKind, counter *int) {
	day, err := domain.AddDays(report.Day, offset)
	if err != nil {
		report.Errors++
		return
	}
	due, err := tx.PendingDueOn(ctx, day)
	if err != nil {
		report.Errors++
		slog.Error("Erro ao buscar cobranças a vencer", "kind", kind, "due_date", day, "error", err)
		return
	}

	for _, d := range due {
		if d.ClientStatus == domain.ClientSuspended {
			continue
		}
		queued := false
		err := tx.Item(ctx, func() error {
			fresh, err := tx.RecordReminder(ctx, d.Payment.ID, kind, report.Day)
			if err != nil || !fresh {
				return err
			}
			msg := notification.DueToday(d.ClientName, d.Payment.Amount, d.Payment.PixCode)
			if kind == domain.ReminderDueIn3Days {
				msg = notification.DueIn3Days(d.ClientName, d.Payment.Amount, d.Payment.DueDate, d.Payment.PixCode)
			}
			if err := tx.Notify(ctx, d.ClientPhone, msg, kind, d.Payment.ID); err != nil {
				return err
			}
			queued = true
			return nil
		})
		if err != nil {
			report.Errors++
			slog.Error("Erro ao enfileirar lembrete", "payment_id", d.Payment.ID, "kind", kind, "error", err)
			continue
		}
		if queued {
			*counter++
		}
	}
}

// suspend expira as assinaturas cujas cobranças venceram há 3 dias e avisa o
// cliente. Uma falha em qualquer passo desfaz a suspensão daquele cliente.
func (s *Scheduler) suspend(ctx context.Context, tx *service.SweepTx, report *Report) {
	day, err := domain.AddDays(report.Day, suspendOffset)
	if err != nil {
		report.Errors++
		return
	}
	overdue, err := tx.PendingDueOn(ctx, day)
	if err != nil {
		report.Errors++
		slog.Error("Erro ao buscar cobranças vencidas", "due_date", day, "error", err)
		return
	}

	for _, d := range overdue {
		var expired, notified bool
		err := tx.Item(ctx, func() error {
			var err error
			if expired, err = tx.Expire(ctx, d.Payment.SubscriptionID); err != nil || !expired {
				return err
			}
			fresh, err := tx.RecordReminder(ctx, d.Payment.ID, domain.ReminderSuspended, report.Day)
			if err != nil || !fresh {
				return err
			}
			if err := tx.Notify(ctx, d.ClientPhone, notification.Suspended(d.ClientName), domain.ReminderSuspended, d.Payment.ID); err != nil {
				return err
			}
			notified = true
			return nil
		})
		if err != nil {
			report.Errors++
			slog.Error("Erro ao suspender cliente", "client_id", d.Payment.ClientID, "payment_id", d.Payment.ID, "error", err)
			continue
		}
		if expired {
			report.Suspended++
		}
		if notified {
			report.SuspensionNotices++
		}
	}
}
