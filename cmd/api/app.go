package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/willjrcristo/revendas-billing/docs" // Importa a pasta docs gerada
	"github.com/willjrcristo/revendas-billing/internal/config"
	"github.com/willjrcristo/revendas-billing/internal/database"
	"github.com/willjrcristo/revendas-billing/internal/gateway"
	httphandler "github.com/willjrcristo/revendas-billing/internal/handler/http"
	"github.com/willjrcristo/revendas-billing/internal/notification"
	"github.com/willjrcristo/revendas-billing/internal/repository"
	"github.com/willjrcristo/revendas-billing/internal/scheduler"
	"github.com/willjrcristo/revendas-billing/internal/service"
)

// app reúne as camadas já ligadas: DB -> Repository -> Ledger/Gateway -> Scheduler -> Handler.
type app struct {
	cfg        *config.Config
	db         *sql.DB
	ledger     *service.Ledger
	gateway    *gateway.PixGateway
	dispatcher *notification.Dispatcher
	scheduler  *scheduler.Scheduler
}

func newApp(cfg *config.Config) (*app, error) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("💾 Banco de dados pronto", "path", cfg.DatabasePath)

	store := repository.NewSQLiteRepository(db)

	var notifier notification.Notifier = notification.LogNotifier{}
	if cfg.WhatsAppEnabled() {
		notifier = notification.NewWhatsAppNotifier(notification.WhatsAppConfig{
			Endpoint:   cfg.WhatsAppEndpoint,
			APIKey:     cfg.WhatsAppAPIKey,
			InstanceID: cfg.WhatsAppInstanceID,
		})
	} else {
		slog.Warn("WhatsApp não configurado, notificações irão apenas para o log")
	}
	dispatcher := notification.NewDispatcher(store, notifier, notification.WithMaxAttempts(cfg.NotifyMaxAttempts))

	gw := gateway.NewPixGateway(
		gateway.Merchant{Key: cfg.PixKey, Name: cfg.PixMerchantName, City: cfg.PixMerchantCity},
		gateway.QRServerRenderer{BaseURL: cfg.QRBaseURL},
	)
	ledger := service.NewLedger(store, gw,
		service.WithLocation(cfg.Location),
		service.WithKicker(dispatcher),
	)
	gw.Bind(ledger)

	sched := scheduler.New(ledger, dispatcher, scheduler.Config{
		Spec:        cfg.SchedulerSpec,
		WindowStart: cfg.SchedulerWindowStart,
		WindowEnd:   cfg.SchedulerWindowEnd,
	})

	return &app{
		cfg:        cfg,
		db:         db,
		ledger:     ledger,
		gateway:    gw,
		dispatcher: dispatcher,
		scheduler:  sched,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func (a *app) router() http.Handler {
	h := httphandler.NewBillingHandler(a.ledger, a.gateway, a.scheduler, httphandler.Options{
		WebhookSecret: a.cfg.WebhookSecret,
		AdminAPIKey:   a.cfg.AdminAPIKey,
	})
	if a.cfg.WebhookSecret == "" {
		slog.Warn("WEBHOOK_SECRET não definido, assinatura dos webhooks não será verificada")
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(prometheusMiddleware)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("API de cobrança das revendas está no ar! 🚀"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// http://localhost:8080/swagger/index.html
	r.Get("/swagger/*", httpSwagger.WrapHandler)

	r.Mount("/clients", h.ClientRoutes())
	r.Mount("/subscription", h.SubscriptionRoutes())
	r.Mount("/admin", h.AdminRoutes())
	slog.Info("🛰️  Rotas de /clients, /subscription e /admin registradas")

	return r
}

// serve sobe o servidor HTTP, o despachante e o agendador, e encerra tudo
// quando ctx é cancelado.
func (a *app) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.dispatcher.Run(ctx)
	if err := a.scheduler.Start(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("✅ Servidor pronto para receber requisições", "port", a.cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		<-a.scheduler.Stop().Done()
		return err
	case <-ctx.Done():
	}

	slog.Info("Encerrando servidor...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	<-a.scheduler.Stop().Done()
	return err
}
