package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willjrcristo/revendas-billing/internal/database"
	"github.com/willjrcristo/revendas-billing/internal/domain"
	"github.com/willjrcristo/revendas-billing/internal/repository"
)

func TestWhatsAppNotifier_Send(t *testing.T) {
	t.Run("sucesso - envia número sem + e header apikey", func(t *testing.T) {
		var got sendTextRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/message/sendText/revendas", r.URL.Path)
			assert.Equal(t, "segredo", r.Header.Get("apikey"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusCreated)
		}))
		defer srv.Close()

		n := NewWhatsAppNotifier(WhatsAppConfig{Endpoint: srv.URL + "/", APIKey: "segredo", InstanceID: "revendas"})
		require.NoError(t, n.Send(context.Background(), "+5511999990000", "olá"))
		assert.Equal(t, "5511999990000", got.Number)
		assert.Equal(t, "olá", got.Text)
	})

	t.Run("erro - status diferente de 2xx", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "instance not connected", http.StatusBadRequest)
		}))
		defer srv.Close()

		n := NewWhatsAppNotifier(WhatsAppConfig{Endpoint: srv.URL, APIKey: "k", InstanceID: "i"})
		err := n.Send(context.Background(), "+5511999990000", "olá")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
		assert.Contains(t, err.Error(), "instance not connected")
	})
}

// fakeNotifier falha para os telefones marcados em failFor.
type fakeNotifier struct {
	mu      sync.Mutex
	failFor map[string]bool
	sent    []string
}

func (f *fakeNotifier) Send(_ context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[phone] {
		return errors.New("provedor indisponível")
	}
	f.sent = append(f.sent, phone+": "+message)
	return nil
}

func newStore(t *testing.T) *repository.Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return repository.NewSQLiteRepository(db)
}

func enqueue(t *testing.T, s *repository.Store, phone, msg string) {
	t.Helper()
	_, err := s.EnqueueNotification(context.Background(), domain.OutboxMessage{
		Phone: phone, Message: msg, Kind: domain.ReminderDueToday, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
}

func TestDispatcher_Flush(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	notifier := &fakeNotifier{failFor: map[string]bool{"+5511000000002": true}}
	d := NewDispatcher(s, notifier, WithMaxAttempts(2))

	enqueue(t, s, "+5511000000001", "a")
	enqueue(t, s, "+5511000000002", "b")
	enqueue(t, s, "+5511000000003", "c")

	sent, failed, err := d.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"+5511000000001: a", "+5511000000003: c"}, notifier.sent)

	// A mensagem que falhou continua na fila até esgotar as tentativas.
	sent, failed, err = d.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Equal(t, 1, failed)

	sent, failed, err = d.Flush(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, failed)
}

func TestDispatcher_RunAcordaComKick(t *testing.T) {
	s := newStore(t)
	notifier := &fakeNotifier{}
	d := NewDispatcher(s, notifier, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	enqueue(t, s, "+5511000000009", "oi")
	d.Kick()
	d.Kick() // não bloqueia com um pedido já pendente

	assert.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.sent) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestMessages(t *testing.T) {
	amount := decimal.RequireFromString("9.99")

	msg := DueIn3Days("Zé", amount, "2026-03-13", "000201PIX")
	assert.Contains(t, msg, "R$ 9,99")
	assert.Contains(t, msg, "13/03/2026")
	assert.Contains(t, msg, "000201PIX")

	assert.Contains(t, DueToday("Zé", decimal.RequireFromString("99"), "PIX"), "R$ 99,00")
	assert.Contains(t, Suspended("Zé"), "suspensa")

	confirmed := PaymentConfirmed("Zé", domain.PlanBasico, time.Date(2026, 4, 10, 2, 0, 0, 0, time.UTC), time.FixedZone("BRT", -3*3600))
	assert.Contains(t, confirmed, "09/04/2026")
	assert.Contains(t, confirmed, domain.PlanBasico.Label())
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Send(context.Background(), "+5511000000000", "x"))
}
