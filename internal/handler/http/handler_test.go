package http

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/willjrcristo/revendas-billing/internal/domain"
	"github.com/willjrcristo/revendas-billing/internal/gateway"
	"github.com/willjrcristo/revendas-billing/internal/metrics"
	"github.com/willjrcristo/revendas-billing/internal/scheduler"
	"github.com/willjrcristo/revendas-billing/internal/service"
)

// --- Mocks ---

// MockBillingService deixa cada teste decidir o que o ledger devolve.
type MockBillingService struct {
	CreateClientFn       func(ctx context.Context, in service.NewClient) (*domain.Client, error)
	CreateSubscriptionFn func(ctx context.Context, clientID int64, plan string) (*service.SubscriptionResult, error)
	StatusFn             func(ctx context.Context, clientID int64) (*service.StatusSnapshot, error)
	CancelFn             func(ctx context.Context, clientID int64, reason string) error
	GetPaymentFn         func(ctx context.Context, id int64) (*domain.Payment, error)
}

func (m *MockBillingService) CreateClient(ctx context.Context, in service.NewClient) (*domain.Client, error) {
	return m.CreateClientFn(ctx, in)
}

func (m *MockBillingService) CreateSubscription(ctx context.Context, clientID int64, plan string) (*service.SubscriptionResult, error) {
	return m.CreateSubscriptionFn(ctx, clientID, plan)
}

func (m *MockBillingService) Status(ctx context.Context, clientID int64) (*service.StatusSnapshot, error) {
	return m.StatusFn(ctx, clientID)
}

func (m *MockBillingService) CancelSubscription(ctx context.Context, clientID int64, reason string) error {
	return m.CancelFn(ctx, clientID, reason)
}

func (m *MockBillingService) GetPayment(ctx context.Context, id int64) (*domain.Payment, error) {
	return m.GetPaymentFn(ctx, id)
}

type MockWebhookReporter struct {
	ReportFn func(ctx context.Context, ev gateway.Webhook) (gateway.Outcome, error)
	calls    int
}

func (m *MockWebhookReporter) ReportWebhook(ctx context.Context, ev gateway.Webhook) (gateway.Outcome, error) {
	m.calls++
	return m.ReportFn(ctx, ev)
}

type MockSweepRunner struct {
	RunFn func(ctx context.Context, force bool) (*scheduler.Report, error)
}

func (m *MockSweepRunner) Run(ctx context.Context, force bool) (*scheduler.Report, error) {
	return m.RunFn(ctx, force)
}

func newRouter(h *BillingHandler) chi.Router {
	r := chi.NewRouter()
	r.Mount("/clients", h.ClientRoutes())
	r.Mount("/subscription", h.SubscriptionRoutes())
	r.Mount("/admin", h.AdminRoutes())
	return r
}

func do(router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	case string:
		buf.WriteString(b)
	default:
		json.NewEncoder(&buf).Encode(b)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
	return e
}

// --- Testes ---

func TestBillingHandler_CreateClient(t *testing.T) {
	t.Run("sucesso - 201 com o cliente", func(t *testing.T) {
		mock := &MockBillingService{
			CreateClientFn: func(_ context.Context, in service.NewClient) (*domain.Client, error) {
				assert.Equal(t, "Revenda", in.Name)
				assert.Equal(t, "11999990000", in.Phone)
				return &domain.Client{ID: 3, Name: in.Name, Phone: "+5511999990000", Status: domain.ClientTrial}, nil
			},
		}
		router := newRouter(NewBillingHandler(mock, nil, nil, Options{}))

		rr := do(router, "POST", "/clients", map[string]string{"name": "Revenda", "phone": "11999990000"}, nil)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var c domain.Client
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &c))
		assert.Equal(t, int64(3), c.ID)
		assert.Equal(t, domain.ClientTrial, c.Status)
	})

	t.Run("erro - campo obrigatório ausente", func(t *testing.T) {
		router := newRouter(NewBillingHandler(&MockBillingService{}, nil, nil, Options{}))
		rr := do(router, "POST", "/clients", map[string]string{"phone": "11999990000"}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "validation", decodeError(t, rr).Error)
	})

	t.Run("erro - telefone duplicado vira 409", func(t *testing.T) {
		mock := &MockBillingService{
			CreateClientFn: func(context.Context, service.NewClient) (*domain.Client, error) {
				return nil, domain.ErrDuplicateClient
			},
		}
		router := newRouter(NewBillingHandler(mock, nil, nil, Options{}))
		rr := do(router, "POST", "/clients", map[string]string{"name": "X", "phone": "11999990000"}, nil)
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "conflict", decodeError(t, rr).Error)
	})
}

func TestBillingHandler_CreateSubscription(t *testing.T) {
	t.Run("sucesso - plano pago devolve o pix", func(t *testing.T) {
		mock := &MockBillingService{
			CreateSubscriptionFn: func(_ context.Context, clientID int64, plan string) (*service.SubscriptionResult, error) {
				assert.Equal(t, int64(1), clientID)
				assert.Equal(t, "basico", plan)
				return &service.SubscriptionResult{
					Subscription: domain.Subscription{ID: 10, Plan: domain.PlanBasico, Status: domain.SubscriptionPending},
					Payment: &domain.Payment{
						ID: 20, Amount: decimal.RequireFromString("9.99"),
						PixCode: "00020126...63041D3D", PixQRURL: "https://qr/x",
					},
				}, nil
			},
		}
		router := newRouter(NewBillingHandler(mock, nil, nil, Options{}))

		rr := do(router, "POST", "/subscription/create", map[string]any{"client_id": 1, "plan": "basico"}, nil)

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, float64(10), resp["subscription_id"])
		assert.Equal(t, float64(20), resp["payment_id"])
		assert.Equal(t, "00020126...63041D3D", resp["pix_code"])
		assert.Equal(t, "https://qr/x", resp["qr_code"])
		assert.Equal(t, "9.99", resp["amount"])
		assert.Equal(t, "pending", resp["status"])
	})

	t.Run("sucesso - plano gratuito sem pagamento", func(t *testing.T) {
		mock := &MockBillingService{
			CreateSubscriptionFn: func(context.Context, int64, string) (*service.SubscriptionResult, error) {
				return &service.SubscriptionResult{
					Subscription: domain.Subscription{ID: 11, Plan: domain.PlanParceiro, Status: domain.SubscriptionActive},
				}, nil
			},
		}
		router := newRouter(NewBillingHandler(mock, nil, nil, Options{}))

		rr := do(router, "POST", "/subscription/create", map[string]any{"client_id": 1, "plan": "parceiro"}, nil)

		require.Equal(t, http.StatusCreated, rr.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.NotContains(t, resp, "payment_id")
		assert.NotContains(t, resp, "pix_code")
		assert.Equal(t, "0.00", resp["amount"])
		assert.Equal(t, "active", resp["status"])
	})

	errorCases := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"plano inválido", domain.ErrInvalidPlan, http.StatusBadRequest, "invalid_plan"},
		{"cliente inexistente", domain.ErrClientNotFound, http.StatusNotFound, "not_found"},
		{"assinatura ativa", domain.ErrSubscriptionActive, http.StatusConflict, "conflict"},
		{"falha no banco", fmt.Errorf("%w: database is locked", domain.ErrStorage), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range errorCases {
		t.Run("erro - "+tc.name, func(t *testing.T) {
			mock := &MockBillingService{
				CreateSubscriptionFn: func(context.Context, int64, string) (*service.SubscriptionResult, error) {
					return nil, tc.err
				},
			}
			router := newRouter(NewBillingHandler(mock, nil, nil, Options{}))
			rr := do(router, "POST", "/subscription/create", map[string]any{"client_id": 1, "plan": "x"}, nil)

			assert.Equal(t, tc.code, rr.Code)
			e := decodeError(t, rr)
			assert.Equal(t, tc.kind, e.Error)
			if tc.kind == "internal" {
				assert.NotContains(t, e.Message, "database is locked", "detalhes do banco não vazam")
			}
		})
	}

	t.Run("erro - client_id ausente", func(t *testing.T) {
		router := newRouter(NewBillingHandler(&MockBillingService{}, nil, nil, Options{}))
		rr := do(router, "POST", "/subscription/create", map[string]any{"plan": "basico"}, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestBillingHandler_GetStatus(t *testing.T) {
	mock := &MockBillingService{
		StatusFn: func(_ context.Context, id int64) (*service.StatusSnapshot, error) {
			if id != 5 {
				return nil, domain.ErrClientNotFound
			}
			return &service.StatusSnapshot{
				Client:       domain.Client{ID: 5, Status: domain.ClientActive},
				Subscription: &domain.Subscription{ID: 9, Status: domain.SubscriptionActive},
				DaysLeft:     30,
			}, nil
		},
	}
	router := newRouter(NewBillingHandler(mock, nil, nil, Options{}))

	rr := do(router, "GET", "/subscription/status/5", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var snap service.StatusSnapshot
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snap))
	assert.Equal(t, 30, snap.DaysLeft)
	assert.Equal(t, domain.SubscriptionActive, snap.Subscription.Status)

	assert.Equal(t, http.StatusNotFound, do(router, "GET", "/subscription/status/6", nil, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(router, "GET", "/subscription/status/abc", nil, nil).Code)
}

func TestBillingHandler_CancelSubscription(t *testing.T) {
	var gotReason string
	mock := &MockBillingService{
		CancelFn: func(_ context.Context, clientID int64, reason string) error {
			if clientID != 1 {
				return domain.ErrClientNotFound
			}
			gotReason = reason
			return nil
		},
	}
	router := newRouter(NewBillingHandler(mock, nil, nil, Options{}))

	rr := do(router, "POST", "/subscription/cancel", map[string]any{"client_id": 1, "reason": "mudou de ramo"}, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "mudou de ramo", gotReason)

	rr = do(router, "POST", "/subscription/cancel", map[string]any{"client_id": 2}, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestBillingHandler_GetPayment(t *testing.T) {
	mock := &MockBillingService{
		GetPaymentFn: func(_ context.Context, id int64) (*domain.Payment, error) {
			if id != 20 {
				return nil, domain.ErrPaymentNotFound
			}
			return &domain.Payment{ID: 20, Status: domain.PaymentPaid, Amount: decimal.RequireFromString("99")}, nil
		},
	}
	router := newRouter(NewBillingHandler(mock, nil, nil, Options{}))

	rr := do(router, "GET", "/subscription/payment/20", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var p domain.Payment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, domain.PaymentPaid, p.Status)
	assert.True(t, p.Amount.Equal(decimal.NewFromInt(99)))

	assert.Equal(t, http.StatusNotFound, do(router, "GET", "/subscription/payment/21", nil, nil).Code)
}

func signed(payload []byte, secret string) map[string]string {
	now := time.Now()
	sig := hex.EncodeToString(webhook.ComputeSignature(now, payload, secret))
	return map[string]string{gateway.SignatureHeader: fmt.Sprintf("t=%d,v1=%s", now.Unix(), sig)}
}

func TestBillingHandler_HandleWebhook(t *testing.T) {
	const secret = "whsec_teste"
	payload := []byte(`{"payment_id":20,"status":"paid","tx_id":"TX1"}`)

	t.Run("sucesso - aplicado", func(t *testing.T) {
		reporter := &MockWebhookReporter{
			ReportFn: func(_ context.Context, ev gateway.Webhook) (gateway.Outcome, error) {
				assert.Equal(t, gateway.Webhook{PaymentID: 20, Status: "paid", TxID: "TX1"}, ev)
				return gateway.OutcomeApplied, nil
			},
		}
		router := newRouter(NewBillingHandler(nil, reporter, nil, Options{WebhookSecret: secret}))

		rr := do(router, "POST", "/subscription/webhook", payload, signed(payload, secret))

		require.Equal(t, http.StatusOK, rr.Code)
		var resp webhookResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Received)
		assert.True(t, resp.Applied)
	})

	t.Run("sucesso - repetido responde 200 sem aplicar", func(t *testing.T) {
		reporter := &MockWebhookReporter{
			ReportFn: func(context.Context, gateway.Webhook) (gateway.Outcome, error) {
				return gateway.OutcomeStale, nil
			},
		}
		router := newRouter(NewBillingHandler(nil, reporter, nil, Options{}))

		rr := do(router, "POST", "/subscription/webhook", payload, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp webhookResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.True(t, resp.Received)
		assert.False(t, resp.Applied)
		assert.Equal(t, "stale", resp.Outcome)
	})

	t.Run("erro - assinatura inválida", func(t *testing.T) {
		reporter := &MockWebhookReporter{}
		router := newRouter(NewBillingHandler(nil, reporter, nil, Options{WebhookSecret: secret}))

		rejected := metrics.WebhooksReceived.WithLabelValues(metrics.OutcomeRejected)
		before := testutil.ToFloat64(rejected)

		rr := do(router, "POST", "/subscription/webhook", payload, signed(payload, "outro"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Zero(t, reporter.calls)
		assert.Equal(t, before+1, testutil.ToFloat64(rejected))
	})

	t.Run("erro - corpo malformado", func(t *testing.T) {
		reporter := &MockWebhookReporter{}
		router := newRouter(NewBillingHandler(nil, reporter, nil, Options{}))

		assert.Equal(t, http.StatusBadRequest, do(router, "POST", "/subscription/webhook", "{", nil).Code)
		assert.Equal(t, http.StatusBadRequest, do(router, "POST", "/subscription/webhook", `{"status":"paid"}`, nil).Code)
		assert.Zero(t, reporter.calls)
	})

	t.Run("erro - falha de armazenamento devolve 500", func(t *testing.T) {
		reporter := &MockWebhookReporter{
			ReportFn: func(context.Context, gateway.Webhook) (gateway.Outcome, error) {
				return "", fmt.Errorf("%w: commit", domain.ErrStorage)
			},
		}
		router := newRouter(NewBillingHandler(nil, reporter, nil, Options{}))

		rr := do(router, "POST", "/subscription/webhook", payload, nil)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestBillingHandler_VerifyDue(t *testing.T) {
	sweeper := &MockSweepRunner{
		RunFn: func(_ context.Context, force bool) (*scheduler.Report, error) {
			assert.True(t, force)
			return &scheduler.Report{Day: "2026-03-10", Forced: true, DueToday: 2, Suspended: 1}, nil
		},
	}

	t.Run("sem chave configurada a rota fica aberta", func(t *testing.T) {
		router := newRouter(NewBillingHandler(nil, nil, sweeper, Options{}))
		rr := do(router, "POST", "/admin/verify-due", nil, nil)
		require.Equal(t, http.StatusOK, rr.Code)

		var report scheduler.Report
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
		assert.Equal(t, 2, report.DueToday)
		assert.Equal(t, 1, report.Suspended)
	})

	t.Run("com chave configurada exige o header", func(t *testing.T) {
		router := newRouter(NewBillingHandler(nil, nil, sweeper, Options{AdminAPIKey: "s3nha"}))

		assert.Equal(t, http.StatusUnauthorized, do(router, "POST", "/admin/verify-due", nil, nil).Code)
		assert.Equal(t, http.StatusUnauthorized,
			do(router, "POST", "/admin/verify-due", nil, map[string]string{AdminKeyHeader: "errada"}).Code)
		assert.Equal(t, http.StatusOK,
			do(router, "POST", "/admin/verify-due", nil, map[string]string{AdminKeyHeader: "s3nha"}).Code)
	})
}
