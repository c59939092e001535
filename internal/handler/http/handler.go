package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/willjrcristo/revendas-billing/internal/domain"
	"github.com/willjrcristo/revendas-billing/internal/gateway"
	"github.com/willjrcristo/revendas-billing/internal/metrics"
	"github.com/willjrcristo/revendas-billing/internal/scheduler"
	"github.com/willjrcristo/revendas-billing/internal/service"
)

// O handler depende destas interfaces, não das implementações concretas,
// para que os testes possam trocar o ledger, o gateway e o agendador.
type BillingService interface {
	CreateClient(ctx context.Context, in service.NewClient) (*domain.Client, error)
	CreateSubscription(ctx context.Context, clientID int64, plan string) (*service.SubscriptionResult, error)
	Status(ctx context.Context, clientID int64) (*service.StatusSnapshot, error)
	CancelSubscription(ctx context.Context, clientID int64, reason string) error
	GetPayment(ctx context.Context, id int64) (*domain.Payment, error)
}

type WebhookReporter interface {
	ReportWebhook(ctx context.Context, ev gateway.Webhook) (gateway.Outcome, error)
}

type SweepRunner interface {
	Run(ctx context.Context, force bool) (*scheduler.Report, error)
}

// AdminKeyHeader protege as rotas administrativas quando ADMIN_API_KEY está definido.
const AdminKeyHeader = "X-Admin-Key"

const maxWebhookBytes = int64(65536)

type Options struct {
	WebhookSecret string
	AdminAPIKey   string
}

// BillingHandler atende as rotas de clientes, assinaturas e administração.
type BillingHandler struct {
	service  BillingService
	webhooks WebhookReporter
	sweeper  SweepRunner
	validate *validator.Validate
	opts     Options
}

func NewBillingHandler(s BillingService, wh WebhookReporter, sw SweepRunner, opts Options) *BillingHandler {
	return &BillingHandler{
		service:  s,
		webhooks: wh,
		sweeper:  sw,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		opts:     opts,
	}
}

// ClientRoutes é montado em /clients.
func (h *BillingHandler) ClientRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.CreateClient) // POST /clients
	return r
}

// SubscriptionRoutes é montado em /subscription.
func (h *BillingHandler) SubscriptionRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/create", h.CreateSubscription)     // POST /subscription/create
	r.Get("/status/{clientId}", h.GetStatus)    // GET /subscription/status/{clientId}
	r.Post("/webhook", h.HandleWebhook)         // POST /subscription/webhook
	r.Post("/cancel", h.CancelSubscription)     // POST /subscription/cancel
	r.Get("/payment/{paymentId}", h.GetPayment) // GET /subscription/payment/{paymentId}

	return r
}

// AdminRoutes é montado em /admin.
func (h *BillingHandler) AdminRoutes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.requireAdminKey)
	r.Post("/verify-due", h.VerifyDue) // POST /admin/verify-due
	return r
}

// --- DTOs ---

type createClientRequest struct {
	Name  string `json:"name" validate:"required,max=120"`
	Phone string `json:"phone" validate:"required,max=32"`
	Plan  string `json:"plan,omitempty" validate:"omitempty,max=20"`
}

type createSubscriptionRequest struct {
	ClientID int64  `json:"client_id" validate:"required,gt=0"`
	Plan     string `json:"plan" validate:"required"`
}

type subscriptionResponse struct {
	SubscriptionID int64                     `json:"subscription_id"`
	PaymentID      *int64                    `json:"payment_id,omitempty"`
	PixCode        string                    `json:"pix_code,omitempty"`
	QRCode         string                    `json:"qr_code,omitempty"`
	Amount         string                    `json:"amount"`
	Status         domain.SubscriptionStatus `json:"status"`
	EndDate        time.Time                 `json:"end_date"`
}

type webhookRequest struct {
	PaymentID int64  `json:"payment_id" validate:"required,gt=0"`
	Status    string `json:"status" validate:"required"`
	TxID      string `json:"tx_id"`
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Applied  bool   `json:"applied"`
	Outcome  string `json:"outcome"`
}

type cancelRequest struct {
	ClientID int64  `json:"client_id" validate:"required,gt=0"`
	Reason   string `json:"reason,omitempty" validate:"max=500"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// --- CLIENTES ---

// @Summary      Cadastra uma revenda
// @Description  Cria o cliente em período de teste de 7 dias, com uma landing ativa
// @Tags         clientes
// @Accept       json
// @Produce      json
// @Param        cliente  body      createClientRequest  true  "Dados da revenda"
// @Success      201      {object}  domain.Client
// @Failure      400      {object}  errorResponse
// @Failure      409      {object}  errorResponse
// @Failure      500      {object}  errorResponse
// @Router       /clients [post]
func (h *BillingHandler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if !h.decode(w, r.Body, &req) {
		return
	}

	client, err := h.service.CreateClient(r.Context(), service.NewClient{Name: req.Name, Phone: req.Phone, Plan: req.Plan})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, client)
}

// --- ASSINATURAS ---

// @Summary      Cria uma assinatura
// @Description  Plano gratuito fica ativo na hora; planos pagos devolvem a cobrança PIX pendente
// @Tags         assinaturas
// @Accept       json
// @Produce      json
// @Param        assinatura  body      createSubscriptionRequest  true  "Cliente e plano"
// @Success      201         {object}  subscriptionResponse
// @Failure      400         {object}  errorResponse
// @Failure      404         {object}  errorResponse
// @Failure      409         {object}  errorResponse
// @Failure      500         {object}  errorResponse
// @Router       /subscription/create [post]
func (h *BillingHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req createSubscriptionRequest
	if !h.decode(w, r.Body, &req) {
		return
	}

	res, err := h.service.CreateSubscription(r.Context(), req.ClientID, req.Plan)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	resp := subscriptionResponse{
		SubscriptionID: res.Subscription.ID,
		Amount:         res.Subscription.Plan.Price().StringFixed(2),
		Status:         res.Subscription.Status,
		EndDate:        res.Subscription.EndDate,
	}
	if p := res.Payment; p != nil {
		resp.PaymentID = &p.ID
		resp.PixCode = p.PixCode
		resp.QRCode = p.PixQRURL
		resp.Amount = p.Amount.StringFixed(2)
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

// @Summary      Situação da assinatura
// @Description  Cliente, assinatura mais recente, cobrança em aberto e dias restantes
// @Tags         assinaturas
// @Produce      json
// @Param        clientId  path      int  true  "ID do cliente"
// @Success      200       {object}  service.StatusSnapshot
// @Failure      400       {object}  errorResponse
// @Failure      404       {object}  errorResponse
// @Failure      500       {object}  errorResponse
// @Router       /subscription/status/{clientId} [get]
func (h *BillingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "clientId")
	if !ok {
		return
	}

	snapshot, err := h.service.Status(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, snapshot)
}

// @Summary      Cancela a assinatura
// @Tags         assinaturas
// @Accept       json
// @Produce      json
// @Param        cancelamento  body      cancelRequest  true  "Cliente e motivo"
// @Success      200           {object}  map[string]bool
// @Failure      400           {object}  errorResponse
// @Failure      404           {object}  errorResponse
// @Failure      500           {object}  errorResponse
// @Router       /subscription/cancel [post]
func (h *BillingHandler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !h.decode(w, r.Body, &req) {
		return
	}

	if err := h.service.CancelSubscription(r.Context(), req.ClientID, req.Reason); err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

// @Summary      Consulta um pagamento
// @Tags         pagamentos
// @Produce      json
// @Param        paymentId  path      int  true  "ID do pagamento"
// @Success      200        {object}  domain.Payment
// @Failure      400        {object}  errorResponse
// @Failure      404        {object}  errorResponse
// @Failure      500        {object}  errorResponse
// @Router       /subscription/payment/{paymentId} [get]
func (h *BillingHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "paymentId")
	if !ok {
		return
	}

	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, payment)
}

// --- WEBHOOK ---

// HandleWebhook recebe a confirmação de pagamento. Eventos repetidos, de
// pagamentos desconhecidos ou com status não conclusivo respondem 200 para que
// o remetente não reenvie; só falha de armazenamento devolve 500.
//
// @Summary      Webhook de confirmação PIX
// @Tags         pagamentos
// @Accept       json
// @Produce      json
// @Param        Webhook-Signature  header    string          false  "t=<unix>,v1=<hmac> quando WEBHOOK_SECRET está definido"
// @Param        evento             body      webhookRequest  true   "Evento de pagamento"
// @Success      200                {object}  webhookResponse
// @Failure      400                {object}  errorResponse
// @Failure      500                {object}  errorResponse
// @Router       /subscription/webhook [post]
func (h *BillingHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "validation", "Erro ao ler corpo da requisição")
		return
	}

	if err := gateway.VerifySignature(payload, r.Header.Get(gateway.SignatureHeader), h.opts.WebhookSecret); err != nil {
		slog.Warn("Webhook rejeitado", "error", err)
		metrics.WebhooksReceived.WithLabelValues(metrics.OutcomeRejected).Inc()
		respondWithError(w, http.StatusBadRequest, "validation", "Falha na verificação da assinatura do webhook")
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation", "Corpo da requisição inválido")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation", validationMessage(err))
		return
	}

	outcome, err := h.webhooks.ReportWebhook(r.Context(), gateway.Webhook{
		PaymentID: req.PaymentID,
		Status:    req.Status,
		TxID:      req.TxID,
	})
	if err != nil {
		slog.Error("Erro ao processar webhook", "payment_id", req.PaymentID, "error", err)
		respondWithError(w, http.StatusInternalServerError, "internal", "Erro interno ao processar webhook")
		return
	}

	respondWithJSON(w, http.StatusOK, webhookResponse{
		Received: true,
		Applied:  outcome == gateway.OutcomeApplied,
		Outcome:  string(outcome),
	})
}

// --- ADMINISTRAÇÃO ---

// @Summary      Força a varredura de vencimentos
// @Description  Executa lembretes e suspensões do dia ignorando o marcador diário
// @Tags         admin
// @Produce      json
// @Param        X-Admin-Key  header    string  false  "Chave administrativa"
// @Success      200          {object}  scheduler.Report
// @Failure      401          {object}  errorResponse
// @Failure      500          {object}  errorResponse
// @Router       /admin/verify-due [post]
func (h *BillingHandler) VerifyDue(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Run(r.Context(), true)
	if err != nil {
		slog.Error("Erro na varredura manual", "error", err)
		respondWithError(w, http.StatusInternalServerError, "internal", "Erro ao executar varredura")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *BillingHandler) requireAdminKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.AdminAPIKey != "" &&
			subtle.ConstantTimeCompare([]byte(r.Header.Get(AdminKeyHeader)), []byte(h.opts.AdminAPIKey)) != 1 {
			respondWithError(w, http.StatusUnauthorized, "unauthorized", "Chave administrativa inválida")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- FUNÇÕES AUXILIARES ---

// decode lê o JSON do corpo e aplica as regras de validação da struct.
// Em caso de erro já responde 400 e devolve false.
func (h *BillingHandler) decode(w http.ResponseWriter, body io.Reader, dst any) bool {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation", "Corpo da requisição inválido")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return "campo " + fe.Field() + " inválido (" + fe.Tag() + ")"
	}
	return err.Error()
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		respondWithError(w, http.StatusBadRequest, "validation", "ID inválido")
		return 0, false
	}
	return id, true
}

// respondWithDomainError traduz a taxonomia de erros do domínio em status HTTP.
// Erros internos não expõem detalhes do banco.
func respondWithDomainError(w http.ResponseWriter, err error) {
	kind := domain.Kind(err)
	switch kind {
	case "validation", "invalid_plan":
		respondWithError(w, http.StatusBadRequest, kind, err.Error())
	case "not_found":
		respondWithError(w, http.StatusNotFound, kind, err.Error())
	case "conflict":
		respondWithError(w, http.StatusConflict, kind, err.Error())
	default:
		slog.Error("Erro interno", "error", err)
		respondWithError(w, http.StatusInternalServerError, "internal", "Erro interno")
	}
}

func respondWithError(w http.ResponseWriter, code int, kind, message string) {
	slog.Warn("API Error", "code", code, "error", kind, "message", message)
	respondWithJSON(w, code, errorResponse{Error: kind, Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
