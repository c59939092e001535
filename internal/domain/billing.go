package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type ClientStatus string

const (
	ClientTrial     ClientStatus = "trial"
	ClientActive    ClientStatus = "active"
	ClientPending   ClientStatus = "pending"
	ClientSuspended ClientStatus = "suspended"
	ClientCancelled ClientStatus = "cancelled"
)

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPending   SubscriptionStatus = "pending"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// ClientStatus é o reflexo da assinatura no cadastro do cliente.
func (s SubscriptionStatus) ClientStatus() ClientStatus {
	switch s {
	case SubscriptionActive:
		return ClientActive
	case SubscriptionPending:
		return ClientPending
	case SubscriptionExpired:
		return ClientSuspended
	default:
		return ClientCancelled
	}
}

// Live indica os estados que contam para "no máximo uma assinatura viva por cliente".
func (s SubscriptionStatus) Live() bool {
	return s == SubscriptionActive || s == SubscriptionPending
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

type InstanceStatus string

const (
	InstanceActive    InstanceStatus = "active"
	InstanceSuspended InstanceStatus = "suspended"
)

// Client é a conta de uma revenda.
type Client struct {
	ID                 int64        `json:"id"`
	Name               string       `json:"name"`
	Phone              string       `json:"phone"`
	Plan               Plan         `json:"plan"`
	Status             ClientStatus `json:"status"`
	TrialEndsAt        *time.Time   `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt *time.Time   `json:"subscription_ends_at,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}

// Subscription cobre um período de cobrança de um cliente num plano.
type Subscription struct {
	ID            int64              `json:"id"`
	ClientID      int64              `json:"client_id"`
	Plan          Plan               `json:"plan"`
	Status        SubscriptionStatus `json:"status"`
	StartDate     time.Time          `json:"start_date"`
	EndDate       time.Time          `json:"end_date"`
	LastPaymentID *int64             `json:"last_payment_id,omitempty"`
	CancelReason  string             `json:"cancel_reason,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Payment é uma cobrança PIX. DueDate está no formato DateLayout.
type Payment struct {
	ID             int64           `json:"id"`
	ClientID       int64           `json:"client_id"`
	SubscriptionID int64           `json:"subscription_id"`
	Amount         decimal.Decimal `json:"amount"`
	Plan           Plan            `json:"plan"`
	Status         PaymentStatus   `json:"status"`
	PixCode        string          `json:"pix_code"`
	PixQRURL       string          `json:"qr_code"`
	TxID           string          `json:"tx_id"`
	DueDate        string          `json:"due_date"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Instance é a landing hospedada para a revenda; acompanha a suspensão do cliente.
type Instance struct {
	ID        int64          `json:"id"`
	ClientID  int64          `json:"client_id"`
	Subdomain string         `json:"subdomain"`
	Status    InstanceStatus `json:"status"`
}

// ReminderKind identifica cada aviso da varredura diária.
type ReminderKind string

const (
	ReminderDueIn3Days ReminderKind = "due_in_3_days"
	ReminderDueToday   ReminderKind = "due_today"
	ReminderSuspended  ReminderKind = "suspended"
	// Não é lembrete da varredura, mas passa pela mesma fila de envio.
	NoticePaymentConfirmed ReminderKind = "payment_confirmed"
)

// DuePayment é um pagamento pendente junto dos dados do cliente necessários
// para avisá-lo.
type DuePayment struct {
	Payment      Payment
	ClientName   string
	ClientPhone  string
	ClientStatus ClientStatus
}

type OutboxStatus string

const (
	OutboxPending OutboxStatus = "pending"
	OutboxSent    OutboxStatus = "sent"
	OutboxFailed  OutboxStatus = "failed"
)

// OutboxMessage é uma notificação gravada na mesma transação que a originou
// e enviada só depois do commit.
type OutboxMessage struct {
	ID        int64
	Phone     string
	Message   string
	Kind      ReminderKind
	PaymentID *int64
	Status    OutboxStatus
	Attempts  int
	LastError string
	CreatedAt time.Time
	SentAt    *time.Time
}
