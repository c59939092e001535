// Package notification é a porta de avisos ao cliente (WhatsApp) e o
// despachante que esvazia o outbox depois que as transações são gravadas.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Notifier entrega uma mensagem a um telefone E.164. nil significa entregue.
type Notifier interface {
	Send(ctx context.Context, phone, message string) error
}

// WhatsAppConfig são as opções reconhecidas do provedor (Evolution API).
type WhatsAppConfig struct {
	Endpoint   string
	APIKey     string
	InstanceID string
	Timeout    time.Duration
}

// WhatsAppNotifier envia texto pela Evolution API:
// POST {endpoint}/message/sendText/{instance} com o header apikey.
type WhatsAppNotifier struct {
	cfg    WhatsAppConfig
	client *http.Client
}

func NewWhatsAppNotifier(cfg WhatsAppConfig) *WhatsAppNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WhatsAppNotifier{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

func (n *WhatsAppNotifier) Send(ctx context.Context, phone, message string) error {
	body, err := json.Marshal(sendTextRequest{
		Number: strings.TrimPrefix(phone, "+"),
		Text:   message,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/message/sendText/%s", strings.TrimRight(n.cfg.Endpoint, "/"), n.cfg.InstanceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", n.cfg.APIKey)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("whatsapp: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// LogNotifier apenas registra a mensagem. Usado quando nenhum provedor está configurado.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, phone, message string) error {
	slog.Info("Notificação (sem provedor configurado)", "phone", phone, "message", message)
	return nil
}
