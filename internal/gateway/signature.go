package gateway

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v78/webhook"
)

// SignatureHeader carrega "t=<unix>,v1=<hmac-sha256>", o mesmo esquema de
// assinatura de webhooks da Stripe.
const SignatureHeader = "Webhook-Signature"

var ErrInvalidSignature = errors.New("assinatura do webhook inválida")

// VerifySignature confere o HMAC do corpo do webhook. Sem segredo configurado
// a verificação fica desligada.
func VerifySignature(payload []byte, header, secret string) error {
	if secret == "" {
		return nil
	}
	if err := webhook.ValidatePayload(payload, header, secret); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}
