package domain

import (
	"errors"
	"fmt"
)

// Taxonomia de erros do motor de cobrança. Os handlers mapeiam cada tipo para
// um status HTTP; detalhes do banco nunca chegam ao cliente.
var (
	ErrValidation = errors.New("dados inválidos")
	ErrNotFound   = errors.New("registro não encontrado")
	ErrConflict   = errors.New("conflito de estado")
	ErrStorage    = errors.New("falha no armazenamento")

	ErrInvalidPlan         = fmt.Errorf("%w: plano desconhecido", ErrValidation)
	ErrInvalidPhone        = fmt.Errorf("%w: telefone inválido", ErrValidation)
	ErrDuplicateClient     = fmt.Errorf("%w: já existe cliente com este telefone", ErrConflict)
	ErrSubscriptionActive  = fmt.Errorf("%w: cliente já possui assinatura ativa", ErrConflict)
	ErrClientNotFound      = fmt.Errorf("%w: cliente", ErrNotFound)
	ErrSubscriptionMissing = fmt.Errorf("%w: assinatura", ErrNotFound)
	ErrPaymentNotFound     = fmt.Errorf("%w: pagamento", ErrNotFound)
)

// Kind devolve o identificador curto exposto na API para um erro.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidPlan):
		return "invalid_plan"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}
