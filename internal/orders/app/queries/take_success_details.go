package queries

import (
	"context"
	"strings"

	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

type TakeSuccessDetailsQuery struct {
	Token string
}

// TakeSuccessDetailsQueryHandler hands out a success snapshot once per token.
type TakeSuccessDetailsQueryHandler struct {
	cache ports.SuccessDetailCache
}

func NewTakeSuccessDetailsQueryHandler(cache ports.SuccessDetailCache) *TakeSuccessDetailsQueryHandler {
	return &TakeSuccessDetailsQueryHandler{cache: cache}
}

func (h *TakeSuccessDetailsQueryHandler) Handle(ctx context.Context, query TakeSuccessDetailsQuery) (*domain.SuccessSnapshot, error) {
	token := strings.TrimSpace(query.Token)
	if token == "" {
		return nil, domain.Validationf("token is required")
	}
	return h.cache.Take(ctx, token)
}
