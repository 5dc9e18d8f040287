package ports

//go:generate mockgen -source=gateway.go -destination=mocks/gateway_mock.go -package=mocks

import (
	"context"
	"time"
)

// VerifiedSuccess is the gateway status value of a settled transaction.
const VerifiedSuccess = "success"

// InitializeRequest carries what the gateway needs to start a transaction.
type InitializeRequest struct {
	Email       string
	AmountMinor int64
	CallbackURL string
	Reference   string
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
	Message          string
}

type VerifyResult struct {
	Status          string
	Reference       string
	AmountMinor     int64
	GatewayResponse string
	PaidAt          *time.Time
	Message         string
}

// PaymentGateway drives the external provider's initialize/verify protocol.
type PaymentGateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)
	Verify(ctx context.Context, reference string) (*VerifyResult, error)
}
