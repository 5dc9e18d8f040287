package http

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/dejobratic/coursepay/internal/orders/app"
	"github.com/dejobratic/coursepay/internal/orders/app/queries"
	"github.com/dejobratic/coursepay/internal/orders/domain"
	"github.com/dejobratic/coursepay/internal/orders/ports"
)

const maxBodyBytes = 1 << 20

// Handler exposes HTTP endpoints for order and payment operations.
type Handler struct {
	service *app.Service
}

// NewHandler constructs a Handler.
func NewHandler(service *app.Service) *Handler {
	return &Handler{service: service}
}

// Register binds the handlers to the provided ServeMux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/orders", h.createOrder)
	mux.HandleFunc("GET /v1/orders", h.listOrders)
	mux.HandleFunc("GET /v1/orders/{id}", h.getOrder)
	mux.HandleFunc("POST /v1/orders/{id}/cancel", h.cancelOrder)
	mux.HandleFunc("DELETE /v1/orders/{id}", h.deleteOrder)

	mux.HandleFunc("POST /v1/payments/initialize", h.initiatePayment)
	mux.HandleFunc("GET /v1/payments/verify", h.verifyPayment)
	mux.HandleFunc("GET /v1/payments/success-details/{token}", h.successDetails)
	mux.HandleFunc("GET /v1/payments", h.listPayments)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	requestHash := hashBody(body)

	if idemKey != "" {
		stored, err := h.service.GetIdempotentResponse(ctx, idemKey)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		if stored != nil {
			if stored.RequestHash != requestHash {
				writeError(w, http.StatusConflict, "Idempotency-Key was already used with a different payload")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotent-Replayed", "true")
			w.WriteHeader(stored.StatusCode)
			_, _ = w.Write(stored.Body)
			return
		}
	}

	var payload app.CreateOrderInput
	if err := json.Unmarshal(body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	created, err := h.service.CreateOrder(ctx, payload)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	response, err := json.Marshal(map[string]any{
		"order":         created.Order,
		"registrations": created.Registrations,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	if idemKey != "" {
		stored := ports.StoredResponse{
			RequestHash: requestHash,
			StatusCode:  http.StatusCreated,
			Body:        response,
			OrderID:     created.Order.ID,
		}
		if err := h.service.SaveIdempotentResponse(ctx, idemKey, stored); err != nil {
			slog.WarnContext(ctx, "order created but idempotency key not stored",
				"order_id", created.Order.ID,
				"error", err,
			)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(response)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	details, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}

	orders, err := h.service.ListOrders(r.Context(), queries.ListOrdersQuery{
		Status:   r.URL.Query().Get("status"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	order, err := h.service.CancelOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request) {
	var payload app.InitiatePaymentInput
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	initiated, err := h.service.InitiatePayment(r.Context(), payload)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, initiated)
}

// verifyPayment is the gateway callback; it always answers with a redirect.
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		reference = r.URL.Query().Get("trxref")
	}

	redirect := h.service.VerifyPayment(r.Context(), reference)
	http.Redirect(w, r, redirect.Location, http.StatusFound)
}

func (h *Handler) successDetails(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.service.TakeSuccessDetails(r.Context(), r.PathValue("token"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	page, pageSize, ok := pagination(w, r)
	if !ok {
		return
	}

	payments, err := h.service.ListPayments(r.Context(), queries.ListPaymentsQuery{Page: page, PageSize: pageSize})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"payments": payments})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func pagination(w http.ResponseWriter, r *http.Request) (page, pageSize int, ok bool) {
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &page}, {"page_size", &pageSize}} {
		value := q.Get(p.name)
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, p.name+" must be an integer")
			return 0, 0, false
		}
		*p.dst = parsed
	}
	return page, pageSize, true
}

func hashBody(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// statusFor maps the domain error taxonomy to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGatewayRejected):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrGatewayUnavailable):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	message := err.Error()
	var rejected *domain.RejectedError
	switch {
	case errors.As(err, &rejected):
		message = rejected.Message
	case status == http.StatusGatewayTimeout:
		message = "payment gateway unavailable, please retry"
	case status == http.StatusInternalServerError:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		message = "internal server error"
	}

	writeJSON(w, status, map[string]any{"error": message, "code": domain.Kind(err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
