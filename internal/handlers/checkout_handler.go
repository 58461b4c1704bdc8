package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"lucentpay-checkout/internal/models"
	"lucentpay-checkout/internal/payments"
	"lucentpay-checkout/internal/service"
	"lucentpay-checkout/pkg/logger"
)

const serviceName = "lucentpay-checkout"

type CheckoutHandler struct {
	service             *service.CheckoutService
	exposeGatewayErrors bool
	now                 func() time.Time
}

func NewCheckoutHandler(checkoutService *service.CheckoutService, exposeGatewayErrors bool) *CheckoutHandler {
	return &CheckoutHandler{
		service:             checkoutService,
		exposeGatewayErrors: exposeGatewayErrors,
		now:                 time.Now,
	}
}

// Health reports whether the gateway is wired. It never fails hard so that probes
// see a degraded service rather than a crash loop.
func (h *CheckoutHandler) Health(c *gin.Context) {
	resp := models.HealthResponse{
		Service:       serviceName,
		Time:          h.now().UTC().Format(time.RFC3339),
		HasGatewayKey: h.service.Enabled(),
		HasPrice:      h.service.HasPrice(),
	}
	resp.OK = resp.HasGatewayKey

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (h *CheckoutHandler) DebugPrice(c *gin.Context) {
	price, err := h.service.Price(c.Request.Context())
	if err != nil {
		h.writeError(c, err, "Failed to resolve price")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "price": price})
}

func (h *CheckoutHandler) CreateProCheckout(c *gin.Context) {
	var req models.MembershipCheckoutRequest
	// The body is optional; an empty one means checkout without a prefilled email.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request body"})
		return
	}

	session, err := h.service.CreateMembershipCheckout(c.Request.Context(), req.Email)
	if err != nil {
		h.writeError(c, err, "Failed to create checkout session")
		return
	}

	c.JSON(http.StatusOK, models.CheckoutURLResponse{URL: session.URL})
}

func (h *CheckoutHandler) CreateCheckoutSession(c *gin.Context) {
	var req models.InvoiceCheckoutRequest
	// An empty body falls through so the caller learns every missing field at once.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		logger.WithContext(c.Request.Context()).WithError(err).Debug("Rejected malformed invoice checkout body")
		h.writeError(c, bodyError(err), "Invalid request body")
		return
	}

	session, charge, err := h.service.CreateInvoiceCheckout(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err, "Failed to create checkout session")
		return
	}

	c.JSON(http.StatusOK, models.CheckoutSessionResponse{
		ID:               session.ID,
		URL:              session.URL,
		TotalAmountMinor: charge.TotalAmountMinor,
	})
}

func (h *CheckoutHandler) VerifySession(c *gin.Context) {
	details, err := h.service.VerifySession(c.Request.Context(), strings.TrimSpace(c.Query("session_id")))
	if err != nil {
		h.writeError(c, err, "Failed to verify checkout session")
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *CheckoutHandler) writeError(c *gin.Context, err error, fallback string) {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: validationErr.Message, Fields: validationErr.Fields})
		return
	}

	if errors.Is(err, service.ErrNotConfigured) {
		logger.WithContext(c.Request.Context()).Warn("Checkout requested but gateway is not configured")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Payments are not configured"})
		return
	}

	if errors.Is(err, errMalformedBody) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fallback})
		return
	}

	// Gateway failures share one status; retryable tells an outage from a rejection.
	status := http.StatusInternalServerError
	retryable := errors.Is(err, payments.ErrGatewayUnavailable)

	logger.Error(err, fallback, map[string]interface{}{
		"path":       c.FullPath(),
		"status":     status,
		"request_id": c.GetString("request_id"),
	})

	message := fallback
	var gatewayErr *payments.GatewayError
	if h.exposeGatewayErrors && errors.As(err, &gatewayErr) {
		if detail := strings.TrimSpace(gatewayErr.Message); detail != "" {
			message = detail
		}
	}
	c.JSON(status, models.ErrorResponse{Error: message, Retryable: retryable})
}

var errMalformedBody = errors.New("malformed request body")

// bodyError names the offending field when the decoder can tell which one it was.
func bodyError(err error) error {
	var fieldErr *models.FieldError
	if errors.As(err, &fieldErr) {
		return &service.ValidationError{Message: fieldErr.Error(), Fields: []string{fieldErr.Field}}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return &service.ValidationError{
			Message: fmt.Sprintf("%s has the wrong type", typeErr.Field),
			Fields:  []string{typeErr.Field},
		}
	}

	return fmt.Errorf("%w: %v", errMalformedBody, err)
}
