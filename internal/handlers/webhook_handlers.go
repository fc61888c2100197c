package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tenantcrm/internal/common"
	"tenantcrm/internal/models"
	"tenantcrm/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	SignatureHeader = "X-Signature"

	EventUpgradePaid = "subscription.upgrade"
	EventRenewalPaid = "subscription.renewal"
)

// maxWebhookBody bounds what is read before the signature is checked.
const maxWebhookBody = 64 << 10

// PaymentEvent is a resolved charge reported by the payment gateway.
type PaymentEvent struct {
	ID           string                `json:"id"`
	Event        string                `json:"event"`
	TenantID     uuid.UUID             `json:"tenantId"`
	PlanID       string                `json:"planId,omitempty"`
	BillingCycle models.BillingCycle   `json:"billingCycle,omitempty"`
	AutoRenew    *bool                 `json:"autoRenew,omitempty"`
	Payment      models.PaymentOutcome `json:"payment"`
}

// WebhookHandlers accepts signed payment outcomes. It is the only
// unauthenticated path that can confirm a payment.
type WebhookHandlers struct {
	subs   services.SubscriptionService
	secret string
}

func NewWebhookHandlers(subs services.SubscriptionService, secret string) *WebhookHandlers {
	return &WebhookHandlers{subs: subs, secret: secret}
}

// WebhookSignature is the hex HMAC-SHA256 of body under secret.
func WebhookSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *WebhookHandlers) verify(signature string, body []byte) bool {
	return hmac.Equal([]byte(signature), []byte(WebhookSignature(h.secret, body)))
}

// Payments handles POST /webhooks/payments
func (h *WebhookHandlers) Payments(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read request body")
	}
	signature := c.Request().Header.Get(SignatureHeader)
	if signature == "" {
		return common.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing webhook signature", nil)
	}
	if !h.verify(signature, body) {
		return common.SendError(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid webhook signature", nil)
	}

	var event PaymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return common.SendValidationError(c, "body", "invalid event payload")
	}
	if event.TenantID == uuid.Nil {
		return common.SendValidationError(c, "tenantId", "tenant id is required")
	}

	ctx := c.Request().Context()
	var sub *models.Subscription
	switch event.Event {
	case EventUpgradePaid:
		sub, err = h.subs.Upgrade(ctx, services.UpgradeRequest{
			TenantID:     event.TenantID,
			PlanID:       event.PlanID,
			BillingCycle: event.BillingCycle,
			AutoRenew:    event.AutoRenew,
			Payment:      event.Payment,
		})
	case EventRenewalPaid:
		sub, err = h.subs.RecordPayment(ctx, event.TenantID, event.Payment)
	default:
		return common.SendValidationError(c, "event", "unsupported event "+event.Event)
	}

	// An unconfirmed charge is still a delivered event; it is already in the ledger.
	if errors.Is(err, models.ErrPaymentNotConfirmed) {
		return c.JSON(http.StatusOK, map[string]interface{}{"id": event.ID, "confirmed": false})
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"id": event.ID, "confirmed": true, "subscription": sub})
}
