package services

import "tenantcrm/internal/models"

// Lifecycle events accepted by the subscription state machine.
const (
	EventUpgrade       = "upgrade"
	EventRecordPayment = "record_payment"
	EventSuspend       = "suspend"
	EventActivate      = "activate"
	EventCancel        = "cancel"
	EventSetAutoRenew  = "set_auto_renew"
	EventReconcile     = "reconcile"
)

// allowedFrom lists, per event, the stored statuses it may start from.
var allowedFrom = map[string]map[models.SubscriptionStatus]bool{
	EventUpgrade:       {models.StatusTrial: true, models.StatusExpired: true},
	EventRecordPayment: {models.StatusActive: true},
	EventSuspend:       {models.StatusActive: true},
	EventActivate:      {models.StatusSuspended: true},
	EventCancel:        {models.StatusActive: true, models.StatusTrial: true},
	EventSetAutoRenew:  {models.StatusActive: true},
}

func checkTransition(event string, from models.SubscriptionStatus) error {
	if allowedFrom[event][from] {
		return nil
	}
	return &models.TransitionError{Event: event, From: string(from)}
}
