package gateways

import "billing-service/models"

// StatusMapping translates one gateway's native status vocabulary into the
// canonical set. Adapters receive their table at construction time so the
// translation is testable in isolation.
type StatusMapping map[string]models.OrderStatus

// Canonical returns the canonical status for a native one, or
// models.StatusUnknown when the native status is not in the table. Lookups
// never guess: an unmapped status is unknown, not pending.
func (m StatusMapping) Canonical(native string) models.OrderStatus {
	if s, ok := m[native]; ok {
		return s
	}
	return models.StatusUnknown
}

// MercadoPagoStatuses is the default Mercado Pago translation table. All
// in-flight sub-states (in_process, in_mediation) canonicalize to pending.
var MercadoPagoStatuses = StatusMapping{
	"approved":     models.StatusPaid,
	"authorized":   models.StatusPaid,
	"pending":      models.StatusPending,
	"in_process":   models.StatusPending,
	"in_mediation": models.StatusPending,
	"rejected":     models.StatusCancelled,
	"cancelled":    models.StatusCancelled,
	"refunded":     models.StatusRefunded,
	"charged_back": models.StatusChargeback,
}

// AsaasStatuses is the default Asaas translation table.
var AsaasStatuses = StatusMapping{
	"RECEIVED":               models.StatusPaid,
	"CONFIRMED":              models.StatusPaid,
	"RECEIVED_IN_CASH":       models.StatusPaid,
	"PENDING":                models.StatusPending,
	"AWAITING_RISK_ANALYSIS": models.StatusPending,
	"OVERDUE":                models.StatusCancelled,
	"REFUND_REQUESTED":       models.StatusRefunded,
	"REFUNDED":               models.StatusRefunded,
	"CHARGEBACK_REQUESTED":   models.StatusChargeback,
	"CHARGEBACK_DISPUTE":     models.StatusChargeback,
}
