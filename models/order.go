package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the canonical status vocabulary shared with the dashboard
// views that read the orders table directly.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusPaid       OrderStatus = "paid"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"
	StatusChargeback OrderStatus = "chargeback"

	// StatusUnknown is the sentinel for a native gateway status the mapping
	// table does not recognize. It is never persisted.
	StatusUnknown OrderStatus = ""
)

// Gateway identifies which payment processor owns an order's transaction.
type Gateway string

const (
	GatewayMercadoPago Gateway = "mercadopago"
	GatewayAsaas       Gateway = "asaas"
)

// TerminalStatuses are the statuses an order can never leave.
var TerminalStatuses = map[OrderStatus]bool{
	StatusPaid:       true,
	StatusCancelled:  true,
	StatusRefunded:   true,
	StatusChargeback: true,
}

// IsTerminal reports whether s is a terminal status.
func (s OrderStatus) IsTerminal() bool {
	return TerminalStatuses[s]
}

type Order struct {
	ID                   uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CustomerEmail        string      `gorm:"type:varchar(255);index;not null" json:"customer_email"`
	ProductID            string      `gorm:"type:varchar(64);not null" json:"product_id"`
	Amount               int         `gorm:"not null" json:"amount"` // in cents
	Currency             string      `gorm:"type:varchar(8);not null" json:"currency"`
	Gateway              Gateway     `gorm:"type:varchar(20);index;not null" json:"gateway"`
	GatewayTransactionID *string     `gorm:"type:varchar(128);index" json:"gateway_transaction_id"`
	Status               OrderStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	Provisioned          bool        `gorm:"not null" json:"provisioned"`
	CascadedFrom         *Gateway    `gorm:"type:varchar(20)" json:"cascaded_from,omitempty"`
	CreatedAt            time.Time   `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderAudit is the append-only record written alongside every status
// mutation. Rows are never updated or deleted.
type OrderAudit struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uuid.UUID   `gorm:"type:uuid;index;not null" json:"order_id"`
	OldStatus OrderStatus `gorm:"type:varchar(20);not null" json:"old_status"`
	NewStatus OrderStatus `gorm:"type:varchar(20);not null" json:"new_status"`
	Gateway   Gateway     `gorm:"type:varchar(20);not null" json:"gateway"`
	Note      string      `gorm:"type:varchar(255)" json:"note,omitempty"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
}
