package models

import "time"

// AccessGrantedEvent is published when the provisioning trigger newly grants
// product access for a paid order. Downstream delivery workers consume it.
type AccessGrantedEvent struct {
	OrderID       string    `json:"order_id"`
	CustomerEmail string    `json:"customer_email"`
	ProductID     string    `json:"product_id"`
	Gateway       Gateway   `json:"gateway"`
	Amount        int       `json:"amount"`
	Currency      string    `json:"currency"`
	Timestamp     time.Time `json:"timestamp"`
}
