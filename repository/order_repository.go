package repository

import (
	"context"
	"errors"
	"time"

	"billing-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrOrderNotFound is returned when the order no longer exists.
var ErrOrderNotFound = errors.New("order not found")

// ErrTerminalTransition is returned when a transition would move a terminal
// status back to pending. Terminal statuses never regress.
var ErrTerminalTransition = errors.New("cannot move a terminal order back to pending")

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)

	// ListPendingSince returns pending orders created inside the lookback
	// window. The window bound caps gateway calls per reconciliation run.
	ListPendingSince(ctx context.Context, window time.Duration) ([]models.Order, error)

	// ApplyStatusTransition atomically updates status and updated_at. It is a
	// no-op returning the current record when newStatus equals the stored
	// status.
	ApplyStatusTransition(ctx context.Context, orderID uuid.UUID, newStatus models.OrderStatus) (*models.Order, error)

	// SetGatewayResult records the outcome of a checkout-time gateway attempt:
	// gateway of record, transaction id (nil while in-flight), resulting
	// status, and cascade provenance.
	SetGatewayResult(ctx context.Context, orderID uuid.UUID, gw models.Gateway, transactionID *string, status models.OrderStatus, cascadedFrom *models.Gateway) (*models.Order, error)

	// AppendAudit appends an immutable audit record. A failure here must not
	// roll back the transition it follows; callers log it as degraded.
	AppendAudit(ctx context.Context, audit *models.OrderAudit) error

	// MarkProvisioned flips the provisioned flag and reports whether this
	// call was the one that flipped it. Only a paid order can be provisioned.
	MarkProvisioned(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type gormOrderRepo struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &gormOrderRepo{db: db}
}

func (r *gormOrderRepo) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *gormOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepo) ListPendingSince(ctx context.Context, window time.Duration) ([]models.Order, error) {
	var orders []models.Order
	cutoff := time.Now().Add(-window)
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at >= ?", models.StatusPending, cutoff).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *gormOrderRepo) ApplyStatusTransition(ctx context.Context, orderID uuid.UUID, newStatus models.OrderStatus) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", orderID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Status == newStatus {
			return nil
		}
		if order.Status.IsTerminal() && newStatus == models.StatusPending {
			return ErrTerminalTransition
		}
		now := time.Now()
		if err := tx.Model(&models.Order{}).
			Where("id = ?", orderID).
			Updates(map[string]interface{}{"status": newStatus, "updated_at": now}).Error; err != nil {
			return err
		}
		order.Status = newStatus
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *gormOrderRepo) SetGatewayResult(ctx context.Context, orderID uuid.UUID, gw models.Gateway, transactionID *string, status models.OrderStatus, cascadedFrom *models.Gateway) (*models.Order, error) {
	updates := map[string]interface{}{
		"gateway":    gw,
		"status":     status,
		"updated_at": time.Now(),
	}
	if transactionID != nil {
		updates["gateway_transaction_id"] = *transactionID
	}
	if cascadedFrom != nil {
		updates["cascaded_from"] = *cascadedFrom
	}

	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrOrderNotFound
	}
	return r.FindByID(ctx, orderID)
}

func (r *gormOrderRepo) AppendAudit(ctx context.Context, audit *models.OrderAudit) error {
	return r.db.WithContext(ctx).Create(audit).Error
}

func (r *gormOrderRepo) MarkProvisioned(ctx context.Context, orderID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND provisioned = ? AND status = ?", orderID, false, models.StatusPaid).
		Updates(map[string]interface{}{"provisioned": true, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
