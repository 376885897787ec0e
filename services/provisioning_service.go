package services

import (
	"context"
	"errors"
	"fmt"

	"billing-service/models"
	"billing-service/repository"

	"go.uber.org/zap"
)

// ErrProvisioningDelivery means the delivery action failed after the
// provisioned flag was already set. The order will not be retried
// automatically; it needs manual reconciliation.
var ErrProvisioningDelivery = errors.New("provisioning delivery failed")

// AccessDeliverer executes the externally-defined delivery action that grants
// the customer access to the purchased product.
type AccessDeliverer interface {
	DeliverAccess(ctx context.Context, order *models.Order) error
}

// Provisioner grants product access for a paid order at most once.
type Provisioner interface {
	// Provision returns true when the delivery action was newly executed by
	// this call.
	Provision(ctx context.Context, order *models.Order) (bool, error)
}

type ProvisioningService struct {
	repo      repository.OrderRepository
	deliverer AccessDeliverer
	logger    *zap.Logger
}

func NewProvisioningService(repo repository.OrderRepository, deliverer AccessDeliverer, logger *zap.Logger) *ProvisioningService {
	return &ProvisioningService{repo: repo, deliverer: deliverer, logger: logger}
}

// Provision flips the provisioned flag first and runs the delivery action
// only on a fresh flip. The flag, not the delivery, is the idempotency guard
// against double-delivery when reconciliation overlaps with checkout or with
// itself.
func (s *ProvisioningService) Provision(ctx context.Context, order *models.Order) (bool, error) {
	if order.Status != models.StatusPaid {
		return false, fmt.Errorf("order %s is not paid (status %s)", order.ID, order.Status)
	}

	flipped, err := s.repo.MarkProvisioned(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("mark provisioned for order %s: %w", order.ID, err)
	}
	if !flipped {
		s.logger.Info("Order already provisioned, skipping delivery",
			zap.String("order_id", order.ID.String()),
		)
		return false, nil
	}

	if err := s.deliverer.DeliverAccess(ctx, order); err != nil {
		// The flag is already set and stays set; this order now requires
		// manual intervention.
		s.logger.Error("Provisioning delivery failed after flag was set",
			zap.String("order_id", order.ID.String()),
			zap.String("customer_email", order.CustomerEmail),
			zap.Error(err),
		)
		return true, fmt.Errorf("order %s: %w: %v", order.ID, ErrProvisioningDelivery, err)
	}

	s.logger.Info("Product access delivered",
		zap.String("order_id", order.ID.String()),
		zap.String("product_id", order.ProductID),
	)
	return true, nil
}
