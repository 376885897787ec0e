package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"billing-service/models"
	"billing-service/services"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func paidOrder() *models.Order {
	o := pendingOrder(models.GatewayMercadoPago, strPtr("T1"), time.Hour)
	o.Status = models.StatusPaid
	return o
}

func TestProvision_DeliversExactlyOnce(t *testing.T) {
	repo := newMemOrderRepo()
	order := paidOrder()
	repo.put(order)

	deliverer := &fakeDeliverer{}
	svc := services.NewProvisioningService(repo, deliverer, zap.NewNop())

	first, err := svc.Provision(context.Background(), order)
	assert.NoError(t, err)
	assert.True(t, first)

	second, err := svc.Provision(context.Background(), order)
	assert.NoError(t, err)
	assert.False(t, second)

	assert.Equal(t, 1, deliverer.callCount())
	assert.True(t, repo.get(order.ID).Provisioned)
}

func TestProvision_RefusesUnpaidOrder(t *testing.T) {
	repo := newMemOrderRepo()
	order := pendingOrder(models.GatewayMercadoPago, strPtr("T1"), time.Hour)
	repo.put(order)

	deliverer := &fakeDeliverer{}
	svc := services.NewProvisioningService(repo, deliverer, zap.NewNop())

	_, err := svc.Provision(context.Background(), order)
	assert.Error(t, err)
	assert.Equal(t, 0, deliverer.callCount())
	assert.False(t, repo.get(order.ID).Provisioned)
}

// A delivery failure after the flag flipped is the known gap: the flag stays
// set and the error is the distinct delivery class.
func TestProvision_DeliveryFailureAfterFlip(t *testing.T) {
	repo := newMemOrderRepo()
	order := paidOrder()
	repo.put(order)

	deliverer := &fakeDeliverer{err: errors.New("broker down")}
	svc := services.NewProvisioningService(repo, deliverer, zap.NewNop())

	flipped, err := svc.Provision(context.Background(), order)
	assert.True(t, flipped)
	assert.ErrorIs(t, err, services.ErrProvisioningDelivery)
	assert.True(t, repo.get(order.ID).Provisioned)

	// A retry does not double-deliver: the flag already flipped.
	again, err := svc.Provision(context.Background(), order)
	assert.NoError(t, err)
	assert.False(t, again)
	assert.Equal(t, 1, deliverer.callCount())
}
