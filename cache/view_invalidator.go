package cache

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OrderViewKeys are the cached dashboard views derived from the orders table.
var OrderViewKeys = []string{
	"views:sales:summary",
	"views:sales:daily",
	"views:orders:recent",
}

// ViewInvalidator drops cached dashboard views after reconciliation repaired
// order state. Implements services.ViewInvalidator.
type ViewInvalidator struct {
	client *redis.Client
	logger *zap.Logger
}

func NewViewInvalidator(addr, password string, logger *zap.Logger) *ViewInvalidator {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	return &ViewInvalidator{client: client, logger: logger}
}

func (v *ViewInvalidator) InvalidateOrderViews(ctx context.Context) error {
	if err := v.client.Del(ctx, OrderViewKeys...).Err(); err != nil {
		return err
	}
	v.logger.Info("Invalidated cached order views", zap.Strings("keys", OrderViewKeys))
	return nil
}

func (v *ViewInvalidator) Close() error {
	return v.client.Close()
}
