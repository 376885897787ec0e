package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"billing-service/gateways"
	"billing-service/models"
	"billing-service/repository"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ViewInvalidator is the post-run hook that tells cached dashboard views
// their order data is stale. It is best-effort; the engine never blocks on it.
type ViewInvalidator interface {
	InvalidateOrderViews(ctx context.Context) error
}

// ReconciliationService cross-checks locally stored pending orders against
// the owning gateway's authoritative state and repairs drift. Each run is
// idempotent: corrections derive from current gateway truth, never from a
// delta since the last run, so overlapping or repeated runs converge.
type ReconciliationService struct {
	repo        repository.OrderRepository
	gateways    map[models.Gateway]gateways.PaymentGateway
	provisioner Provisioner
	invalidator ViewInvalidator
	limiter     *rate.Limiter

	window         time.Duration
	concurrency    int
	gatewayTimeout time.Duration
	logger         *zap.Logger
}

func NewReconciliationService(
	repo repository.OrderRepository,
	gws []gateways.PaymentGateway,
	provisioner Provisioner,
	invalidator ViewInvalidator,
	window time.Duration,
	concurrency int,
	gatewayTimeout time.Duration,
	ratePerSec float64,
	logger *zap.Logger,
) *ReconciliationService {
	byName := make(map[models.Gateway]gateways.PaymentGateway, len(gws))
	for _, gw := range gws {
		byName[gw.Name()] = gw
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReconciliationService{
		repo:           repo,
		gateways:       byName,
		provisioner:    provisioner,
		invalidator:    invalidator,
		limiter:        rate.NewLimiter(rate.Limit(ratePerSec), 1),
		window:         window,
		concurrency:    concurrency,
		gatewayTimeout: gatewayTimeout,
		logger:         logger,
	}
}

// Run executes one reconciliation pass. A failure to list candidates is fatal
// to the run; per-candidate failures are recorded in the report and the batch
// continues.
func (s *ReconciliationService) Run(ctx context.Context) (*models.ReconciliationReport, error) {
	orders, err := s.repo.ListPendingSince(ctx, s.window)
	if err != nil {
		return nil, fmt.Errorf("list pending orders: %w", err)
	}

	s.logger.Info("Reconciliation run started",
		zap.Int("candidates", len(orders)),
		zap.Duration("window", s.window),
	)

	report := &models.ReconciliationReport{
		Timestamp: time.Now().UTC(),
		Details:   make([]models.ReconciliationResult, 0, len(orders)),
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)

	for i := range orders {
		// Cancellation is honored between candidates; a single order's
		// transition is never left half-applied.
		if ctx.Err() != nil {
			s.logger.Warn("Reconciliation run cancelled", zap.Int("remaining", len(orders)-i))
			break
		}

		order := orders[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			res := s.reconcileOne(ctx, &order)

			mu.Lock()
			report.Processed++
			if res.Fixed {
				report.Updated++
			}
			report.Details = append(report.Details, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.logger.Info("Reconciliation run finished",
		zap.Int("processed", report.Processed),
		zap.Int("updated", report.Updated),
	)

	if report.Updated > 0 && s.invalidator != nil {
		// Fire-and-forget: stale cached views are a subscriber concern, not
		// part of the run's outcome. Use a fresh context so a cancelled run
		// context does not suppress the notification.
		invCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.invalidator.InvalidateOrderViews(invCtx); err != nil {
			s.logger.Warn("View cache invalidation failed", zap.Error(err))
		}
	}

	return report, nil
}

func (s *ReconciliationService) reconcileOne(ctx context.Context, order *models.Order) models.ReconciliationResult {
	res := models.ReconciliationResult{
		OrderID:   order.ID,
		Gateway:   order.Gateway,
		OldStatus: order.Status,
		NewStatus: order.Status,
	}

	if order.GatewayTransactionID == nil || *order.GatewayTransactionID == "" {
		// Still in-flight at the gateway; nothing to reconcile yet.
		s.logger.Info("Skipping order without gateway transaction id",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(order.Gateway)),
		)
		res.Outcome = models.OutcomeSkipped
		return res
	}

	gw, ok := s.gateways[order.Gateway]
	if !ok {
		res.Outcome = models.OutcomeErrored
		res.Error = fmt.Sprintf("no adapter registered for gateway %q", order.Gateway)
		s.logger.Error("Order owned by unregistered gateway",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(order.Gateway)),
		)
		return res
	}

	if err := s.limiter.Wait(ctx); err != nil {
		res.Outcome = models.OutcomeErrored
		res.Error = err.Error()
		return res
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	current, err := gw.GetPaymentStatus(gwCtx, *order.GatewayTransactionID)
	switch {
	case errors.Is(err, gateways.ErrTransactionNotFound):
		// The gateway answered but has no such transaction. Never mutate on
		// this; it usually means a data-entry bug upstream.
		s.logger.Warn("Gateway has no record of transaction",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(order.Gateway)),
			zap.String("transaction_id", *order.GatewayTransactionID),
		)
		res.Outcome = models.OutcomeErrored
		res.Error = err.Error()
		return res
	case err != nil:
		s.logger.Warn("Gateway status query failed",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(order.Gateway)),
			zap.String("transaction_id", *order.GatewayTransactionID),
			zap.Error(err),
		)
		res.Outcome = models.OutcomeErrored
		res.Error = err.Error()
		return res
	case current == models.StatusUnknown:
		s.logger.Warn("Gateway returned unrecognized status, leaving order untouched",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(order.Gateway)),
			zap.String("transaction_id", *order.GatewayTransactionID),
		)
		res.Outcome = models.OutcomeErrored
		res.Error = "unrecognized gateway status"
		return res
	}

	if current == order.Status {
		res.Outcome = models.OutcomeUnchanged
		return res
	}

	updated, err := s.repo.ApplyStatusTransition(ctx, order.ID, current)
	if err != nil {
		s.logger.Error("Failed to apply status transition",
			zap.String("order_id", order.ID.String()),
			zap.String("new_status", string(current)),
			zap.Error(err),
		)
		res.Outcome = models.OutcomeErrored
		res.Error = err.Error()
		return res
	}

	if err := s.repo.AppendAudit(ctx, &models.OrderAudit{
		OrderID:   order.ID,
		OldStatus: order.Status,
		NewStatus: current,
		Gateway:   order.Gateway,
		Note:      "reconciliation",
	}); err != nil {
		// The transition stands; the missing audit row is surfaced, not
		// retried.
		s.logger.Error("Audit append failed after status transition",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("Order status corrected from gateway state",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway", string(order.Gateway)),
		zap.String("old_status", string(order.Status)),
		zap.String("new_status", string(current)),
	)

	res.NewStatus = current
	res.Fixed = true
	res.Outcome = models.OutcomeUpdated

	if current == models.StatusPaid {
		delivered, err := s.provisioner.Provision(ctx, updated)
		if err != nil {
			s.logger.Warn("Provisioning after reconciliation reported an error",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
		res.Provisioned = delivered
	}

	return res
}
