package services

import (
	"context"
	"errors"
	"net/http"

	"billing-service/gateways"
	"billing-service/models"
	"billing-service/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CheckoutRequest struct {
	CustomerEmail string `json:"customer_email" binding:"required,email"`
	ProductID     string `json:"product_id" binding:"required"`
	Amount        int    `json:"amount" binding:"required,min=1"` // in cents
	Currency      string `json:"currency" binding:"required"`
	Description   string `json:"description"`
}

// CheckoutService runs the gateway cascade: one attempt on the primary
// gateway, and on a definitive refusal exactly one fallback attempt on the
// secondary. A refusal is terminal per gateway; there is no retry on the
// same gateway within one checkout call.
type CheckoutService struct {
	repo        repository.OrderRepository
	primary     gateways.PaymentGateway
	secondary   gateways.PaymentGateway
	provisioner Provisioner
	logger      *zap.Logger
}

func NewCheckoutService(
	repo repository.OrderRepository,
	primary, secondary gateways.PaymentGateway,
	provisioner Provisioner,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		repo:        repo,
		primary:     primary,
		secondary:   secondary,
		provisioner: provisioner,
		logger:      logger,
	}
}

// Checkout creates the order bound to the primary gateway and walks the
// cascade. The same order row is reused on fallback: gateway is reassigned
// primary→secondary exactly once, with provenance kept in cascaded_from and
// the audit log.
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*models.Order, *ServiceError) {
	order := &models.Order{
		ID:            uuid.New(),
		CustomerEmail: req.CustomerEmail,
		ProductID:     req.ProductID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Gateway:       s.primary.Name(),
		Status:        models.StatusPending,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		s.logger.Error("Failed to create order", zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to create order"}
	}

	payReq := gateways.PaymentRequest{
		OrderID:       order.ID.String(),
		Amount:        req.Amount,
		Currency:      req.Currency,
		CustomerEmail: req.CustomerEmail,
		ProductID:     req.ProductID,
		Description:   req.Description,
	}

	order, outcome := s.attempt(ctx, s.primary, order, payReq, nil)
	switch outcome {
	case attemptAccepted:
		return order, nil
	case attemptTransportError:
		// Order stays pending with no transaction id; reconciliation or a
		// manual retry picks it up. Never cascade on "we could not ask".
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Message: "Payment gateway unavailable, order " + order.ID.String() + " left pending"}
	}

	// Definitive primary refusal: reassign the row to the secondary gateway
	// before the fallback attempt.
	from := s.primary.Name()
	reassigned, err := s.repo.SetGatewayResult(ctx, order.ID, s.secondary.Name(), nil, models.StatusPending, &from)
	if err != nil {
		s.logger.Error("Failed to reassign order to fallback gateway",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to record gateway fallback"}
	}
	if err := s.repo.AppendAudit(ctx, &models.OrderAudit{
		OrderID:   order.ID,
		OldStatus: models.StatusPending,
		NewStatus: models.StatusPending,
		Gateway:   s.secondary.Name(),
		Note:      "cascade fallback from " + string(from),
	}); err != nil {
		s.logger.Error("Audit append failed for cascade fallback",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
	order = reassigned

	order, outcome = s.attempt(ctx, s.secondary, order, payReq, &from)
	switch outcome {
	case attemptAccepted:
		return order, nil
	case attemptTransportError:
		return nil, &ServiceError{StatusCode: http.StatusBadGateway, Message: "Fallback gateway unavailable, order " + order.ID.String() + " left pending"}
	}

	// Both gateways refused: terminal failure, kept as a cancelled row for
	// audit and reporting.
	if _, err := s.repo.ApplyStatusTransition(ctx, order.ID, models.StatusCancelled); err != nil {
		s.logger.Error("Failed to mark order cancelled after cascade exhausted",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	} else if err := s.repo.AppendAudit(ctx, &models.OrderAudit{
		OrderID:   order.ID,
		OldStatus: models.StatusPending,
		NewStatus: models.StatusCancelled,
		Gateway:   s.secondary.Name(),
		Note:      "rejected by all gateways",
	}); err != nil {
		s.logger.Error("Audit append failed", zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	s.logger.Warn("Checkout rejected by all gateways",
		zap.String("order_id", order.ID.String()),
		zap.String("customer_email", order.CustomerEmail),
	)
	return nil, &ServiceError{StatusCode: http.StatusPaymentRequired, Message: "Payment declined, order " + order.ID.String()}
}

type attemptOutcome int

const (
	attemptAccepted attemptOutcome = iota
	attemptRejected
	attemptTransportError
)

func (s *CheckoutService) attempt(ctx context.Context, gw gateways.PaymentGateway, order *models.Order, req gateways.PaymentRequest, cascadedFrom *models.Gateway) (*models.Order, attemptOutcome) {
	result, err := gw.CreatePayment(ctx, req)
	switch {
	case errors.Is(err, gateways.ErrPaymentRejected):
		s.logger.Info("Gateway refused payment",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(gw.Name())),
			zap.Error(err),
		)
		return order, attemptRejected
	case err != nil:
		s.logger.Warn("Gateway attempt failed in transport",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(gw.Name())),
			zap.Error(err),
		)
		return order, attemptTransportError
	}

	status := result.Status
	if status == models.StatusUnknown {
		// Accepted but with an unmapped native status: keep the row pending
		// and let reconciliation resolve it against the gateway later.
		status = models.StatusPending
	}

	updated, err := s.repo.SetGatewayResult(ctx, order.ID, gw.Name(), &result.TransactionID, status, cascadedFrom)
	if err != nil {
		s.logger.Error("Failed to record gateway result",
			zap.String("order_id", order.ID.String()),
			zap.String("gateway", string(gw.Name())),
			zap.String("transaction_id", result.TransactionID),
			zap.Error(err),
		)
		// The gateway accepted; treat the store failure like a transport
		// error so the order is repaired by reconciliation later.
		return order, attemptTransportError
	}

	if updated.Status != models.StatusPending {
		if err := s.repo.AppendAudit(ctx, &models.OrderAudit{
			OrderID:   order.ID,
			OldStatus: models.StatusPending,
			NewStatus: updated.Status,
			Gateway:   gw.Name(),
			Note:      "checkout: gateway " + result.NativeStatus,
		}); err != nil {
			s.logger.Error("Audit append failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	s.logger.Info("Gateway accepted payment attempt",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway", string(gw.Name())),
		zap.String("transaction_id", result.TransactionID),
		zap.String("status", string(updated.Status)),
	)

	if updated.Status == models.StatusPaid {
		if _, err := s.provisioner.Provision(ctx, updated); err != nil {
			s.logger.Warn("Provisioning after checkout reported an error",
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
		}
	}

	return updated, attemptAccepted
}
