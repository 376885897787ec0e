package controllers

import (
	"context"
	"errors"
	"net/http"

	"billing-service/models"
	"billing-service/repository"
	"billing-service/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutRunner is the service seam the controller depends on.
type CheckoutRunner interface {
	Checkout(ctx context.Context, req *services.CheckoutRequest) (*models.Order, *services.ServiceError)
}

type CheckoutController struct {
	Service CheckoutRunner
	Repo    repository.OrderRepository
	Logger  *zap.Logger
}

func NewCheckoutController(service CheckoutRunner, repo repository.OrderRepository, logger *zap.Logger) *CheckoutController {
	return &CheckoutController{Service: service, Repo: repo, Logger: logger}
}

// Checkout handles POST /checkout.
func (cc *CheckoutController) Checkout(c *gin.Context) {
	var req services.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid checkout request: " + err.Error()})
		return
	}

	order, svcErr := cc.Service.Checkout(c.Request.Context(), &req)
	if svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id": order.ID,
		"gateway":  order.Gateway,
		"status":   order.Status,
	})
}

// GetOrder handles GET /orders/:id.
func (cc *CheckoutController) GetOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order id"})
		return
	}

	order, err := cc.Repo.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		cc.Logger.Error("Failed to fetch order", zap.String("order_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch order"})
		return
	}

	c.JSON(http.StatusOK, order)
}
