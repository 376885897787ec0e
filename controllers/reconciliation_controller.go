package controllers

import (
	"context"
	"net/http"

	"billing-service/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Reconciler is the service seam the controller depends on.
type Reconciler interface {
	Run(ctx context.Context) (*models.ReconciliationReport, error)
}

type ReconciliationController struct {
	Service Reconciler
	Logger  *zap.Logger
}

func NewReconciliationController(service Reconciler, logger *zap.Logger) *ReconciliationController {
	return &ReconciliationController{Service: service, Logger: logger}
}

// Trigger starts one reconciliation run and returns its report. Per-order
// failures are enumerated inside the report; only a failure to list
// candidates fails the request.
func (rc *ReconciliationController) Trigger(c *gin.Context) {
	report, err := rc.Service.Run(c.Request.Context())
	if err != nil {
		rc.Logger.Error("Reconciliation run failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "reconciliation run failed: order store unavailable"})
		return
	}
	c.JSON(http.StatusOK, report)
}
