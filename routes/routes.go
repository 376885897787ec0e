package routes

import (
	"net/http"

	"billing-service/controllers"
	"billing-service/middleware"

	"github.com/gin-gonic/gin"
)

func Register(r *gin.Engine, cc *controllers.CheckoutController, rc *controllers.ReconciliationController, reconcileSecret string) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/checkout", cc.Checkout)
	r.GET("/orders/:id", cc.GetOrder)

	r.POST("/reconcile", middleware.ReconcileAuth(reconcileSecret), rc.Trigger)
}
