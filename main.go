package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"billing-service/cache"
	"billing-service/config"
	"billing-service/controllers"
	"billing-service/database"
	"billing-service/gateways"
	"billing-service/kafka"
	"billing-service/repository"
	"billing-service/routes"
	"billing-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[BillingService] Failed to load config: ", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("[BillingService] Failed to initialize logger: ", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to DB", zap.Error(err))
	}
	defer database.Close(db)

	orderRepo := repository.NewGormOrderRepository(db)

	mercadoPago := gateways.NewMercadoPagoGateway(cfg.MercadoPagoAccessToken, cfg.GatewayTimeout)
	asaas := gateways.NewAsaasGateway(cfg.AsaasAPIKey, cfg.GatewayTimeout)

	producer := kafka.NewAccessEventProducer(strings.Split(cfg.KafkaBrokers, ","), cfg.ProvisioningTopic, logger)
	defer producer.Close()

	invalidator := cache.NewViewInvalidator(cfg.RedisAddr, cfg.RedisPassword, logger)
	defer invalidator.Close()

	provisioner := services.NewProvisioningService(orderRepo, producer, logger)
	checkoutSvc := services.NewCheckoutService(orderRepo, mercadoPago, asaas, provisioner, logger)
	reconcileSvc := services.NewReconciliationService(
		orderRepo,
		[]gateways.PaymentGateway{mercadoPago, asaas},
		provisioner,
		invalidator,
		cfg.ReconcileWindow,
		cfg.ReconcileConcurrency,
		cfg.GatewayTimeout,
		cfg.GatewayRatePerSec,
		logger,
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The HTTP trigger is the authoritative scheduler; the in-process ticker
	// is optional for deployments without an external cron.
	if cfg.ReconcileInterval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.ReconcileInterval)
			defer ticker.Stop()
			for {
				select {
				case <-rootCtx.Done():
					return
				case <-ticker.C:
					if _, err := reconcileSvc.Run(rootCtx); err != nil {
						logger.Error("Scheduled reconciliation failed", zap.Error(err))
					}
				}
			}
		}()
	}

	r := gin.New()
	r.Use(gin.Recovery())

	cc := controllers.NewCheckoutController(checkoutSvc, orderRepo, logger)
	rc := controllers.NewReconciliationController(reconcileSvc, logger)
	routes.Register(r, cc, rc, cfg.ReconcileSecret)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("BillingService running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-rootCtx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
}
