package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     string
	PostgresSSLMode  string
	PostgresTimeZone string

	MercadoPagoAccessToken string
	AsaasAPIKey            string

	ReconcileSecret      string
	ReconcileWindow      time.Duration // lookback for pending orders
	ReconcileInterval    time.Duration // 0 disables the in-process ticker
	GatewayTimeout       time.Duration // per status-query timeout
	ReconcileConcurrency int
	GatewayRatePerSec    float64

	RedisAddr     string
	RedisPassword string

	KafkaBrokers      string
	ProvisioningTopic string
}

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// no .env file is fine in containerized environments
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8090"),
		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		PostgresTimeZone: getEnv("POSTGRES_TIMEZONE", "America/Sao_Paulo"),

		MercadoPagoAccessToken: os.Getenv("MERCADOPAGO_ACCESS_TOKEN"),
		AsaasAPIKey:            os.Getenv("ASAAS_API_KEY"),

		ReconcileSecret:      os.Getenv("RECONCILE_SECRET"),
		ReconcileWindow:      getEnvDuration("RECONCILE_WINDOW", 24*time.Hour),
		ReconcileInterval:    getEnvDuration("RECONCILE_INTERVAL", 0),
		GatewayTimeout:       getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second),
		ReconcileConcurrency: getEnvInt("RECONCILE_CONCURRENCY", 5),
		GatewayRatePerSec:    getEnvFloat("GATEWAY_RATE_PER_SEC", 10),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBrokers:      getEnv("KAFKA_BROKERS", "localhost:9092"),
		ProvisioningTopic: getEnv("PROVISIONING_TOPIC", "product.access.granted"),
	}

	if cfg.PostgresUser == "" || cfg.PostgresPassword == "" || cfg.PostgresDB == "" || cfg.PostgresHost == "" {
		return nil, fmt.Errorf("missing required Postgres environment variables")
	}
	if cfg.MercadoPagoAccessToken == "" || cfg.AsaasAPIKey == "" {
		return nil, fmt.Errorf("missing gateway credentials (MERCADOPAGO_ACCESS_TOKEN, ASAAS_API_KEY)")
	}
	if cfg.ReconcileSecret == "" {
		return nil, fmt.Errorf("RECONCILE_SECRET must be set")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil && f > 0 {
			return f
		}
	}
	return fallback
}
