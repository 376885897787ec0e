package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"billing-service/models"
)

const mercadoPagoBaseURL = "https://api.mercadopago.com"

// MercadoPagoGateway implements PaymentGateway against the Mercado Pago
// payments API. This is the primary gateway of the cascade.
type MercadoPagoGateway struct {
	accessToken string
	baseURL     string
	statuses    StatusMapping
	httpClient  *http.Client
}

// NewMercadoPagoGateway creates a Mercado Pago client with the default
// status mapping.
func NewMercadoPagoGateway(accessToken string, timeout time.Duration) *MercadoPagoGateway {
	return &MercadoPagoGateway{
		accessToken: accessToken,
		baseURL:     mercadoPagoBaseURL,
		statuses:    MercadoPagoStatuses,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewMercadoPagoGatewayWithBaseURL is used by tests pointing at a fake server.
func NewMercadoPagoGatewayWithBaseURL(accessToken, baseURL string, statuses StatusMapping, timeout time.Duration) *MercadoPagoGateway {
	return &MercadoPagoGateway{
		accessToken: accessToken,
		baseURL:     baseURL,
		statuses:    statuses,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

func (g *MercadoPagoGateway) Name() models.Gateway { return models.GatewayMercadoPago }

// ---- Mercado Pago API request/response structs ----

type mpPayer struct {
	Email string `json:"email"`
}

type mpPaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description"`
	ExternalReference string  `json:"external_reference"`
	Payer             mpPayer `json:"payer"`
}

type mpPaymentResponse struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	StatusDetail string `json:"status_detail"`
}

// ---- PaymentGateway implementation ----

func (g *MercadoPagoGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	body := mpPaymentRequest{
		TransactionAmount: float64(req.Amount) / 100,
		Description:       req.Description,
		ExternalReference: req.OrderID,
		Payer:             mpPayer{Email: req.CustomerEmail},
	}

	var resp mpPaymentResponse
	if err := g.doRequest(ctx, http.MethodPost, "/v1/payments", req.OrderID, body, &resp); err != nil {
		return nil, err
	}

	canonical := g.statuses.Canonical(resp.Status)
	if canonical == models.StatusCancelled {
		return nil, fmt.Errorf("mercadopago refused payment (%s/%s): %w", resp.Status, resp.StatusDetail, ErrPaymentRejected)
	}

	return &PaymentResult{
		TransactionID: strconv.FormatInt(resp.ID, 10),
		NativeStatus:  resp.Status,
		Status:        canonical,
	}, nil
}

func (g *MercadoPagoGateway) GetPaymentStatus(ctx context.Context, transactionID string) (models.OrderStatus, error) {
	var resp mpPaymentResponse
	if err := g.doRequest(ctx, http.MethodGet, "/v1/payments/"+transactionID, "", nil, &resp); err != nil {
		return models.StatusUnknown, err
	}
	return g.statuses.Canonical(resp.Status), nil
}

// ---- HTTP helper ----

func (g *MercadoPagoGateway) doRequest(ctx context.Context, method, path, idempotencyKey string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Gateway: g.Name(), Err: fmt.Errorf("marshal request: %w", err)}
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reqBody)
	if err != nil {
		return &TransportError{Gateway: g.Name(), Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return &TransportError{Gateway: g.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Gateway: g.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("mercadopago payment %s%s: %w", method, path, ErrTransactionNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{
			Gateway:    g.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("mercadopago API error: %s", string(respBytes)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return &TransportError{Gateway: g.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}
