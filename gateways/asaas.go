package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"billing-service/models"
)

const asaasBaseURL = "https://api.asaas.com/v3"

// AsaasGateway implements PaymentGateway against the Asaas payments API.
// This is the secondary (cascade fallback) gateway.
type AsaasGateway struct {
	apiKey     string
	baseURL    string
	statuses   StatusMapping
	httpClient *http.Client
}

// NewAsaasGateway creates an Asaas client with the default status mapping.
func NewAsaasGateway(apiKey string, timeout time.Duration) *AsaasGateway {
	return &AsaasGateway{
		apiKey:   apiKey,
		baseURL:  asaasBaseURL,
		statuses: AsaasStatuses,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NewAsaasGatewayWithBaseURL is used by tests pointing at a fake server.
func NewAsaasGatewayWithBaseURL(apiKey, baseURL string, statuses StatusMapping, timeout time.Duration) *AsaasGateway {
	return &AsaasGateway{
		apiKey:     apiKey,
		baseURL:    baseURL,
		statuses:   statuses,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *AsaasGateway) Name() models.Gateway { return models.GatewayAsaas }

// ---- Asaas API request/response structs ----

type asaasPaymentRequest struct {
	CustomerEmail     string  `json:"customerEmail"`
	BillingType       string  `json:"billingType"`
	Value             float64 `json:"value"`
	Description       string  `json:"description"`
	ExternalReference string  `json:"externalReference"`
}

type asaasPaymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type asaasErrorResponse struct {
	Errors []struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"errors"`
}

// ---- PaymentGateway implementation ----

func (g *AsaasGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	body := asaasPaymentRequest{
		CustomerEmail:     req.CustomerEmail,
		BillingType:       "UNDEFINED",
		Value:             float64(req.Amount) / 100,
		Description:       req.Description,
		ExternalReference: req.OrderID,
	}

	var resp asaasPaymentResponse
	if err := g.doRequest(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return nil, err
	}

	canonical := g.statuses.Canonical(resp.Status)
	if canonical == models.StatusCancelled {
		return nil, fmt.Errorf("asaas refused payment (%s): %w", resp.Status, ErrPaymentRejected)
	}

	return &PaymentResult{
		TransactionID: resp.ID,
		NativeStatus:  resp.Status,
		Status:        canonical,
	}, nil
}

func (g *AsaasGateway) GetPaymentStatus(ctx context.Context, transactionID string) (models.OrderStatus, error) {
	var resp asaasPaymentResponse
	if err := g.doRequest(ctx, http.MethodGet, "/payments/"+transactionID, nil, &resp); err != nil {
		return models.StatusUnknown, err
	}
	return g.statuses.Canonical(resp.Status), nil
}

// ---- HTTP helper ----

func (g *AsaasGateway) doRequest(ctx context.Context, method, path string, body interface{}, out interface{}) error {
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
	req.Header.Set("access_token", g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return &TransportError{Gateway: g.Name(), Err: err}
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Gateway: g.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("asaas payment %s%s: %w", method, path, ErrTransactionNotFound)
	case resp.StatusCode == http.StatusBadRequest && method == http.MethodPost:
		// Asaas reports card refusals as a 400 with an errors array. That is
		// a definitive answer from the gateway, not a transport failure.
		var apiErr asaasErrorResponse
		if err := json.Unmarshal(respBytes, &apiErr); err == nil && len(apiErr.Errors) > 0 {
			return fmt.Errorf("asaas refused payment (%s: %s): %w",
				apiErr.Errors[0].Code, apiErr.Errors[0].Description, ErrPaymentRejected)
		}
		return &TransportError{Gateway: g.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("asaas API error: %s", string(respBytes))}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &TransportError{
			Gateway:    g.Name(),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("asaas API error: %s", string(respBytes)),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBytes, out); err != nil {
			return &TransportError{Gateway: g.Name(), StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}
