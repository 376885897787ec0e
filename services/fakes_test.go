package services_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"billing-service/gateways"
	"billing-service/models"
	"billing-service/repository"

	"github.com/google/uuid"
)

// ---- in-memory OrderRepository ----

type memOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*models.Order
	audits []models.OrderAudit

	listErr       error
	transitionErr error
	auditErr      error
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[uuid.UUID]*models.Order)}
}

func (r *memOrderRepo) put(o *models.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	r.orders[o.ID] = &cp
}

func (r *memOrderRepo) get(id uuid.UUID) *models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		cp := *o
		return &cp
	}
	return nil
}

func (r *memOrderRepo) auditCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.audits)
}

func (r *memOrderRepo) Create(ctx context.Context, order *models.Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	r.put(order)
	return nil
}

func (r *memOrderRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if o := r.get(id); o != nil {
		return o, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (r *memOrderRepo) ListPendingSince(ctx context.Context, window time.Duration) ([]models.Order, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-window)
	var out []models.Order
	for _, o := range r.orders {
		if o.Status == models.StatusPending && !o.CreatedAt.Before(cutoff) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) ApplyStatusTransition(ctx context.Context, orderID uuid.UUID, newStatus models.OrderStatus) (*models.Order, error) {
	if r.transitionErr != nil {
		return nil, r.transitionErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	if o.Status == newStatus {
		cp := *o
		return &cp, nil
	}
	if o.Status.IsTerminal() && newStatus == models.StatusPending {
		return nil, repository.ErrTerminalTransition
	}
	o.Status = newStatus
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) SetGatewayResult(ctx context.Context, orderID uuid.UUID, gw models.Gateway, transactionID *string, status models.OrderStatus, cascadedFrom *models.Gateway) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	o.Gateway = gw
	o.Status = status
	if transactionID != nil {
		o.GatewayTransactionID = transactionID
	}
	if cascadedFrom != nil {
		o.CascadedFrom = cascadedFrom
	}
	o.UpdatedAt = time.Now()
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) AppendAudit(ctx context.Context, audit *models.OrderAudit) error {
	if r.auditErr != nil {
		return r.auditErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.audits = append(r.audits, *audit)
	return nil
}

func (r *memOrderRepo) MarkProvisioned(ctx context.Context, orderID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != models.StatusPaid || o.Provisioned {
		return false, nil
	}
	o.Provisioned = true
	return true, nil
}

// ---- fake PaymentGateway ----

type fakeGateway struct {
	mu          sync.Mutex
	name        models.Gateway
	statusByTx  map[string]models.OrderStatus
	statusErr   error
	createRes   *gateways.PaymentResult
	createErr   error
	createCalls int
	statusCalls int
	onStatus    func() // invoked on every GetPaymentStatus call
}

func (g *fakeGateway) Name() models.Gateway { return g.name }

func (g *fakeGateway) CreatePayment(ctx context.Context, req gateways.PaymentRequest) (*gateways.PaymentResult, error) {
	g.mu.Lock()
	g.createCalls++
	g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	return g.createRes, nil
}

func (g *fakeGateway) GetPaymentStatus(ctx context.Context, transactionID string) (models.OrderStatus, error) {
	g.mu.Lock()
	g.statusCalls++
	g.mu.Unlock()
	if g.onStatus != nil {
		g.onStatus()
	}
	if g.statusErr != nil {
		return models.StatusUnknown, g.statusErr
	}
	if s, ok := g.statusByTx[transactionID]; ok {
		return s, nil
	}
	return models.StatusUnknown, gateways.ErrTransactionNotFound
}

// ---- fake delivery action ----

type fakeDeliverer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (d *fakeDeliverer) DeliverAccess(ctx context.Context, order *models.Order) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return d.err
}

func (d *fakeDeliverer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// ---- fake view invalidator ----

type fakeInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeInvalidator) InvalidateOrderViews(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeInvalidator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var errStoreDown = errors.New("store unreachable")
