package repository_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"billing-service/models"
	"billing-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	assert.NoError(t, err)
	return gormDB, mock
}

func orderRows(id uuid.UUID, status models.OrderStatus, txID *string, createdAt time.Time) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "customer_email", "product_id", "amount", "currency",
		"gateway", "gateway_transaction_id", "status", "provisioned",
		"created_at", "updated_at",
	})
	rows.AddRow(id, "buyer@example.com", "prod-1", 19900, "BRL",
		models.GatewayMercadoPago, txID, status, false, createdAt, createdAt)
	return rows
}

func TestCreate_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	order := &models.Order{
		ID:            uuid.New(),
		CustomerEmail: "buyer@example.com",
		ProductID:     "prod-1",
		Amount:        19900,
		Currency:      "BRL",
		Gateway:       models.GatewayMercadoPago,
		Status:        models.StatusPending,
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "orders"`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Create(context.Background(), order)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByID_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	o, err := repo.FindByID(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
	assert.Nil(t, o)
}

func TestListPendingSince_UsesWindow(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()
	tx := "mp-123"
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders" WHERE status = $1 AND created_at >= $2`)).
		WillReturnRows(orderRows(id, models.StatusPending, &tx, time.Now().Add(-time.Hour)))

	orders, err := repo.ListPendingSince(context.Background(), 24*time.Hour)
	assert.NoError(t, err)
	assert.Len(t, orders, 1)
	assert.Equal(t, id, orders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStatusTransition_Updates(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()
	tx := "mp-123"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(orderRows(id, models.StatusPending, &tx, time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order, err := repo.ApplyStatusTransition(context.Background(), id, models.StatusPaid)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusPaid, order.Status)
}

// An equal status is an idempotent no-op: no UPDATE is issued.
func TestApplyStatusTransition_NoOpOnEqualStatus(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()
	tx := "mp-123"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(orderRows(id, models.StatusPending, &tx, time.Now()))
	mock.ExpectCommit()

	order, err := repo.ApplyStatusTransition(context.Background(), id, models.StatusPending)
	assert.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyStatusTransition_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))
	mock.ExpectRollback()

	_, err := repo.ApplyStatusTransition(context.Background(), uuid.New(), models.StatusPaid)
	assert.ErrorIs(t, err, repository.ErrOrderNotFound)
}

func TestApplyStatusTransition_RefusesTerminalToPending(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()
	tx := "mp-123"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(orderRows(id, models.StatusPaid, &tx, time.Now()))
	mock.ExpectRollback()

	_, err := repo.ApplyStatusTransition(context.Background(), id, models.StatusPending)
	assert.ErrorIs(t, err, repository.ErrTerminalTransition)
}

func TestMarkProvisioned_FlipsOnce(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	flipped, err := repo.MarkProvisioned(context.Background(), id)
	assert.NoError(t, err)
	assert.True(t, flipped)
}

func TestMarkProvisioned_AlreadyProvisioned(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	flipped, err := repo.MarkProvisioned(context.Background(), id)
	assert.NoError(t, err)
	assert.False(t, flipped)
}

func TestAppendAudit(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "order_audits"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := repo.AppendAudit(context.Background(), &models.OrderAudit{
		OrderID:   uuid.New(),
		OldStatus: models.StatusPending,
		NewStatus: models.StatusPaid,
		Gateway:   models.GatewayMercadoPago,
	})
	assert.NoError(t, err)
}
