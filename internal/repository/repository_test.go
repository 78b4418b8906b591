package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "mysql")
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, mock
}

var payoutCols = []string{
	"id", "provider_id", "payment_id", "external_transfer_id", "amount", "platform_fee",
	"original_amount", "currency", "status", "idempotency_key", "payout_date", "description",
	"failure_reason", "created_at", "updated_at",
}

func completedRow(rows *sqlmock.Rows, id string, paymentID int64) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, int64(3), paymentID, "tr_"+id, int64(5850), int64(650),
		int64(6500), "usd", "completed", "payout-key", now, nil, nil, now, now)
}

func TestGetActiveByPaymentID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPayoutsRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM payouts WHERE payment_id = \? AND status IN`).
		WithArgs(int64(11)).
		WillReturnRows(completedRow(sqlmock.NewRows(payoutCols), "01P", 11))
	mock.ExpectQuery(`SELECT (.+) FROM payouts WHERE payment_id = \?`).
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows(payoutCols))
	mock.ExpectRollback()
	mock.ExpectQuery(`SELECT (.+) FROM payouts WHERE payment_id = \?`).
		WithArgs(int64(11)).
		WillReturnRows(completedRow(sqlmock.NewRows(payoutCols), "01P", 11))

	tx, err := db.BeginTxx(ctx, nil)
	require.NoError(t, err)

	p, err := repo.GetActiveByPaymentID(ctx, tx, 11)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "01P", p.ID)
	assert.Equal(t, model.PayoutCompleted, p.Status)
	require.NotNil(t, p.ExternalTransferID)
	assert.Equal(t, "tr_01P", *p.ExternalTransferID)
	assert.Nil(t, p.Description)
	assert.True(t, p.Balanced())

	p, err = repo.GetActiveByPaymentID(ctx, tx, 12)
	require.NoError(t, err)
	assert.Nil(t, p)

	require.NoError(t, tx.Rollback())

	p, err = repo.GetActiveByPaymentID(ctx, nil, 11)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "01P", p.ID)
}

func TestInsertOwnTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPayoutsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO payouts`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	p := &model.Payout{
		ID: "01F", ProviderID: 3, PaymentID: 9, Amount: 900, PlatformFee: 100,
		OriginalAmount: 1000, Currency: "usd", Status: model.PayoutFailed,
		FailureReason: model.StrPtr("transfer declined"),
	}
	require.NoError(t, repo.Insert(context.Background(), nil, p))
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestInsertDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPayoutsRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO payouts`).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	err := repo.Insert(context.Background(), nil, &model.Payout{ID: "01D", Status: model.PayoutCompleted})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUpdateStatus(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPayoutsRepository(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payouts SET status = \?, updated_at = \? WHERE id = \?`).
		WithArgs("retried", sqlmock.AnyArg(), "01F").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	require.NoError(t, repo.UpdateStatus(ctx, nil, "01F", model.PayoutRetried))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payouts`).
		WithArgs("retried", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()
	assert.ErrorIs(t, repo.UpdateStatus(ctx, nil, "missing", model.PayoutRetried), ErrNotFound)
}

func TestListAndCountByProvider(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPayoutsRepository(db)
	ctx := context.Background()
	q := model.HistoryQuery{ProviderID: 3, Limit: 10, Offset: 0, Status: model.PayoutCompleted}

	rows := sqlmock.NewRows(payoutCols)
	completedRow(rows, "01A", 1)
	completedRow(rows, "01B", 2)
	mock.ExpectQuery(`SELECT (.+) FROM payouts WHERE provider_id = \? AND status = \? ORDER BY created_at DESC, id DESC LIMIT \? OFFSET \?`).
		WithArgs(int64(3), "completed", 10, 0).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payouts WHERE provider_id = \? AND status = \?`).
		WithArgs(int64(3), "completed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	list, err := repo.ListByProvider(ctx, q)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := repo.CountByProvider(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 12, n)
}

func TestGetReceiptOnlyCompleted(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPayoutsRepository(db)

	mock.ExpectQuery(`FROM payouts po (.+) WHERE po.id = \? AND po.status = 'completed'`).
		WithArgs("01F").
		WillReturnRows(sqlmock.NewRows([]string{"payout_id"}))

	rc, err := repo.GetReceipt(context.Background(), "01F")
	require.NoError(t, err)
	assert.Nil(t, rc)
}

func TestGetSettlementContext(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentsRepository(db)

	mock.ExpectQuery(`FROM payments p JOIN providers pr ON pr.id = p.provider_id LEFT JOIN services s`).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{
			"payment_id", "amount", "currency", "payment_status", "provider_id",
			"settlement_account_id", "service_id", "service_title", "platform_fee_percent",
		}).AddRow(int64(7), int64(6500), "usd", "completed", int64(3), "acct_3", int64(2), "Plumbing", nil))

	sc, err := repo.GetSettlementContext(context.Background(), nil, 7)
	require.NoError(t, err)
	require.NotNil(t, sc)
	assert.True(t, sc.Completed())
	assert.Equal(t, int64(6500), sc.Amount)
	assert.Nil(t, sc.FeePercent)
	require.NotNil(t, sc.ServiceID)
	assert.Equal(t, int64(2), *sc.ServiceID)
}

func TestListPendingSettlement(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentsRepository(db)

	now := time.Now()
	mock.ExpectQuery(`WHERE p.status = 'completed' AND NOT EXISTS \(SELECT 1 FROM payouts po WHERE po.payment_id = p.id\)`).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider_id", "amount", "completed_at"}).
			AddRow(int64(1), int64(3), int64(1000), now).
			AddRow(int64(2), int64(3), int64(2000), now))

	list, err := repo.ListPendingSettlement(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, int64(2), list[1].PaymentID)
}

func TestServiceFeePercent(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentsRepository(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT platform_fee_percent FROM services WHERE id = \?`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"platform_fee_percent"}).AddRow(7.5))
	mock.ExpectQuery(`SELECT platform_fee_percent FROM services WHERE id = \?`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"platform_fee_percent"}).AddRow(nil))

	pct, err := repo.ServiceFeePercent(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, pct)
	assert.Equal(t, 7.5, *pct)

	pct, err = repo.ServiceFeePercent(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, pct)
}

func TestProvidersRepository(t *testing.T) {
	db, mock := newMock(t)
	repo := NewProvidersRepository(db)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectQuery(`FROM providers WHERE id = \?`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "email", "is_verified", "settlement_account_id", "created_at", "updated_at",
		}).AddRow(int64(3), "Ada Plumbing", "ada@example.com", true, nil, now, now))
	mock.ExpectExec(`UPDATE providers SET settlement_account_id = \?`).
		WithArgs("acct_new", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p, err := repo.GetByID(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.Verified)
	assert.False(t, p.HasSettlementAccount())

	require.NoError(t, repo.SetSettlementAccount(ctx, 3, "acct_new"))
}

func TestOutboxInsertJSON(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOutboxRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs("payout", "01P", TopicPayoutCompleted, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.InsertJSON(context.Background(), nil, "payout", "01P", TopicPayoutCompleted,
		model.PayoutEvent{PayoutID: "01P", Status: model.PayoutCompleted})
	require.NoError(t, err)
}

func TestOutboxListByAggregate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewOutboxRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "aggregate", "aggregate_id", "topic", "payload", "created_at", "updated_at"}).
		AddRow(int64(1), "payout", "01P", TopicPayoutFailed, []byte(`{"payout_id":"01P","status":"failed"}`), now, now)
	mock.ExpectQuery(`SELECT id, aggregate, aggregate_id, topic, payload, created_at, updated_at\s+FROM outbox`).
		WithArgs("payout", "01P").
		WillReturnRows(rows)

	events, err := repo.ListByAggregate(context.Background(), "payout", "01P")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TopicPayoutFailed, events[0].Topic)
	assert.JSONEq(t, `{"payout_id":"01P","status":"failed"}`, string(events[0].Payload))
}

func TestCHPayoutsCount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewCHPayoutsRepository(db)

	mock.ExpectQuery(`SELECT count\(\) FROM payouts.payouts_latest WHERE provider_id = \?`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"count()"}).AddRow(uint64(4)))

	n, err := repo.CountByProvider(context.Background(), model.HistoryQuery{ProviderID: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}
