package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmehdipour/payout-engine/internal/fee"
	"github.com/jmehdipour/payout-engine/internal/model"
	"github.com/jmehdipour/payout-engine/internal/processor"
	"github.com/jmehdipour/payout-engine/internal/repository"
	"github.com/jmoiron/sqlx"
)

// ---- payouts ----

type fakePayouts struct {
	mu        sync.Mutex
	rows      []*model.Payout
	insertErr error
	updateErr error
	receipt   *model.Receipt
	total     int

	// racer is inserted right after the first active lookup misses, as a
	// concurrent settlement would.
	racer *model.Payout
}

func (f *fakePayouts) GetActiveByPaymentID(_ context.Context, _ *sqlx.Tx, paymentID int64) (*model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.rows) - 1; i >= 0; i-- {
		if r := f.rows[i]; r.PaymentID == paymentID && r.Status.Active() {
			cp := *r
			return &cp, nil
		}
	}
	if f.racer != nil {
		f.rows = append(f.rows, f.racer)
		f.racer = nil
	}
	return nil, nil
}

func (f *fakePayouts) GetByID(_ context.Context, id string) (*model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakePayouts) Insert(_ context.Context, _ *sqlx.Tx, p *model.Payout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, r := range f.rows {
		if r.ID == p.ID {
			return repository.ErrDuplicate
		}
		if p.Status.Active() && r.PaymentID == p.PaymentID && r.Status.Active() {
			return repository.ErrDuplicate
		}
	}
	cp := *p
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakePayouts) UpdateStatus(_ context.Context, _ *sqlx.Tx, id string, status model.PayoutStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	for _, r := range f.rows {
		if r.ID == id {
			r.Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakePayouts) GetReceipt(context.Context, string) (*model.Receipt, error) {
	return f.receipt, nil
}

func (f *fakePayouts) ListByProvider(_ context.Context, q model.HistoryQuery) ([]model.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Payout{}
	for _, r := range f.rows {
		if r.ProviderID == q.ProviderID && (q.Status == "" || r.Status == q.Status) {
			out = append(out, *r)
		}
	}
	if q.Offset >= len(out) {
		return []model.Payout{}, nil
	}
	out = out[q.Offset:]
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (f *fakePayouts) CountByProvider(_ context.Context, q model.HistoryQuery) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.total > 0 {
		return f.total, nil
	}
	n := 0
	for _, r := range f.rows {
		if r.ProviderID == q.ProviderID && (q.Status == "" || r.Status == q.Status) {
			n++
		}
	}
	return n, nil
}

func (f *fakePayouts) byPayment(paymentID int64) []model.Payout {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Payout
	for _, r := range f.rows {
		if r.PaymentID == paymentID {
			out = append(out, *r)
		}
	}
	return out
}

// ---- payments ----

type fakePayments struct {
	contexts map[int64]*model.SettlementContext
	scanErr  error
}

func (f *fakePayments) GetSettlementContext(_ context.Context, _ *sqlx.Tx, paymentID int64) (*model.SettlementContext, error) {
	sc, ok := f.contexts[paymentID]
	if !ok {
		return nil, nil
	}
	cp := *sc
	return &cp, nil
}

func (f *fakePayments) ListPendingSettlement(_ context.Context, limit int) ([]model.PendingPayment, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	ids := make([]int64, 0, len(f.contexts))
	for id := range f.contexts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []model.PendingPayment{}
	for _, id := range ids {
		sc := f.contexts[id]
		if !sc.Completed() {
			continue
		}
		out = append(out, model.PendingPayment{PaymentID: id, ProviderID: sc.ProviderID, Amount: sc.Amount})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakePayments) ServiceFeePercent(context.Context, int64) (*float64, error) {
	return nil, nil
}

// ---- providers ----

type fakeProviders struct {
	providers map[int64]*model.Provider
	linked    map[int64]string
}

func (f *fakeProviders) GetByID(_ context.Context, id int64) (*model.Provider, error) {
	p, ok := f.providers[id]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProviders) SetSettlementAccount(_ context.Context, id int64, accountID string) error {
	p, ok := f.providers[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.SettlementAccount = &accountID
	if f.linked == nil {
		f.linked = map[int64]string{}
	}
	f.linked[id] = accountID
	return nil
}

// ---- outbox ----

type outboxRow struct {
	aggregateID string
	topic       string
	payload     any
}

type fakeOutbox struct {
	mu   sync.Mutex
	rows []outboxRow
	err  error
}

func (f *fakeOutbox) Insert(_ context.Context, _ *sqlx.Tx, _, aggregateID, topic string, payload []byte) error {
	return f.InsertJSON(context.Background(), nil, "", aggregateID, topic, payload)
}

func (f *fakeOutbox) InsertJSON(_ context.Context, _ *sqlx.Tx, _, aggregateID, topic string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, outboxRow{aggregateID: aggregateID, topic: topic, payload: payload})
	return nil
}

func (f *fakeOutbox) ListByAggregate(_ context.Context, aggregate, aggregateID string) ([]model.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.OutboxEvent{}
	for i, r := range f.rows {
		if r.aggregateID != aggregateID {
			continue
		}
		b, err := json.Marshal(r.payload)
		if err != nil {
			return nil, err
		}
		out = append(out, model.OutboxEvent{ID: int64(i + 1), Aggregate: aggregate, AggregateID: aggregateID, Topic: r.topic, Payload: b})
	}
	return out, nil
}

func (f *fakeOutbox) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.rows))
	for _, r := range f.rows {
		out = append(out, r.topic)
	}
	return out
}

// ---- processor ----

type fakeProcessor struct {
	mu          sync.Mutex
	transferErr error
	transfers   []processor.TransferRequest
	keys        []string
	account     *processor.Account
	accountErr  error
	balance     *processor.Balance
	balanceErr  error
	created     []processor.AccountProfile
	links       []processor.OnboardingLinkRequest

	// afterTransfer runs once a transfer has been accepted.
	afterTransfer func()
}

func (f *fakeProcessor) CreateTransfer(_ context.Context, req processor.TransferRequest, key string) (*processor.Transfer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transfers = append(f.transfers, req)
	f.keys = append(f.keys, key)
	if f.transferErr != nil {
		return nil, f.transferErr
	}
	if f.afterTransfer != nil {
		f.afterTransfer()
	}
	return &processor.Transfer{ID: fmt.Sprintf("tr_%d", len(f.transfers)), Amount: req.Amount, Currency: req.Currency}, nil
}

func (f *fakeProcessor) RetrieveAccount(context.Context, string) (*processor.Account, error) {
	if f.accountErr != nil {
		return nil, f.accountErr
	}
	if f.account == nil {
		return nil, errors.New("no account")
	}
	return f.account, nil
}

func (f *fakeProcessor) CreateAccount(_ context.Context, profile processor.AccountProfile) (*processor.Account, error) {
	f.created = append(f.created, profile)
	return &processor.Account{ID: "acct_new"}, nil
}

func (f *fakeProcessor) CreateOnboardingLink(_ context.Context, req processor.OnboardingLinkRequest) (*processor.OnboardingLink, error) {
	f.links = append(f.links, req)
	return &processor.OnboardingLink{URL: "https://connect.example/" + req.AccountID}, nil
}

func (f *fakeProcessor) RetrieveBalance(context.Context, string) (*processor.Balance, error) {
	return f.balance, f.balanceErr
}

func (f *fakeProcessor) transferCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transfers)
}

// ---- eligibility / dead letter ----

type eligibleAll bool

func (e eligibleAll) IsEligible(context.Context, int64) bool { return bool(e) }

type fakeDeadLetter struct {
	pushed []*model.Payout
	err    error
}

func (f *fakeDeadLetter) Push(_ context.Context, p *model.Payout) error {
	if f.err != nil {
		return f.err
	}
	f.pushed = append(f.pushed, p)
	return nil
}

// ---- harness ----

type harness struct {
	svc        *Service
	mock       sqlmock.Sqlmock
	payouts    *fakePayouts
	payments   *fakePayments
	providers  *fakeProviders
	outbox     *fakeOutbox
	proc       *fakeProcessor
	deadLetter *fakeDeadLetter
}

func completedPayment(id, providerID, amount int64) *model.SettlementContext {
	return &model.SettlementContext{
		PaymentID:         id,
		Amount:            amount,
		Currency:          "usd",
		PaymentStatus:     model.PaymentCompleted,
		ProviderID:        providerID,
		SettlementAccount: model.StrPtr(fmt.Sprintf("acct_%d", providerID)),
		ServiceTitle:      model.StrPtr("Kitchen sink repair"),
	}
}

func newHarness(t *testing.T, eligible bool, payments ...*model.SettlementContext) *harness {
	t.Helper()
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("sql expectations: %v", err)
		}
		_ = raw.Close()
	})

	h := &harness{
		mock:       mock,
		payouts:    &fakePayouts{},
		payments:   &fakePayments{contexts: map[int64]*model.SettlementContext{}},
		providers:  &fakeProviders{providers: map[int64]*model.Provider{}},
		outbox:     &fakeOutbox{},
		proc:       &fakeProcessor{},
		deadLetter: &fakeDeadLetter{},
	}
	for _, sc := range payments {
		h.payments.contexts[sc.PaymentID] = sc
	}

	h.svc = New(Deps{
		DB:          sqlx.NewDb(raw, "sqlmock"),
		Payouts:     h.payouts,
		Payments:    h.payments,
		Providers:   h.providers,
		Outbox:      h.outbox,
		Processor:   h.proc,
		Eligibility: eligibleAll(eligible),
		Fees:        fee.NewCalculator(10, h.payments, nil),
		DeadLetter:  h.deadLetter,
	}, Options{Currency: "usd"})
	return h
}

// expectSettled: one transaction that commits.
func (h *harness) expectSettled() {
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}

// expectFailed: the settlement transaction rolls back and the failed row is
// written in its own transaction.
func (h *harness) expectFailed() {
	h.mock.ExpectBegin()
	h.mock.ExpectRollback()
	h.mock.ExpectBegin()
	h.mock.ExpectCommit()
}
