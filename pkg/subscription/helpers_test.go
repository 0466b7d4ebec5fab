package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) InitiateCheckout(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutHandle, error) {
	args := m.Called(ctx, req)
	if h := args.Get(0); h != nil {
		return h.(*subscription.CheckoutHandle), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockGateway) ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.WebhookEvent, error) {
	args := m.Called(ctx, payload, signature)
	if ev := args.Get(0); ev != nil {
		return ev.(*subscription.WebhookEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockInvoices struct {
	mock.Mock
}

func (m *mockInvoices) PriceCommitted(ctx context.Context, c subscription.PriceCommitment) error {
	return m.Called(ctx, c).Error(0)
}

type fixture struct {
	svc        *subscription.Service
	clock      *clock
	gateway    *mockGateway
	invoices   *mockInvoices
	promotions *promotion.Registry
	audit      *audit.MemoryStorage
	store      subscription.Store
}

func testPlans() []catalog.Plan {
	return []catalog.Plan{
		{ID: "starter", Name: "Starter", PriceMonthly: 45000, PriceYearly: 450000, Currency: "COP", Active: true, SortRank: 1},
		{ID: "profesional", Name: "Profesional", PriceMonthly: 89000, PriceYearly: 890000, Currency: "COP", Active: true, SortRank: 2},
		{ID: "empresarial", Name: "Empresarial", ContactSales: true, Active: true, SortRank: 3},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cat, err := catalog.NewCatalog(context.Background(), catalog.NewInMemSource(testPlans()...))
	require.NoError(t, err)

	f := &fixture{
		clock:    &clock{now: epoch},
		gateway:  &mockGateway{},
		invoices: &mockInvoices{},
		audit:    audit.NewMemoryStorage(),
		store:    subscription.NewMemoryStore(),
	}
	f.gateway.On("InitiateCheckout", mock.Anything, mock.Anything).
		Return(&subscription.CheckoutHandle{ID: "chk_test", URL: "https://pay.example.com/chk_test"}, nil).
		Maybe()
	f.invoices.On("PriceCommitted", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.promotions = promotion.NewRegistry(promotion.NewMemoryStore(), cat, promotion.WithClock(f.clock.Now))
	f.svc = subscription.NewService(cat, f.promotions, f.store,
		subscription.WithPaymentGateway(f.gateway),
		subscription.WithInvoiceNotifier(f.invoices),
		subscription.WithAuditLogger(audit.NewLogger(f.audit, audit.WithClock(f.clock.Now))),
		subscription.WithClock(f.clock.Now),
	)
	return f
}

// service builds a second service over the fixture's collaborators with a
// different store. Extra options are applied last.
func (f *fixture) service(t *testing.T, store subscription.Store, opts ...subscription.ServiceOption) *subscription.Service {
	t.Helper()
	cat, err := catalog.NewCatalog(context.Background(), catalog.NewInMemSource(testPlans()...))
	require.NoError(t, err)
	return subscription.NewService(cat, f.promotions, store, append([]subscription.ServiceOption{
		subscription.WithPaymentGateway(f.gateway),
		subscription.WithInvoiceNotifier(f.invoices),
		subscription.WithAuditLogger(audit.NewLogger(f.audit, audit.WithClock(f.clock.Now))),
		subscription.WithClock(f.clock.Now),
	}, opts...)...)
}

// charge reports a successful charge for the month starting at start.
func charge(tenantID uuid.UUID, start time.Time) subscription.ChargeSucceeded {
	return subscription.ChargeSucceeded{
		CorrelationID: uuid.NewString(),
		TenantID:      tenantID,
		PeriodStart:   start,
		PeriodEnd:     start.AddDate(0, 1, 0),
	}
}

// subscribe takes a new tenant through checkout and its first charge.
func (f *fixture) subscribe(t *testing.T, planID string, cycle catalog.Cycle) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	tenantID := uuid.New()

	_, err := f.svc.InitiateCheckout(ctx, tenantID, subscription.CheckoutParams{PlanID: planID, Cycle: cycle})
	require.NoError(t, err)

	now := f.clock.Now()
	require.NoError(t, f.svc.HandleChargeSucceeded(ctx, subscription.ChargeSucceeded{
		CorrelationID: uuid.NewString(),
		TenantID:      tenantID,
		PeriodStart:   now,
		PeriodEnd:     cycle.Advance(now),
	}))
	return tenantID
}

func (f *fixture) createPromotion(t *testing.T, code string, pct int64, cycles int) {
	t.Helper()
	_, err := f.promotions.Create(context.Background(), promotion.CreateParams{
		Code:           code,
		Kind:           promotion.KindPercentage,
		Value:          decimal.NewFromInt(pct),
		DurationCycles: cycles,
	})
	require.NoError(t, err)
}

func (f *fixture) actions(t *testing.T, tenantID uuid.UUID) []string {
	t.Helper()
	events, err := f.audit.Query(context.Background(), audit.Filter{TenantID: tenantID.String()})
	require.NoError(t, err)
	out := make([]string, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		out = append(out, events[i].Action)
	}
	return out
}
