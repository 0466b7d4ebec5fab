package billing_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/modules/billing"
	"github.com/dmitrymomot/freightbill/pkg/audit"
	"github.com/dmitrymomot/freightbill/pkg/billingmetrics"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/limits"
	"github.com/dmitrymomot/freightbill/pkg/payment"
	"github.com/dmitrymomot/freightbill/pkg/promotion"
	"github.com/dmitrymomot/freightbill/pkg/ratelimiter"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/webhook"
)

const (
	adminToken    = "ops-token"
	webhookSecret = "relay-secret"
)

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details map[string][]string `json:"details"`
	} `json:"error"`
}

type api struct {
	t      *testing.T
	server *httptest.Server
}

func newAPI(t *testing.T, extra ...billing.Option) *api {
	t.Helper()
	ctx := context.Background()

	cat, err := catalog.NewCatalog(ctx, catalog.NewInMemSource(
		catalog.Plan{ID: "starter", Name: "Starter", PriceMonthly: 45000, PriceYearly: 450000, Currency: "COP", Active: true, SortRank: 1,
			Limits: catalog.Limits{MaxUsers: 3, MaxOperationsPerMonth: 100, MaxClients: 20}},
		catalog.Plan{ID: "profesional", Name: "Profesional", PriceMonthly: 89000, PriceYearly: 890000, Currency: "COP", Active: true, SortRank: 2,
			Limits: catalog.Limits{MaxUsers: 10, MaxOperationsPerMonth: 1000, MaxClients: catalog.Unlimited}},
	))
	require.NoError(t, err)

	promos := promotion.NewRegistry(promotion.NewMemoryStore(), cat, promotion.WithClock(clock))
	gw, err := payment.NewSignedGateway(payment.SignedConfig{
		CheckoutURL: "https://pay.example.com/checkout",
		Secret:      webhookSecret,
	}, payment.WithClock(clock))
	require.NoError(t, err)

	trail := audit.NewMemoryStorage()
	usage := limits.NewMemoryUsageStore()
	svc := subscription.NewService(cat, promos, subscription.NewMemoryStore(),
		subscription.WithPaymentGateway(gw),
		subscription.WithAuditLogger(audit.NewLogger(trail, audit.WithClock(clock))),
		subscription.WithClock(clock),
	)

	opts := []billing.Option{
		billing.WithAdminTokens(adminToken),
		billing.WithSignatureHeader(payment.SignatureHeader(payment.ProviderSigned)),
		billing.WithMetrics(billingmetrics.NewAggregator(svc, billingmetrics.WithClock(clock))),
		billing.WithAuditStorage(trail),
		billing.WithLimits(limits.NewService(svc, cat, limits.StoreCounters(usage, clock),
			limits.WithUsageStore(usage),
			limits.WithClock(clock),
		)),
	}
	h := billing.NewHandler(svc, cat, promos, append(opts, extra...)...)
	srv := httptest.NewServer(billing.Router(h))
	t.Cleanup(srv.Close)
	return &api{t: t, server: srv}
}

func (a *api) do(method, path, body string, header map[string]string) (int, envelope) {
	a.t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, a.server.URL+path, r)
	require.NoError(a.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := a.server.Client().Do(req)
	require.NoError(a.t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(a.t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func (a *api) tenant(method, path string, tenant uuid.UUID, body string) (int, envelope) {
	return a.do(method, path, body, map[string]string{"X-Tenant-ID": tenant.String()})
}

func (a *api) admin(method, path, body string) (int, envelope) {
	return a.do(method, path, body, map[string]string{"Authorization": "Bearer " + adminToken})
}

func (a *api) webhook(n payment.SignedNotification) (int, envelope) {
	body, err := json.Marshal(n)
	require.NoError(a.t, err)
	sig, err := webhook.Sign(webhookSecret, body, now)
	require.NoError(a.t, err)
	return a.do(http.MethodPost, "/webhooks/payments", string(body), map[string]string{webhook.SignatureHeader: sig})
}

type subscriptionBody struct {
	Status                subscription.Status  `json:"status"`
	PlanID                string               `json:"plan_id"`
	Amount                catalog.Money        `json:"amount"`
	HasAccess             bool                 `json:"has_access"`
	AccompanimentEligible bool                 `json:"accompaniment_eligible"`
	AvailableEvents       []subscription.Event `json:"available_events"`
	Trial                 *subscription.Trial  `json:"trial"`
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func TestPlans(t *testing.T) {
	t.Parallel()
	a := newAPI(t)

	status, env := a.do(http.MethodGet, "/plans", "", nil)
	require.Equal(t, http.StatusOK, status)
	plans := decodeData[[]catalog.Plan](t, env)
	require.Len(t, plans, 2)
	assert.Equal(t, "starter", plans[0].ID)

	status, env = a.do(http.MethodGet, "/plans/compare?from=starter&to=profesional", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, env.Data)

	status, env = a.do(http.MethodGet, "/plans/compare?from=starter&to=enterprise", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "plan_not_found", env.Error.Code)
}

func TestTenantHeaderRequired(t *testing.T) {
	t.Parallel()
	a := newAPI(t)

	status, env := a.do(http.MethodGet, "/subscription", "", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "bad_request", env.Error.Code)

	status, _ = a.do(http.MethodGet, "/subscription", "", map[string]string{"X-Tenant-ID": "acme"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = a.tenant(http.MethodGet, "/subscription", uuid.New(), "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "subscription_not_found", env.Error.Code)
}

func TestTrialLifecycle(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	tenant := uuid.New()

	status, env := a.tenant(http.MethodPost, "/trial", tenant, `{"plan_id":"starter"}`)
	require.Equal(t, http.StatusCreated, status)
	sub := decodeData[subscriptionBody](t, env)
	assert.Equal(t, subscription.StatusTrialing, sub.Status)
	assert.True(t, sub.HasAccess)
	assert.Zero(t, sub.Amount.Amount)

	status, env = a.tenant(http.MethodPost, "/trial", tenant, `{"plan_id":"starter"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "subscription_exists", env.Error.Code)

	for range 2 {
		status, _ = a.tenant(http.MethodPost, "/trial/extend", tenant, "")
		require.Equal(t, http.StatusOK, status)
	}
	status, env = a.tenant(http.MethodPost, "/trial/extend", tenant, "")
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "extension_limit_reached", env.Error.Code)

	status, env = a.tenant(http.MethodPost, "/trial", uuid.New(), `{"plan_id":"starter","cycle":"weekly"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, env.Error.Details, "cycle")
}

func TestAdminRequiresToken(t *testing.T) {
	t.Parallel()
	a := newAPI(t)

	status, env := a.do(http.MethodGet, "/admin/subscriptions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", env.Error.Code)

	status, _ = a.do(http.MethodGet, "/admin/subscriptions", "", map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = a.admin(http.MethodGet, "/admin/subscriptions?status=bogus", "")
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "validation_error", env.Error.Code)
}

func TestPromotionCheckoutAndWebhook(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	tenant := uuid.New()

	status, env := a.admin(http.MethodPost, "/admin/promotions", `{"code":"descuento20","kind":"percentage","value":"20","eligible_plans":["starter"]}`)
	require.Equal(t, http.StatusCreated, status, env.Error)
	assert.Equal(t, "DESCUENTO20", decodeData[promotion.Promotion](t, env).Code)

	status, env = a.admin(http.MethodPost, "/admin/promotions", `{"code":"DESCUENTO20","kind":"fixed","value":"1"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "promotion_exists", env.Error.Code)

	status, env = a.tenant(http.MethodPost, "/promotions/validate", tenant, `{"code":"descuento20","plan_id":"profesional"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "promotion_not_applicable", env.Error.Code)

	status, env = a.tenant(http.MethodPost, "/promotions/validate", tenant, `{"code":"descuento20","plan_id":"starter"}`)
	require.Equal(t, http.StatusOK, status)
	preview := decodeData[map[string]any](t, env)
	assert.EqualValues(t, 36000, preview["monthly_amount"])

	status, env = a.tenant(http.MethodPost, "/checkout", tenant, `{"plan_id":"starter","promotion_code":"descuento20"}`)
	require.Equal(t, http.StatusCreated, status, env.Error)
	checkout := decodeData[subscription.Checkout](t, env)
	assert.Equal(t, int64(36000), checkout.Amount.Amount)
	assert.Contains(t, checkout.URL, "https://pay.example.com/checkout")

	status, env = a.tenant(http.MethodGet, "/checkout", tenant, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, checkout.Handle, decodeData[subscription.Checkout](t, env).Handle)

	charge := payment.SignedNotification{
		ID:          "evt_1",
		Type:        payment.SignedChargeSucceeded,
		TenantID:    tenant.String(),
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
		Amount:      catalog.Money{Amount: 36000, Currency: "COP"},
	}
	status, env = a.webhook(charge)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.JSONEq(t, `{"status":"applied"}`, string(env.Data))

	status, env = a.webhook(charge)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"duplicate"}`, string(env.Data))

	status, env = a.do(http.MethodPost, "/webhooks/payments", `{"id":"evt_2"}`, map[string]string{webhook.SignatureHeader: "t=1,v1=00"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_webhook", env.Error.Code)

	status, env = a.tenant(http.MethodGet, "/subscription", tenant, "")
	require.Equal(t, http.StatusOK, status)
	sub := decodeData[subscriptionBody](t, env)
	assert.Equal(t, subscription.StatusActive, sub.Status)
	assert.Equal(t, int64(36000), sub.Amount.Amount)

	status, env = a.admin(http.MethodGet, "/admin/promotions/descuento20", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(1), decodeData[promotion.Promotion](t, env).UsesCount)

	status, env = a.admin(http.MethodGet, "/admin/payments?tenant_id="+tenant.String(), "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decodeData[[]subscription.Payment](t, env), 1)
}

func TestSuspensionAndReporting(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	tenant := uuid.New()

	status, env := a.tenant(http.MethodPost, "/trial", tenant, `{"plan_id":"profesional"}`)
	require.Equal(t, http.StatusCreated, status)

	path := "/admin/tenants/" + tenant.String()
	status, env = a.admin(http.MethodPost, path+"/suspend", `{"reason":"chargeback under review"}`)
	assert.Equal(t, http.StatusConflict, status, "trials cannot be suspended")
	assert.Equal(t, "invalid_transition", env.Error.Code)

	status, env = a.tenant(http.MethodPost, "/checkout", tenant, `{"plan_id":"profesional"}`)
	require.Equal(t, http.StatusCreated, status, env.Error)
	status, _ = a.webhook(payment.SignedNotification{
		ID:          "evt_pro_1",
		Type:        payment.SignedChargeSucceeded,
		TenantID:    tenant.String(),
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
		Amount:      catalog.Money{Amount: 89000, Currency: "COP"},
	})
	require.Equal(t, http.StatusOK, status)

	status, env = a.admin(http.MethodPost, path+"/suspend", `{"reason":""}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "reason_required", env.Error.Code)

	status, env = a.admin(http.MethodPost, path+"/suspend", `{"reason":"chargeback under review"}`)
	require.Equal(t, http.StatusOK, status, env.Error)
	sub := decodeData[subscriptionBody](t, env)
	assert.Equal(t, subscription.StatusSuspended, sub.Status)
	assert.False(t, sub.HasAccess)

	status, env = a.admin(http.MethodPost, path+"/reactivate", "")
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, subscription.StatusActive, decodeData[subscriptionBody](t, env).Status)

	status, env = a.admin(http.MethodGet, "/admin/metrics", "")
	require.Equal(t, http.StatusOK, status)
	snap := decodeData[billingmetrics.Snapshot](t, env)
	assert.Equal(t, 1, snap.Tenants)

	status, env = a.admin(http.MethodGet, "/admin/audit?tenant_id="+tenant.String(), "")
	require.Equal(t, http.StatusOK, status)
	events := decodeData[[]audit.Event](t, env)
	assert.GreaterOrEqual(t, len(events), 3)

	status, env = a.admin(http.MethodPost, "/admin/sweep", "")
	require.Equal(t, http.StatusOK, status)
	report := decodeData[subscription.SweepReport](t, env)
	assert.Equal(t, 1, report.Scanned)
	assert.Zero(t, report.Failed)

	status, env = a.admin(http.MethodPost, path+"/cancel", `{"reason":"fraud"}`)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, subscription.StatusCancelled, decodeData[subscriptionBody](t, env).Status)

	status, env = a.admin(http.MethodGet, "/admin/subscriptions?status=cancelled", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, env.Meta["count"])
}

func TestEntitlementsAndUsage(t *testing.T) {
	t.Parallel()
	a := newAPI(t)
	tenant := uuid.New()

	status, env := a.tenant(http.MethodGet, "/entitlements", tenant, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "subscription_not_found", env.Error.Code)

	status, env = a.tenant(http.MethodPost, "/checkout", tenant, `{"plan_id":"profesional"}`)
	require.Equal(t, http.StatusCreated, status, env.Error)
	status, _ = a.webhook(payment.SignedNotification{
		ID:          "evt_usage",
		Type:        payment.SignedChargeSucceeded,
		TenantID:    tenant.String(),
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
		Amount:      catalog.Money{Amount: 89000, Currency: "COP"},
	})
	require.Equal(t, http.StatusOK, status)

	status, env = a.tenant(http.MethodPost, "/usage", tenant, `{"resource":"users","delta":4}`)
	require.Equal(t, http.StatusOK, status, env.Error)
	assert.Equal(t, limits.UsageInfo{Current: 4, Limit: 10, Percent: 40}, decodeData[limits.UsageInfo](t, env))

	status, env = a.tenant(http.MethodPost, "/usage", tenant, `{"resource":"users","delta":7}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "limit_exceeded", env.Error.Code)

	status, env = a.tenant(http.MethodPost, "/usage", tenant, `{"resource":"trucks","delta":1}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "invalid_resource", env.Error.Code)

	status, env = a.tenant(http.MethodPost, "/usage", tenant, `{"resource":"users"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, env.Error.Details, "delta")

	status, env = a.tenant(http.MethodGet, "/entitlements", tenant, "")
	require.Equal(t, http.StatusOK, status)
	e := decodeData[limits.Entitlements](t, env)
	assert.True(t, e.HasAccess)
	assert.True(t, e.Features.ClientPortal)
	assert.Equal(t, int64(4), e.Usage[limits.ResourceUsers].Current)

	status, env = a.tenant(http.MethodGet, "/plan-change/check?plan_id=starter", tenant, "")
	require.Equal(t, http.StatusOK, status)
	check := decodeData[map[string]any](t, env)
	assert.Equal(t, false, check["allowed"])
	assert.Len(t, check["violations"], 1)

	status, env = a.tenant(http.MethodPost, "/usage", tenant, `{"resource":"users","delta":-2}`)
	require.Equal(t, http.StatusOK, status, env.Error)
	status, env = a.tenant(http.MethodGet, "/plan-change/check?plan_id=starter", tenant, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, decodeData[map[string]any](t, env)["allowed"])

	status, _ = a.admin(http.MethodPost, "/admin/tenants/"+tenant.String()+"/suspend", `{"reason":"chargeback"}`)
	require.Equal(t, http.StatusOK, status)
	status, env = a.tenant(http.MethodPost, "/usage", tenant, `{"resource":"operations","delta":1}`)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "no_access", env.Error.Code)
}

func TestPromotionRoutesAreRateLimited(t *testing.T) {
	t.Parallel()

	b, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(), ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)
	a := newAPI(t, billing.WithRateLimit(ratelimiter.Middleware(b, "promotions", ratelimiter.ByHeader("X-Tenant-ID"), nil)))
	tenant := uuid.New()

	for range 2 {
		status, _ := a.tenant(http.MethodPost, "/promotions/validate", tenant, `{"code":"nope","plan_id":"starter"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
	}
	status, env := a.tenant(http.MethodPost, "/checkout", tenant, `{"plan_id":"starter"}`)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "too_many_requests", env.Error.Code)

	status, _ = a.tenant(http.MethodPost, "/promotions/validate", uuid.New(), `{"code":"nope","plan_id":"starter"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "other tenants keep their own bucket")

	status, _ = a.tenant(http.MethodGet, "/subscription", tenant, "")
	assert.Equal(t, http.StatusNotFound, status, "other routes are not limited")
}
