package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/billingmetrics"
	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/payment"
	"github.com/dmitrymomot/freightbill/pkg/ratelimiter"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/webhook"
	"github.com/dmitrymomot/freightbill/svc/billing"
)

const relaySecret = "relay-secret"

var now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func baseConfig() billing.Config {
	return billing.Config{
		AppEnv:                 "test",
		AdminTokens:            []string{"ops"},
		StorageBackend:         billing.BackendMemory,
		LockBackend:            billing.BackendMemory,
		SweepInterval:          time.Hour,
		MetricsRefreshInterval: time.Minute,
		DedupRetention:         24 * time.Hour,
		Policy:                 subscription.DefaultPolicy(),
		Metrics:                billingmetrics.DefaultOptions(),
		Payment: payment.Config{
			Provider: payment.ProviderSigned,
			Signed: payment.SignedConfig{
				CheckoutURL: "https://pay.example.com/checkout",
				Secret:      relaySecret,
			},
		},
	}
}

func newApp(t *testing.T, cfg billing.Config, opts ...billing.Option) (*billing.App, *httptest.Server) {
	t.Helper()
	log := billing.NewLogger(cfg, io.Discard)
	app, err := billing.New(context.Background(), cfg, log, append([]billing.Option{billing.WithClock(clock)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(app.Close)

	srv := httptest.NewServer(app.Router())
	t.Cleanup(srv.Close)
	return app, srv
}

func call(t *testing.T, srv *httptest.Server, method, path, body string, header map[string]string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func charge(t *testing.T, srv *httptest.Server, id string, tenant uuid.UUID, amount int64) int {
	t.Helper()
	body, err := json.Marshal(payment.SignedNotification{
		ID:          id,
		Type:        payment.SignedChargeSucceeded,
		TenantID:    tenant.String(),
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
		Amount:      catalog.Money{Amount: amount, Currency: "COP"},
	})
	require.NoError(t, err)
	sig, err := webhook.Sign(relaySecret, body, now)
	require.NoError(t, err)
	status, _ := call(t, srv, http.MethodPost, "/api/v1/webhooks/payments", string(body), map[string]string{webhook.SignatureHeader: sig})
	return status
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		modify func(*billing.Config)
		ok     bool
	}{
		{"memory defaults", func(*billing.Config) {}, true},
		{"unknown storage", func(c *billing.Config) { c.StorageBackend = "mongo" }, false},
		{"unknown lock", func(c *billing.Config) { c.LockBackend = "etcd" }, false},
		{"redis lock without redis", func(c *billing.Config) { c.LockBackend = billing.BackendRedis }, false},
		{"redis lock with redis", func(c *billing.Config) {
			c.LockBackend = billing.BackendRedis
			c.RedisEnabled = true
		}, true},
		{"advisory lock on memory storage", func(c *billing.Config) { c.LockBackend = billing.BackendPostgres }, false},
		{"zero sweep interval", func(c *billing.Config) { c.SweepInterval = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := baseConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, billing.ErrInvalidConfig)
			}
		})
	}
}

func TestNew_MemoryBackend(t *testing.T) {
	t.Parallel()
	app, srv := newApp(t, baseConfig())

	status, body := call(t, srv, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ALIVE", body)

	status, body = call(t, srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "READY", body)

	status, body = call(t, srv, http.MethodGet, "/api/v1/plans", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"id":"starter"`)
	assert.Contains(t, body, `"id":"empresarial"`)

	tenant := uuid.New()
	status, body = call(t, srv, http.MethodPost, "/api/v1/trial", `{"plan_id":"starter"}`, map[string]string{"X-Tenant-ID": tenant.String()})
	require.Equal(t, http.StatusCreated, status, body)

	require.NoError(t, app.Scheduler.RunNow(context.Background(), billing.JobMetricsRefresh))
	status, body = call(t, srv, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `freightbill_tenants_by_status{status="trialing"} 1`)
	assert.Contains(t, body, "go_goroutines")

	require.NoError(t, app.Scheduler.RunNow(context.Background(), billing.JobSweep))

	var names []string
	for _, j := range app.Scheduler.Jobs() {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{billing.JobSweep, billing.JobMetricsRefresh}, names)

	v, err := app.Migrate(context.Background())
	assert.NoError(t, err)
	assert.Zero(t, v)
}

func TestNew_PlansFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "plans.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`plans:
  - id: basico
    name: Basico
    price_monthly: 30000
    price_yearly: 300000
    currency: COP
    active: true
`), 0o600))

	cfg := baseConfig()
	cfg.PlansFile = path
	app, _ := newApp(t, cfg)

	plans := app.Catalog.ActivePlans()
	require.Len(t, plans, 1)
	assert.Equal(t, "basico", plans[0].ID)

	cfg.PlansFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := billing.New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, billing.ErrCatalogLoad)
}

func TestNew_UnknownPaymentProvider(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.Payment.Provider = "paypal"
	_, err := billing.New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, billing.ErrInvalidConfig)
}

func TestNew_InvoiceWebhook(t *testing.T) {
	t.Parallel()

	var (
		mu       sync.Mutex
		received []subscription.PriceCommitment
	)
	invoices := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := webhook.Verify("invoice-secret", body, r.Header.Get(webhook.SignatureHeader), webhook.DefaultTolerance, time.Now()); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var c subscription.PriceCommitment
		if err := json.NewDecoder(bytes.NewReader(body)).Decode(&c); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mu.Lock()
		received = append(received, c)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(invoices.Close)

	cfg := baseConfig()
	cfg.InvoiceWebhookURL = invoices.URL
	cfg.InvoiceWebhookSecret = "invoice-secret"
	_, srv := newApp(t, cfg)

	tenant := uuid.New()
	status, body := call(t, srv, http.MethodPost, "/api/v1/checkout", `{"plan_id":"starter"}`, map[string]string{"X-Tenant-ID": tenant.String()})
	require.Equal(t, http.StatusCreated, status, body)
	require.Equal(t, http.StatusOK, charge(t, srv, "evt_1", tenant, 45000))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, tenant, received[0].TenantID)
	assert.Equal(t, "starter", received[0].PlanID)
	assert.Equal(t, int64(45000), received[0].Amount.Amount)
	assert.Equal(t, "evt_1", received[0].CorrelationID)
}

func TestNew_RedisBackend(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := baseConfig()
	cfg.RedisEnabled = true
	cfg.LockBackend = billing.BackendRedis
	cfg.Redis.KeyPrefix = "fbtest"
	cfg.InvoiceStream = "fbtest:commitments"
	_, srv := newApp(t, cfg, billing.WithRedisClient(client))

	tenant := uuid.New()
	headers := map[string]string{"X-Tenant-ID": tenant.String(), "Authorization": "Bearer ops"}

	status, body := call(t, srv, http.MethodPost, "/api/v1/admin/promotions", `{"code":"bienvenida","kind":"fixed","value":"5000"}`, headers)
	require.Equal(t, http.StatusCreated, status, body)
	assert.NotEmpty(t, mr.Keys())

	status, body = call(t, srv, http.MethodPost, "/api/v1/checkout", `{"plan_id":"starter","promotion_code":"bienvenida"}`, headers)
	require.Equal(t, http.StatusCreated, status, body)

	require.Equal(t, http.StatusOK, charge(t, srv, "evt_r1", tenant, 40000))

	status, body = call(t, srv, http.MethodPost, "/api/v1/usage", `{"resource":"operations","delta":25}`, headers)
	require.Equal(t, http.StatusOK, status, body)
	assert.True(t, mr.Exists("fbtest:usage:"+tenant.String()+":operations:2026-03"))

	status, body = call(t, srv, http.MethodPost, "/api/v1/webhooks/payments", "", nil)
	assert.Equal(t, http.StatusBadRequest, status, body)

	entries, err := client.XRange(context.Background(), "fbtest:commitments", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, http.StatusOK, charge(t, srv, "evt_r1", tenant, 40000))
	entries, err = client.XRange(context.Background(), "fbtest:commitments", "-", "+").Result()
	require.NoError(t, err)
	assert.Len(t, entries, 1, "duplicate delivery commits nothing")

	status, _ = call(t, srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, status)

	mr.Close()
	status, body = call(t, srv, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "NOT_READY", body)
}

func TestNew_RateLimit(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.RateLimit = ratelimiter.Config{Enabled: true, Capacity: 1, RefillRate: 1, RefillInterval: time.Hour}
	_, srv := newApp(t, cfg)

	headers := map[string]string{"X-Tenant-ID": uuid.New().String(), "X-Forwarded-For": "203.0.113.7"}
	body := `{"code":"nope","plan_id":"starter"}`

	status, _ := call(t, srv, http.MethodPost, "/api/v1/promotions/validate", body, headers)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	status, out := call(t, srv, http.MethodPost, "/api/v1/promotions/validate", body, headers)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, out, "too_many_requests")

	headers["X-Forwarded-For"] = "203.0.113.8"
	status, _ = call(t, srv, http.MethodPost, "/api/v1/promotions/validate", body, headers)
	assert.Equal(t, http.StatusUnprocessableEntity, status, "another address gets its own bucket")
}

func TestNew_InvalidRateLimit(t *testing.T) {
	t.Parallel()

	cfg := baseConfig()
	cfg.RateLimit = ratelimiter.Config{Enabled: true}
	_, err := billing.New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, billing.ErrInvalidConfig)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg := baseConfig()
	cfg.AppEnv = "production"
	cfg.ServiceName = "billingd"
	cfg.LogLevel = "warn"
	log := billing.NewLogger(cfg, &buf)

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"service":"billingd"`)
}
