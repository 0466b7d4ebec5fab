package invoicing_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/catalog"
	"github.com/dmitrymomot/freightbill/pkg/invoicing"
	"github.com/dmitrymomot/freightbill/pkg/subscription"
	"github.com/dmitrymomot/freightbill/pkg/webhook"
)

func commitment() subscription.PriceCommitment {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return subscription.PriceCommitment{
		CorrelationID:  "ch_1",
		TenantID:       uuid.New(),
		SubscriptionID: uuid.New(),
		PlanID:         "starter",
		Cycle:          catalog.CycleMonthly,
		Amount:         catalog.Money{Amount: 10000, Currency: "COP"},
		Override:       subscription.OverrideAccompaniment,
		PeriodStart:    start,
		PeriodEnd:      start.AddDate(0, 1, 0),
	}
}

func TestHTTPNotifier(t *testing.T) {
	t.Parallel()

	const secret = "invoicing-secret"
	c := commitment()

	received := make(chan subscription.PriceCommitment, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if !assert.NoError(t, err) {
			return
		}
		if err := webhook.Verify(secret, body, r.Header.Get(webhook.SignatureHeader), time.Minute, time.Now()); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var got subscription.PriceCommitment
		assert.NoError(t, json.Unmarshal(body, &got))
		received <- got
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)

	n, err := invoicing.NewHTTPNotifier(srv.URL, webhook.NewSender(webhook.WithSecret(secret)), nil)
	require.NoError(t, err)
	require.NoError(t, n.PriceCommitted(context.Background(), c))

	got := <-received
	assert.Equal(t, c.CorrelationID, got.CorrelationID)
	assert.Equal(t, c.TenantID, got.TenantID)
	assert.Equal(t, int64(10000), got.Amount.Amount)
}

func TestHTTPNotifier_PermanentFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad tenant", http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	n, err := invoicing.NewHTTPNotifier(srv.URL, webhook.NewSender(webhook.WithMaxRetries(0)), nil)
	require.NoError(t, err)

	err = n.PriceCommitted(context.Background(), commitment())
	assert.ErrorIs(t, err, invoicing.ErrDeliveryFailed)
	assert.ErrorIs(t, err, webhook.ErrPermanentFailure)

	_, err = invoicing.NewHTTPNotifier("", nil, nil)
	assert.ErrorIs(t, err, invoicing.ErrInvalidConfiguration)
}

func TestStreamNotifier(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	n := invoicing.NewStreamNotifier(client, invoicing.WithStream("test:commitments"))
	c := commitment()
	require.NoError(t, n.PriceCommitted(ctx, c))
	require.NoError(t, n.PriceCommitted(ctx, c))

	entries, err := client.XRange(ctx, "test:commitments", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ch_1", entries[0].Values["correlation_id"])

	var got subscription.PriceCommitment
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["payload"].(string)), &got))
	assert.Equal(t, c.SubscriptionID, got.SubscriptionID)
	assert.Equal(t, subscription.OverrideAccompaniment, got.Override)
}

type notifierFunc func(context.Context, subscription.PriceCommitment) error

func (f notifierFunc) PriceCommitted(ctx context.Context, c subscription.PriceCommitment) error {
	return f(ctx, c)
}

func TestFanout(t *testing.T) {
	t.Parallel()

	var calls int
	ok := notifierFunc(func(context.Context, subscription.PriceCommitment) error { calls++; return nil })
	boom := errors.New("boom")
	failing := notifierFunc(func(context.Context, subscription.PriceCommitment) error { calls++; return boom })

	err := invoicing.Fanout{failing, nil, ok}.PriceCommitted(context.Background(), commitment())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "a failure does not stop later notifiers")

	assert.NoError(t, invoicing.Fanout{}.PriceCommitted(context.Background(), commitment()))
}
