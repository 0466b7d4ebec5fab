package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/logger"
)

func TestNew_JSONWithTenantExtractor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(
		logger.WithOutput(&buf),
		logger.WithAttr(slog.String("service", "billingd")),
		logger.WithContextExtractors(logger.TenantExtractor()),
	)

	ctx := logger.WithTenant(context.Background(), "tenant-1")
	log.InfoContext(ctx, "subscription activated",
		logger.Status("active"),
		logger.Transition("trialing", "active", "checkout_completed"),
	)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "billingd", rec["service"])
	assert.Equal(t, "tenant-1", rec["tenant_id"])
	assert.Equal(t, "active", rec["status"])
	transition, ok := rec["transition"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "trialing", transition["from"])
	assert.Equal(t, "checkout_completed", transition["event"])
}

func TestNew_DevelopmentEnvironment(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(logger.WithEnvironment("dev", "billingd"), logger.WithOutput(&buf))
	log.Debug("sweep started")

	out := buf.String()
	assert.True(t, strings.Contains(out, "level=DEBUG"), out)
	assert.Contains(t, out, "env=development")
}

func TestWithFormat_PanicsOnUnknown(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { logger.New(logger.WithFormat("xml")) })
}

func TestAttrHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
	assert.Equal(t, "error", logger.Error(errors.New("boom")).Key)
	assert.True(t, logger.TenantID(nil).Equal(slog.Attr{}))
	assert.Equal(t, "plan_id", logger.PlanID("starter").Key)
}
