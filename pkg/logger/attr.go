package logger

import (
	"context"
	"log/slog"
)

// Error returns an empty Attr for nil errors.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// TenantID records the tenant under "tenant_id". Nil ids produce an empty Attr.
func TenantID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("tenant_id", id)
}

func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}

func PlanID(id string) slog.Attr {
	return slog.String("plan_id", id)
}

func PromotionCode(code string) slog.Attr {
	return slog.String("promotion_code", code)
}

// Status records a subscription status under "status".
func Status[T ~string](s T) slog.Attr {
	return slog.String("status", string(s))
}

// Transition records a status change as a "transition" group.
func Transition[T ~string](from, to T, event string) slog.Attr {
	return slog.Group("transition",
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("event", event),
	)
}

// CorrelationID records the collaborator event id used for deduplication.
func CorrelationID(id string) slog.Attr {
	return slog.String("correlation_id", id)
}

func Component(name string) slog.Attr {
	return slog.String("component", name)
}

func Duration(d any) slog.Attr {
	return slog.Any("duration", d)
}

type tenantKey struct{}

// WithTenant stores the tenant identifier for TenantExtractor.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// TenantExtractor injects the tenant stored by WithTenant.
func TenantExtractor() ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := ctx.Value(tenantKey{}).(string); ok && id != "" {
			return slog.String("tenant_id", id), true
		}
		return slog.Attr{}, false
	}
}
