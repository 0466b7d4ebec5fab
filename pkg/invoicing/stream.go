package invoicing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/freightbill/pkg/subscription"
)

// DefaultStream is the Redis stream price commitments are appended to.
const DefaultStream = "freightbill:invoicing:commitments"

// StreamNotifier appends price commitments to a capped Redis stream.
type StreamNotifier struct {
	client redis.UniversalClient
	stream string
	maxLen int64
}

// StreamOption configures a StreamNotifier.
type StreamOption func(*StreamNotifier)

func WithStream(name string) StreamOption {
	return func(s *StreamNotifier) {
		if name != "" {
			s.stream = name
		}
	}
}

// WithMaxLen caps the stream approximately at n entries. Zero keeps every entry.
func WithMaxLen(n int64) StreamOption {
	return func(s *StreamNotifier) {
		if n >= 0 {
			s.maxLen = n
		}
	}
}

// NewStreamNotifier creates a notifier. Panics on a nil client.
func NewStreamNotifier(client redis.UniversalClient, opts ...StreamOption) *StreamNotifier {
	if client == nil {
		panic("invoicing: redis client is required")
	}
	s := &StreamNotifier{client: client, stream: DefaultStream, maxLen: 100_000}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StreamNotifier) PriceCommitted(ctx context.Context, c subscription.PriceCommitment) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return errors.Join(ErrDeliveryFailed, err)
	}

	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"correlation_id": c.CorrelationID,
			"tenant_id":      c.TenantID.String(),
			"payload":        payload,
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return errors.Join(ErrDeliveryFailed, fmt.Errorf("xadd %s: %w", s.stream, err))
	}
	return nil
}
