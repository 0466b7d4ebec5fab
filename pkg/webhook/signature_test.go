package webhook_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/freightbill/pkg/webhook"
)

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	payload := []byte(`{"type":"charge.succeeded","id":"evt_1"}`)
	now := time.Unix(1767225600, 0)

	header, err := webhook.Sign("whsec_test", payload, now)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(header, "t=1767225600,v1="))

	tests := []struct {
		name    string
		secret  string
		payload []byte
		header  string
		now     time.Time
		wantErr error
	}{
		{"valid", "whsec_test", payload, header, now.Add(time.Minute), nil},
		{"rotated secret list", "whsec_test", payload, "v1=deadbeef," + header, now, nil},
		{"wrong secret", "other", payload, header, now, webhook.ErrInvalidSignature},
		{"tampered payload", "whsec_test", []byte(`{"type":"charge.failed"}`), header, now, webhook.ErrInvalidSignature},
		{"too old", "whsec_test", payload, header, now.Add(10 * time.Minute), webhook.ErrSignatureExpired},
		{"from the future", "whsec_test", payload, header, now.Add(-2 * time.Minute), webhook.ErrSignatureExpired},
		{"malformed", "whsec_test", payload, "garbage", now, webhook.ErrInvalidSignature},
		{"bad timestamp", "whsec_test", payload, "t=abc,v1=00", now, webhook.ErrInvalidSignature},
		{"no secret", "", payload, header, now, webhook.ErrInvalidConfiguration},
		{"empty payload", "whsec_test", nil, header, now, webhook.ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := webhook.Verify(tt.secret, tt.payload, tt.header, webhook.DefaultTolerance, tt.now)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("zero tolerance skips age check", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, webhook.Verify("whsec_test", payload, header, 0, now.Add(24*time.Hour)))
	})
}
