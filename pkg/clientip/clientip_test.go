package clientip_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/freightbill/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "203.0.113.7:5432", "203.0.113.7"},
		{"forwarded first valid", map[string]string{"X-Forwarded-For": "garbage, 198.51.100.4, 10.0.0.1"}, "10.0.0.2:80", "198.51.100.4"},
		{"real ip", map[string]string{"X-Real-IP": " 2001:db8::1 "}, "10.0.0.2:80", "2001:db8::1"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "198.51.100.4", "X-Real-IP": "198.51.100.5"}, "", "198.51.100.4"},
		{"ipv4 mapped", nil, "[::ffff:192.0.2.1]:443", "192.0.2.1"},
		{"bare remote", nil, "192.0.2.9", "192.0.2.9"},
		{"nothing valid", map[string]string{"X-Forwarded-For": "unknown"}, "pipe", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientip.GetIP(r))
		})
	}
}

func TestMiddlewareAndExtractor(t *testing.T) {
	t.Parallel()

	var seen string
	h := clientip.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = clientip.FromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.7:1234"
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.Equal(t, "203.0.113.7", seen)

	attr, ok := clientip.LoggerExtractor()(clientip.WithContext(context.Background(), seen))
	assert.True(t, ok)
	assert.Equal(t, "client_ip", attr.Key)

	_, ok = clientip.LoggerExtractor()(context.Background())
	assert.False(t, ok)
}
