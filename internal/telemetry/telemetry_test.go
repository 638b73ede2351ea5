package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledTelemetry_IsNoop(t *testing.T) {
	tel, err := New(context.Background(), Config{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()

	tel.RecordCommand(ctx, "leech", true)
	tel.RecordRelay(ctx, "completed")
	tel.RecordDownload(ctx, "success", 10, time.Second)
	tel.RecordUpload(ctx, "primary", "success", time.Second)

	called := false
	err = tel.InstrumentUpload(ctx, "primary", func(context.Context) error {
		called = true

		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.NoError(t, tel.Shutdown(ctx))
}

func TestNilTelemetry_IsNoop(t *testing.T) {
	var tel *Telemetry

	ctx := context.Background()
	wantErr := errors.New("boom")

	err := tel.InstrumentDownload(ctx, func(context.Context) (int64, error) {
		return 5, wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	outcome := ""
	tel.InstrumentRelay(ctx, func(context.Context) string {
		outcome = "failed"

		return outcome
	})
	assert.Equal(t, "failed", outcome)
	assert.NoError(t, tel.Shutdown(ctx))
}

func TestEnabledTelemetry_ServesMetrics(t *testing.T) {
	ctx := context.Background()

	tel, err := New(ctx, Config{Enabled: true, ServiceName: "leechbot-test", ServiceVersion: "test"})
	require.NoError(t, err)

	defer func() { _ = tel.Shutdown(ctx) }()

	_ = tel.InstrumentDownload(ctx, func(context.Context) (int64, error) { return 1024, nil })
	tel.RecordRelay(ctx, "completed")

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "relays_total")
	assert.Contains(t, rec.Body.String(), "download_bytes")
}

func TestMiddleware_CapturesStatus(t *testing.T) {
	var tel *Telemetry

	h := RequestID(tel.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, GetRequestID(r.Context()))
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestRequestID_ReusesUpstreamHeader(t *testing.T) {
	var seen string

	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "upstream-id")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestGetStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		302: "3xx",
		404: "4xx",
		503: "5xx",
		100: "unknown",
	}

	for code, want := range tests {
		assert.Equal(t, want, getStatusClass(code))
	}
}
