package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/ledger-bot/internal/errors"
)

type recordedRequest struct {
	method      string
	contentType string
	body        map[string]any
}

func newBackend(t *testing.T, status int, response string) (*httptest.Server, func() []recordedRequest) {
	t.Helper()

	var (
		mu       sync.Mutex
		requests []recordedRequest
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(raw, &body)

		mu.Lock()
		requests = append(requests, recordedRequest{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		mu.Unlock()

		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest(nil), requests...)
	}
}

func TestClient_Submit(t *testing.T) {
	srv, requests := newBackend(t, http.StatusOK, `{"result":"ok"}`)
	client := NewClient(srv.URL, time.Second)

	err := client.Submit(context.Background(), Record{
		Activity: "Makan siang",
		Status:   "Sedekah",
		Date:     "2024-06-15",
		Amount:   15000,
	})
	require.NoError(t, err)

	got := requests()
	require.Len(t, got, 1)
	assert.Equal(t, http.MethodPost, got[0].method)
	assert.Equal(t, "application/json", got[0].contentType)
	assert.Equal(t, map[string]any{
		"kegiatan":    "Makan siang",
		"status":      "Sedekah",
		"tanggal":     "2024-06-15",
		"pengeluaran": float64(15000),
	}, got[0].body)
}

func TestClient_SubmitFailsOnNon2xxWithoutRetry(t *testing.T) {
	srv, requests := newBackend(t, http.StatusInternalServerError, "sheet locked")
	client := NewClient(srv.URL, time.Second)

	err := client.Submit(context.Background(), Record{Activity: "x", Status: "Duniawi", Date: "2024-06-15", Amount: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendStatus)
	assert.Contains(t, err.Error(), "500 sheet locked")
	assert.Len(t, requests(), 1)
}

func TestClient_SubmitTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := NewClient(url, time.Second).Submit(context.Background(), Record{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrBackendStatus)
}

func TestClient_Total(t *testing.T) {
	testCases := []struct {
		name     string
		status   int
		response string
		want     float64
		wantErr  error
	}{
		{name: "integer total", status: http.StatusOK, response: `{"total":42500}`, want: 42500},
		{name: "fractional total", status: http.StatusOK, response: `{"total":1250.5}`, want: 1250.5},
		{name: "missing total", status: http.StatusOK, response: `{}`, want: 0},
		{name: "null total", status: http.StatusOK, response: `{"total":null}`, want: 0},
		{name: "backend error", status: http.StatusBadGateway, response: `oops`, wantErr: ErrBackendStatus},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			srv, requests := newBackend(t, tc.status, tc.response)
			total, err := NewClient(srv.URL, time.Second).Total(context.Background(), "2024-06")

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, total)

			got := requests()
			require.Len(t, got, 1)
			assert.Equal(t, map[string]any{"sheet": "2024-06"}, got[0].body)
		})
	}
}

func TestClient_TotalRejectsMalformedBody(t *testing.T) {
	srv, _ := newBackend(t, http.StatusOK, `<html>login</html>`)

	_, err := NewClient(srv.URL, time.Second).Total(context.Background(), "2024-06")
	assert.Error(t, err)
}

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	err := NewClient(srv.URL, 50*time.Millisecond).Submit(context.Background(), Record{})
	assert.Error(t, err)
}

func TestClient_BreakerFailsFast(t *testing.T) {
	srv, requests := newBackend(t, http.StatusServiceUnavailable, "")
	breaker := apperrors.NewCircuitBreaker(apperrors.CircuitBreakerSettings{MinRequests: 2, OpenTimeout: time.Hour})
	client := NewClient(srv.URL, time.Second, WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, client.Submit(context.Background(), Record{}), ErrBackendStatus)
	}

	_, err := client.Total(context.Background(), "2024-06")
	assert.ErrorIs(t, err, apperrors.ErrCircuitOpen)
	assert.Len(t, requests(), 2)
}

type stubBackend struct {
	err   error
	total float64
}

func (s stubBackend) Submit(context.Context, Record) error { return s.err }

func (s stubBackend) Total(context.Context, string) (float64, error) { return s.total, s.err }

func TestMetricsBackend(t *testing.T) {
	okBefore := testutil.ToFloat64(ledgerRequestsTotal.WithLabelValues("total"))
	errBefore := testutil.ToFloat64(ledgerErrorsTotal.WithLabelValues("submit", "status"))

	total, err := NewMetricsBackend(stubBackend{total: 7}).Total(context.Background(), "2024-06")
	require.NoError(t, err)
	assert.Equal(t, float64(7), total)

	failing := NewMetricsBackend(stubBackend{err: errors.Join(ErrBackendStatus)})
	assert.Error(t, failing.Submit(context.Background(), Record{}))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ledgerRequestsTotal.WithLabelValues("total")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(ledgerErrorsTotal.WithLabelValues("submit", "status")))
}

func TestPeriodKey(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)

	instant := time.Date(2024, 5, 31, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-05", PeriodKey(instant))
	assert.Equal(t, "2024-06", PeriodKey(instant.In(jakarta)))

	start, err := ParsePeriodKey("2024-06", jakarta)
	require.NoError(t, err)
	assert.Equal(t, time.June, start.Month())
	assert.Equal(t, 1, start.Day())

	for _, key := range []string{"June", "2024-13", "2024/06", ""} {
		_, err = ParsePeriodKey(key, nil)

		var appErr *apperrors.AppError
		require.ErrorAs(t, err, &appErr, key)
		assert.Equal(t, apperrors.MessageKeyValidation, appErr.MessageKey, key)
		assert.Contains(t, err.Error(), "YYYY-MM", key)
	}
}
