package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/olsontechllc/netbox-pdns/internal/status"
	"github.com/stretchr/testify/require"
)

func newTestHandler(apiKey, secret string) (*Handler, *int32, *int32) {
	var reconcileCalls, syncCalls int32
	h := New(Config{
		APIKey:          apiKey,
		WebhookSecret:   secret,
		State:           status.New(time.Now()),
		MQTTStatus:      func() MQTTStatus { return MQTTStatus{Enabled: false} },
		SchedulerStatus: func() SchedulerStatus { return SchedulerStatus{Running: true, JobsCount: 1} },
		ReconcileZone: func(zoneName string, source domain.IntentSource) error {
			atomic.AddInt32(&reconcileCalls, 1)
			return nil
		},
		FullSync: func(source domain.IntentSource) error {
			atomic.AddInt32(&syncCalls, 1)
			return nil
		},
	})
	return h, &reconcileCalls, &syncCalls
}

func TestHealth_NoAuthRequired(t *testing.T) {
	h, _, _ := newTestHandler("key", "")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestZoneCreate_RejectsMissingAPIKey(t *testing.T) {
	h, _, _ := newTestHandler("secret-key", "")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(map[string]interface{}{"id": 1, "name": "example.com"})
	req := httptest.NewRequest(http.MethodPost, "/zones/create", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestZoneCreate_AcceptsValidAPIKeyAndQueuesReconcile(t *testing.T) {
	h, reconcileCalls, _ := newTestHandler("secret-key", "")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(map[string]interface{}{"id": 1, "name": "example.com"})
	req := httptest.NewRequest(http.MethodPost, "/zones/create", bytes.NewReader(body))
	req.Header.Set("x-netbox-pdns-api-key", "secret-key")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return atomic.LoadInt32(reconcileCalls) == 1 }, time.Second, time.Millisecond)
}

func TestZoneCreate_MalformedJSONRejected(t *testing.T) {
	h, _, _ := newTestHandler("secret-key", "")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/zones/create", bytes.NewReader([]byte("{not json")))
	req.Header.Set("x-netbox-pdns-api-key", "secret-key")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestZoneCreate_RequiresSignatureWhenSecretConfigured(t *testing.T) {
	h, _, _ := newTestHandler("secret-key", "whsec")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(map[string]interface{}{"id": 1, "name": "example.com"})
	req := httptest.NewRequest(http.MethodPost, "/zones/create", bytes.NewReader(body))
	req.Header.Set("x-netbox-pdns-api-key", "secret-key")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestZoneCreate_ValidSignatureAccepted(t *testing.T) {
	h, _, _ := newTestHandler("secret-key", "whsec")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	body, _ := json.Marshal(map[string]interface{}{"id": 1, "name": "example.com"})
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	sig := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/zones/create", bytes.NewReader(body))
	req.Header.Set("x-netbox-pdns-api-key", "secret-key")
	req.Header.Set("x-hub-signature-256", sig)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestSync_QueuesFullSync(t *testing.T) {
	h, _, syncCalls := newTestHandler("secret-key", "")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/sync", nil)
	req.Header.Set("x-netbox-pdns-api-key", "secret-key")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return atomic.LoadInt32(syncCalls) == 1 }, time.Second, time.Millisecond)
}

func TestRateLimiter_DeniesRequestsBeyondBurst(t *testing.T) {
	limiter := newRateLimiter(2)
	ok1, _ := limiter.Allow("1.2.3.4")
	ok2, _ := limiter.Allow("1.2.3.4")
	ok3, _ := limiter.Allow("1.2.3.4")
	require.True(t, ok1)
	require.True(t, ok2)
	require.False(t, ok3)
}

func TestStatus_ReportsHealthy(t *testing.T) {
	h, _, _ := newTestHandler("secret-key", "")
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Healthy", body["status"])
	sched, ok := body["scheduler"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, true, sched["running"])
}
