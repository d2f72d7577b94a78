package webhook

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/olsontechllc/netbox-pdns/internal/metrics"
)

// rateLimitMiddleware enforces perMinute requests per source IP on the
// wrapped handler, per §4.8's per-endpoint limits.
func rateLimitMiddleware(limiter *rateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			allowed, remaining := limiter.Allow(ip)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Minute).Unix(), 10))

			if !allowed {
				metrics.RateLimitRejectionsTotal.WithLabelValues(r.URL.Path).Inc()
				writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded",
					fmt.Sprintf("%d per minute", limiter.burst))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authMiddleware enforces the constant-time API key check, and the
// optional HMAC body signature, required of every mutating endpoint
// (§4.8). It must run after rate limiting and before the handler, so an
// unauthenticated caller still consumes rate-limit budget (matching the
// middleware order noted in the design).
func authMiddleware(apiKey, webhookSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("x-netbox-pdns-api-key")
			if !hmac.Equal([]byte(got), []byte(apiKey)) {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized", "invalid or missing api key")
				return
			}

			if webhookSecret != "" {
				body, err := io.ReadAll(r.Body)
				if err != nil {
					writeJSONError(w, http.StatusBadRequest, "Bad Request", "could not read body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))

				sig := r.Header.Get("x-hub-signature-256")
				if sig == "" {
					sig = r.Header.Get("x-signature-256")
				}
				if !validSignature(sig, webhookSecret, body) {
					writeJSONError(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid signature")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func validSignature(header, secret string, body []byte) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(header), []byte(expected))
}

func writeJSONError(w http.ResponseWriter, status int, errMsg, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": errMsg, "detail": detail})
}
