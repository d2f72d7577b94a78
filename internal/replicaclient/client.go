// Package replicaclient encapsulates all interactions with the PowerDNS
// Authoritative Server HTTP API v1. Every call is wrapped in the same
// exponential-backoff retry policy (§4.2); retries apply to transport
// errors and 5xx only.
package replicaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/olsontechllc/netbox-pdns/internal/metrics"
)

// RetryPolicy holds the parameters of the exponential-backoff retry
// applied to every replica call (§4.2, §9: a single retry(op, policy)
// helper rather than per-call replication).
type RetryPolicy struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BaseDelay:     1 * time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Client talks to one PowerDNS server identifier's zones API.
type Client struct {
	baseURL    string
	apiKey     string
	serverID   string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *slog.Logger
}

type Option func(*Client)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.retry = p }
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func New(baseURL, apiKey, serverID string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		serverID:   serverID,
		httpClient: http.DefaultClient,
		retry:      DefaultRetryPolicy(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wireRRSet mirrors the PowerDNS API's RRSet representation.
type wireRRSet struct {
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	TTL        int           `json:"ttl,omitempty"`
	ChangeType string        `json:"changetype,omitempty"`
	Records    []wireRecord  `json:"records,omitempty"`
	Comments   []interface{} `json:"comments,omitempty"`
}

type wireRecord struct {
	Content  string `json:"content"`
	Disabled bool   `json:"disabled"`
}

type wireZone struct {
	Name        string      `json:"name"`
	Kind        string      `json:"kind"`
	Nameservers []string    `json:"nameservers,omitempty"`
	SOAEditAPI  string      `json:"soa_edit_api,omitempty"`
	RRSets      []wireRRSet `json:"rrsets,omitempty"`
}

// GetZone fetches a zone with its full rrsets, or domain.ErrReplicaNotFound.
func (c *Client) GetZone(ctx context.Context, name string) (*domain.Zone, error) {
	name = domain.NormalizeReplicaZoneName(name)
	var wz wireZone

	err := c.do(ctx, "get_zone", http.MethodGet, "/zones/"+name, nil, &wz)
	if err != nil {
		return nil, err
	}
	return wireZoneToDomain(wz), nil
}

// ListZones returns every zone's name and kind, without rrsets.
func (c *Client) ListZones(ctx context.Context) ([]domain.Zone, error) {
	var wzs []wireZone
	if err := c.do(ctx, "list_zones", http.MethodGet, "/zones", nil, &wzs); err != nil {
		return nil, err
	}
	out := make([]domain.Zone, len(wzs))
	for i, wz := range wzs {
		out[i] = *wireZoneToDomain(wz)
	}
	return out, nil
}

// CreateZone creates a zone. A 409 Conflict is treated as success (the
// zone already exists): this call is idempotent by design.
func (c *Client) CreateZone(ctx context.Context, zone domain.Zone) error {
	wz := domainZoneToWire(zone)
	err := c.do(ctx, "create_zone", http.MethodPost, "/zones", wz, nil)
	if errors.Is(err, domain.ErrReplicaConflict) {
		c.logger.Warn("zone already exists on replica, treating create as success", "zone", zone.Name)
		return nil
	}
	return err
}

// RRSetChange is one PATCH-body entry: REPLACE with new content, or DELETE.
type RRSetChange struct {
	Name    string
	Type    string
	TTL     int
	Delete  bool
	Records []domain.Record
}

// PatchZone applies a batch of RRSET changes to a zone in one API call.
func (c *Client) PatchZone(ctx context.Context, name string, changes []RRSetChange) error {
	name = domain.NormalizeReplicaZoneName(name)
	body := struct {
		RRSets []wireRRSet `json:"rrsets"`
	}{}
	for _, ch := range changes {
		wrs := wireRRSet{Name: ch.Name, Type: ch.Type}
		if ch.Delete {
			wrs.ChangeType = "DELETE"
		} else {
			wrs.ChangeType = "REPLACE"
			wrs.TTL = ch.TTL
			wrs.Records = make([]wireRecord, len(ch.Records))
			for i, r := range ch.Records {
				wrs.Records[i] = wireRecord{Content: r.Content, Disabled: r.Disabled}
			}
		}
		body.RRSets = append(body.RRSets, wrs)
	}
	return c.do(ctx, "patch_zone", http.MethodPatch, "/zones/"+name, body, nil)
}

// DeleteZone removes a zone entirely.
func (c *Client) DeleteZone(ctx context.Context, name string) error {
	name = domain.NormalizeReplicaZoneName(name)
	return c.do(ctx, "delete_zone", http.MethodDelete, "/zones/"+name, nil, nil)
}

// halfJitterBackOff scales the wrapped policy's interval by uniform(0.5,
// 1.0), per §4.2's documented retry delay window. cenkalti/backoff's own
// RandomizationFactor centers jitter on the interval instead (giving
// [1-f, 1+f]×, i.e. [0.5, 1.5]× at f=0.5), so it can't express this
// window directly.
type halfJitterBackOff struct {
	backoff.BackOff
}

func (j halfJitterBackOff) NextBackOff() time.Duration {
	d := j.BackOff.NextBackOff()
	if d == backoff.Stop {
		return d
	}
	return time.Duration(float64(d) * (0.5 + rand.Float64()*0.5))
}

// do executes one logical operation under the retry policy, logging each
// attempt at WARNING and the terminal failure at ERROR (§4.2).
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retry.BaseDelay
	bo.Multiplier = c.retry.BackoffFactor
	bo.MaxInterval = c.retry.MaxDelay
	bo.RandomizationFactor = 0 // jitter applied below instead; see halfJitterBackOff
	withMax := backoff.WithMaxRetries(halfJitterBackOff{bo}, uint64(c.retry.MaxAttempts-1))
	withCtx := backoff.WithContext(withMax, ctx)

	attempt := 0
	var finalErr error
	err := backoff.RetryNotify(func() error {
		attempt++
		err := c.doOnce(ctx, method, path, body, out)
		finalErr = err
		if err == nil {
			metrics.ReplicaCallsTotal.WithLabelValues(operation, "success").Inc()
			return nil
		}
		if !isRetriable(err) {
			metrics.ReplicaCallsTotal.WithLabelValues(operation, "rejected").Inc()
			return backoff.Permanent(err)
		}
		return err
	}, withCtx, func(err error, delay time.Duration) {
		metrics.ReplicaRetriesTotal.WithLabelValues(operation).Inc()
		c.logger.Warn("replica call failed, retrying",
			"operation", operation, "attempt", attempt, "delay", delay, "error", err)
	})

	if err != nil {
		metrics.ReplicaCallsTotal.WithLabelValues(operation, "failure").Inc()
		c.logger.Error("replica call failed permanently", "operation", operation, "attempts", attempt, "error", finalErr)
		return finalErr
	}
	return nil
}

func isRetriable(err error) bool {
	return errors.Is(err, domain.ErrReplicaUnavailable)
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out interface{}) error {
	url := fmt.Sprintf("%s/api/v1/servers/%s%s", c.baseURL, c.serverID, path)

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encoding request body: %v", domain.ErrReplicaRejected, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", domain.ErrReplicaUnavailable, err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrReplicaUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrReplicaNotFound, path)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrReplicaConflict, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrReplicaUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", domain.ErrReplicaRejected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", domain.ErrReplicaUnavailable, err)
	}
	return nil
}

func wireZoneToDomain(wz wireZone) *domain.Zone {
	z := &domain.Zone{
		Name:        domain.NormalizeReplicaZoneName(wz.Name),
		Kind:        domain.ZoneKind(wz.Kind),
		Nameservers: domain.NormalizeNameservers(wz.Nameservers),
		SOAEditAPI:  wz.SOAEditAPI,
	}
	for _, wrs := range wz.RRSets {
		rs := domain.RecordSet{Name: wrs.Name, Type: wrs.Type, TTL: wrs.TTL}
		for _, wr := range wrs.Records {
			rs.Records = append(rs.Records, domain.Record{Content: wr.Content, Disabled: wr.Disabled})
		}
		z.RecordSets = append(z.RecordSets, rs)
	}
	return z
}

func domainZoneToWire(z domain.Zone) wireZone {
	wz := wireZone{
		Name:        domain.NormalizeReplicaZoneName(z.Name),
		Kind:        string(z.Kind),
		Nameservers: z.Nameservers,
		SOAEditAPI:  z.SOAEditAPI,
	}
	for _, rs := range z.RecordSets {
		wrs := wireRRSet{Name: rs.Name, Type: rs.Type, TTL: rs.TTL}
		for _, r := range rs.Records {
			wrs.Records = append(wrs.Records, wireRecord{Content: r.Content, Disabled: r.Disabled})
		}
		wz.RRSets = append(wz.RRSets, wrs)
	}
	return wz
}
