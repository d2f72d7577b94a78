// Package sourceclient is a read-only client for the inventory system: a
// NetBox installation extended with the NetBox DNS plugin. It never
// mutates, never caches between calls, and fully drains pagination before
// returning (§4.1).
package sourceclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
)

// Client talks to the NetBox DNS plugin's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, token: token, httpClient: httpClient}
}

// ZoneSummary is a source-side zone as returned by list_owned_zones: enough
// to identify it and decide whether it is in-scope, without its records.
type ZoneSummary struct {
	ID          int
	Name        string // without trailing dot, source convention
	Kind        domain.ZoneKind
	Nameservers []string
	DefaultTTL  int
}

// nbZone mirrors the NetBox DNS plugin's zone serializer.
type nbZone struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DefaultTTL  int    `json:"default_ttl"`
	Nameservers []struct {
		Name string `json:"name"`
	} `json:"nameservers"`
}

// nbRecord mirrors the NetBox DNS plugin's record serializer.
type nbRecord struct {
	FQDN     string `json:"fqdn"`
	Type     string `json:"type"`
	Value    string `json:"value"`
	TTL      *int   `json:"ttl"`
	Disabled bool   `json:"disable_ptr,omitempty"`
}

// page is NetBox's standard paginated-list envelope.
type page[T any] struct {
	Next    *string `json:"next"`
	Results []T     `json:"results"`
}

// ListOwnedZones returns every source zone whose nameserver set contains
// nameserverID, fully draining pagination.
func (c *Client) ListOwnedZones(ctx context.Context, nameserverID int) ([]ZoneSummary, error) {
	path := fmt.Sprintf("/api/plugins/netbox-dns/zones/?nameserver_id=%d&limit=200", nameserverID)

	var out []ZoneSummary
	for path != "" {
		var p page[nbZone]
		next, err := c.getJSON(ctx, path, &p)
		if err != nil {
			return nil, err
		}
		for _, z := range p.Results {
			ns := make([]string, len(z.Nameservers))
			for i, n := range z.Nameservers {
				ns[i] = n.Name
			}
			out = append(out, ZoneSummary{
				ID:          z.ID,
				Name:        domain.NormalizeSourceZoneName(z.Name),
				Kind:        domain.KindNative,
				Nameservers: domain.NormalizeNameservers(ns),
				DefaultTTL:  z.DefaultTTL,
			})
		}
		path = next
	}
	return out, nil
}

// GetZoneRecords returns the full record set for a zone, fully draining
// pagination. Returns domain.ErrSourceNotFound if the zone vanished between
// listing and fetch.
func (c *Client) GetZoneRecords(ctx context.Context, zone ZoneSummary) ([]domain.RecordSet, error) {
	path := fmt.Sprintf("/api/plugins/netbox-dns/records/?zone_id=%d&limit=200", zone.ID)

	grouped := map[domain.RecordSetKey]*domain.RecordSet{}
	var order []domain.RecordSetKey
	seenAny := false

	for path != "" {
		var p page[nbRecord]
		next, err := c.getJSON(ctx, path, &p)
		if err != nil {
			return nil, err
		}
		for _, r := range p.Results {
			seenAny = true
			name := domain.QualifyName(r.FQDN, zone.Name)
			key := domain.RecordSetKey{Name: name, Type: r.Type}
			rs, ok := grouped[key]
			if !ok {
				ttl := zone.DefaultTTL
				if r.TTL != nil {
					ttl = *r.TTL
				}
				rs = &domain.RecordSet{Name: name, Type: r.Type, TTL: ttl}
				grouped[key] = rs
				order = append(order, key)
			}
			rs.Records = append(rs.Records, domain.Record{Content: r.Value, Disabled: r.Disabled})
		}
		path = next
	}

	if !seenAny {
		// Confirm the zone itself, not just its records, is gone.
		if _, err := c.getZoneByID(ctx, zone.ID); err != nil {
			return nil, err
		}
	}

	out := make([]domain.RecordSet, 0, len(order))
	for _, key := range order {
		out = append(out, *grouped[key])
	}
	return out, nil
}

// nbNameserver mirrors the NetBox DNS plugin's nameserver serializer.
type nbNameserver struct {
	Name string `json:"name"`
}

// GetNameserverFQDN resolves the configured nameserver ID to its FQDN,
// the identity the reconciler compares against replica zones'
// `nameservers` lists (§4.5's is_managed_by_us test). Called once at
// startup since the mapping is effectively static.
func (c *Client) GetNameserverFQDN(ctx context.Context, nameserverID int) (string, error) {
	var ns nbNameserver
	_, err := c.getJSON(ctx, fmt.Sprintf("/api/plugins/netbox-dns/nameservers/%d/", nameserverID), &ns)
	if err != nil {
		return "", err
	}
	return domain.NormalizeReplicaZoneName(ns.Name), nil
}

func (c *Client) getZoneByID(ctx context.Context, id int) (*nbZone, error) {
	var z nbZone
	_, err := c.getJSON(ctx, fmt.Sprintf("/api/plugins/netbox-dns/zones/%d/", id), &z)
	if err != nil {
		return nil, err
	}
	return &z, nil
}

// getJSON performs one authenticated GET and decodes the response into v.
// path may be a relative API path or an absolute "next" URL. It returns the
// next page's relative path, or "" if there is no further page.
func (c *Client) getJSON(ctx context.Context, path string, v interface{}) (string, error) {
	reqURL := path
	if _, err := url.ParseRequestURI(path); err != nil || path[0] == '/' {
		reqURL = c.baseURL + path
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", domain.ErrSourceUnavailable, err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", domain.ErrSourceNotFound, path)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: status %d", domain.ErrSourceAuth, resp.StatusCode)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return "", fmt.Errorf("%w: status %d", domain.ErrSourceUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", domain.ErrSourceUnavailable, err)
	}

	if p, ok := v.(*page[nbZone]); ok && p.Next != nil {
		return relativeNext(*p.Next, c.baseURL), nil
	}
	if p, ok := v.(*page[nbRecord]); ok && p.Next != nil {
		return relativeNext(*p.Next, c.baseURL), nil
	}
	return "", nil
}

// relativeNext strips the scheme+host from an absolute next-page URL so the
// caller can feed it straight back into getJSON, tolerating base URL
// mismatches (e.g. containerized deployments where NetBox reports its
// internal hostname).
func relativeNext(next, baseURL string) string {
	u, err := url.Parse(next)
	if err != nil {
		return next
	}
	base, err := url.Parse(baseURL)
	if err == nil && u.Host != "" {
		u.Scheme = base.Scheme
		u.Host = base.Host
	}
	return u.RequestURI()
}
