package sourceclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olsontechllc/netbox-pdns/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestListOwnedZones_DrainsPagination(t *testing.T) {
	var srv *httptest.Server
	firstCalled := false

	mux := http.NewServeMux()
	mux.HandleFunc("/api/plugins/netbox-dns/zones/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Token nbtok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if !firstCalled {
			firstCalled = true
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"next": srv.URL + "/api/plugins/netbox-dns/zones/?nameserver_id=3&limit=200&offset=200",
				"results": []map[string]interface{}{
					{"id": 1, "name": "a.example.com", "default_ttl": 300,
						"nameservers": []map[string]string{{"name": "ns1.example.com"}}},
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"next": nil,
			"results": []map[string]interface{}{
				{"id": 2, "name": "b.example.com", "default_ttl": 600,
					"nameservers": []map[string]string{{"name": "ns1.example.com"}}},
			},
		})
	})
	srv = httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "nbtok", srv.Client())

	zones, err := c.ListOwnedZones(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, zones, 2)
	require.Equal(t, "a.example.com", zones[0].Name)
	require.Equal(t, "b.example.com", zones[1].Name)
	require.Equal(t, []string{"ns1.example.com."}, zones[0].Nameservers)
}

func TestGetZoneRecords_NotFoundWhenZoneGone(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/plugins/netbox-dns/records/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"next": nil, "results": []interface{}{}})
	})
	mux.HandleFunc("/api/plugins/netbox-dns/zones/99/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "tok", srv.Client())
	_, err := c.GetZoneRecords(context.Background(), ZoneSummary{ID: 99, Name: "gone.example.com", DefaultTTL: 300})
	require.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestGetNameserverFQDN_NormalizesTrailingDot(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/plugins/netbox-dns/nameservers/3/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"name": "ns1.example.com"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "tok", srv.Client())
	fqdn, err := c.GetNameserverFQDN(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, "ns1.example.com.", fqdn)
}

func TestGetZoneRecords_GroupsByNameAndType(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/plugins/netbox-dns/records/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"next": nil,
			"results": []map[string]interface{}{
				{"fqdn": "www.example.com.", "type": "A", "value": "10.0.0.1"},
				{"fqdn": "www.example.com.", "type": "A", "value": "10.0.0.2"},
				{"fqdn": "mail", "type": "MX", "value": "10 mail.example.com."},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := New(srv.URL, "tok", srv.Client())
	rrsets, err := c.GetZoneRecords(context.Background(), ZoneSummary{ID: 1, Name: "example.com", DefaultTTL: 300})
	require.NoError(t, err)
	require.Len(t, rrsets, 2)

	byKey := map[domain.RecordSetKey]domain.RecordSet{}
	for _, rs := range rrsets {
		byKey[rs.Key()] = rs
	}
	www := byKey[domain.RecordSetKey{Name: "www.example.com.", Type: "A"}]
	require.Len(t, www.Records, 2)
	mail := byKey[domain.RecordSetKey{Name: "mail.example.com.", Type: "MX"}]
	require.Equal(t, 300, mail.TTL)
}
