package junglescout

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("key-123", srv.URL, "us", 0, WithHTTPClient(srv.Client()))
}

func TestGetSalesEstimates(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/products" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Errorf("authorization = %q", got)
		}
		if got := r.URL.Query().Get("marketplace"); got != "us" {
			t.Errorf("marketplace = %q", got)
		}
		if got := r.URL.Query().Get("asins"); got != "A1,A2,A3" {
			t.Errorf("asins = %q", got)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"id":"us/A1","attributes":{"estimated_monthly_sales":120,"estimated_monthly_sales_revenue":2400.5}},
			{"id":"A2","attributes":{"estimated_monthly_sales":null}}]}`))
	})

	got, err := client.GetSalesEstimates(context.Background(), []string{"A1", "A2", "A3"})
	if err != nil {
		t.Fatalf("GetSalesEstimates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("estimates = %d, want 2", len(got))
	}
	if got[0].ASIN != "A1" || got[0].MonthlySales == nil || *got[0].MonthlySales != 120 ||
		got[0].MonthlyRevenue == nil || *got[0].MonthlyRevenue != 2400.5 {
		t.Fatalf("unexpected first estimate: %+v", got[0])
	}
	if got[1].ASIN != "A2" || got[1].MonthlySales != nil || got[1].MonthlyRevenue != nil {
		t.Fatalf("missing figures should stay nil: %+v", got[1])
	}
}

func TestGetSalesEstimatesLimits(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	asins := make([]string, MaxASINsPerRequest+1)
	for i := range asins {
		asins[i] = "A"
	}
	if _, err := client.GetSalesEstimates(context.Background(), asins); !errors.Is(err, ErrTooManyASINs) {
		t.Fatalf("expected ErrTooManyASINs, got %v", err)
	}

	got, err := client.GetSalesEstimates(context.Background(), nil)
	if err != nil || got != nil {
		t.Fatalf("empty input: got %v, %v", got, err)
	}
	if calls != 0 {
		t.Fatalf("no request expected, got %d", calls)
	}
}

func TestGetSalesEstimatesAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"title":"Unauthorized","detail":"bad key"}]}`))
	})

	_, err := client.GetSalesEstimates(context.Background(), []string{"A1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized || apiErr.Detail != "bad key" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestMissingAPIKey(t *testing.T) {
	client := New("", "http://127.0.0.1:1", "us", 0)
	if _, err := client.GetSalesEstimates(context.Background(), []string{"A1"}); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}
