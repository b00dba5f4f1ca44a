package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/plaid/plaid-go/v20/plaid"
)

func newTestPlaid(t *testing.T, handler http.HandlerFunc) *PlaidService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return newPlaidService("client-id", "secret", plaid.Environment(srv.URL))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestGetRecurringTransactionsPassesAccountIDs(t *testing.T) {
	var recurringBody map[string]interface{}
	svc := newTestPlaid(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/accounts/get":
			writeJSON(w, http.StatusOK, `{"accounts":[{"account_id":"acc-1","name":"Checking"},{"account_id":"acc-2","name":"Card"}],"request_id":"r1"}`)
		case "/transactions/recurring/get":
			if err := json.NewDecoder(r.Body).Decode(&recurringBody); err != nil {
				t.Errorf("decode request: %v", err)
			}
			writeJSON(w, http.StatusOK, `{
				"inflow_streams": [],
				"outflow_streams": [{
					"stream_id": "s1", "account_id": "acc-2", "description": "NETFLIX.COM",
					"merchant_name": "Netflix", "category": ["Service", "Subscription"],
					"frequency": "MONTHLY", "first_date": "2024-01-05", "last_date": "2024-06-05",
					"average_amount": {"amount": 15.49}, "last_amount": {"amount": 15.49},
					"is_active": true, "status": "MATURE"
				}],
				"request_id": "r2"
			}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	got, err := svc.GetRecurringTransactions(context.Background(), "access-1")
	if err != nil {
		t.Fatal(err)
	}

	ids, _ := recurringBody["account_ids"].([]interface{})
	if recurringBody["access_token"] != "access-1" || len(ids) != 2 || ids[1] != "acc-2" {
		t.Fatalf("recurring request = %v", recurringBody)
	}
	if got.InflowStreams == nil || len(got.InflowStreams) != 0 {
		t.Fatalf("inflow streams should be an empty slice, got %#v", got.InflowStreams)
	}
	if len(got.OutflowStreams) != 1 {
		t.Fatalf("outflow streams = %+v", got.OutflowStreams)
	}
	s := got.OutflowStreams[0]
	if s.MerchantName != "Netflix" || s.Frequency != "MONTHLY" || s.AverageAmount != 15.49 || !s.IsActive {
		t.Fatalf("stream = %+v", s)
	}
}

func TestGetCategoriesAndErrors(t *testing.T) {
	var fail atomic.Bool
	svc := newTestPlaid(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusBadRequest, `{"error_code":"INVALID_REQUEST"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"categories":[{"category_id":"10000000","group":"special","hierarchy":["Bank Fees"]}],"request_id":"r1"}`)
	})

	cats, err := svc.GetCategories(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 || cats[0].CategoryID != "10000000" || cats[0].Hierarchy[0] != "Bank Fees" {
		t.Fatalf("categories = %+v", cats)
	}

	fail.Store(true)
	_, err = svc.GetCategories(context.Background())
	if err == nil || !strings.Contains(err.Error(), "INVALID_REQUEST") {
		t.Fatalf("expected aggregator body in error, got %v", err)
	}
}
