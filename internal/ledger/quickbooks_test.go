package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newQBOTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *QuickBooksLedger) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	q := NewQuickBooksLedger("tok_test", "realm123").WithBaseURL(srv.URL)
	q.http.RetryMax = 0
	return srv, q
}

func TestQuickBooksEnsurePayeeExisting(t *testing.T) {
	_, q := newQBOTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/v3/company/realm123/query") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok_test" {
			t.Errorf("authorization = %q", got)
		}
		query := r.URL.Query().Get("query")
		if !strings.Contains(query, "DisplayName = 'Pat Doe'") {
			t.Errorf("query = %q", query)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"QueryResponse": map[string]any{
				"Customer": []map[string]any{{"Id": "42", "DisplayName": "Pat Doe"}},
			},
		})
	})

	ref, err := q.EnsurePayee(context.Background(), PayeeDetails{Name: "Pat Doe", Email: "pat@example.com"})
	if err != nil {
		t.Fatalf("EnsurePayee: %v", err)
	}
	if ref != "42" {
		t.Errorf("payee ref = %q, want 42", ref)
	}
}

func TestQuickBooksEnsurePayeeCreates(t *testing.T) {
	var createdName string
	_, q := newQBOTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/v3/company/realm123/query"):
			_ = json.NewEncoder(w).Encode(map[string]any{"QueryResponse": map[string]any{}})
		case r.URL.Path == "/v3/company/realm123/customer" && r.Method == http.MethodPost:
			var cust struct {
				DisplayName string `json:"DisplayName"`
			}
			_ = json.NewDecoder(r.Body).Decode(&cust)
			createdName = cust.DisplayName
			_ = json.NewEncoder(w).Encode(map[string]any{
				"Customer": map[string]any{"Id": "77", "DisplayName": cust.DisplayName},
			})
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	ref, err := q.EnsurePayee(context.Background(), PayeeDetails{Name: "O'Brien"})
	if err != nil {
		t.Fatalf("EnsurePayee: %v", err)
	}
	if ref != "77" {
		t.Errorf("payee ref = %q, want 77", ref)
	}
	if createdName != "O'Brien" {
		t.Errorf("created customer %q, want O'Brien", createdName)
	}
}

func TestQuickBooksCreateCharge(t *testing.T) {
	_, q := newQBOTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/company/realm123/invoice" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var inv qboInvoice
		if err := json.NewDecoder(r.Body).Decode(&inv); err != nil {
			t.Fatalf("decoding invoice: %v", err)
		}
		if inv.DocNumber != "in_abc" {
			t.Errorf("doc number = %q, want the collections reference", inv.DocNumber)
		}
		if inv.DueDate != "2024-03-01" {
			t.Errorf("due date = %q", inv.DueDate)
		}
		if inv.CustomerRef.Value != "42" {
			t.Errorf("customer ref = %q", inv.CustomerRef.Value)
		}
		if len(inv.Line) != 1 || inv.Line[0].Amount != 1500 {
			t.Errorf("lines = %+v", inv.Line)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"Invoice": map[string]any{"Id": "inv_9"}})
	})

	ref, err := q.CreateCharge(context.Background(), MirrorChargeParams{
		PayeeRef:    "42",
		Description: "Rent for 12 Elm St (March 2024)",
		Amount:      decimal.NewFromInt(1500),
		DueDate:     time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		ExternalRef: "in_abc",
	})
	if err != nil {
		t.Fatalf("CreateCharge: %v", err)
	}
	if ref != "inv_9" {
		t.Errorf("charge ref = %q, want inv_9", ref)
	}
}

func TestQuickBooksErrorStatus(t *testing.T) {
	_, q := newQBOTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("intuit_tid", "tid-123")
		http.Error(w, "ValidationFault", http.StatusBadRequest)
	})

	_, err := q.EnsurePayee(context.Background(), PayeeDetails{Name: "Pat Doe"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apiErr.StatusCode)
	}
	if apiErr.RequestID != "tid-123" {
		t.Errorf("request id = %q, want tid-123", apiErr.RequestID)
	}
}
