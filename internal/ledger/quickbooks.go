package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const qboDefaultBaseURL = "https://quickbooks.api.intuit.com"

// QuickBooksLedger implements Secondary against the QuickBooks Online API.
// Transient failures are retried by the underlying retryable HTTP client;
// anything that survives the retries surfaces as an APIError and the caller
// treats the mirror as best-effort.
type QuickBooksLedger struct {
	baseURL     string
	realmID     string
	accessToken string
	http        *retryablehttp.Client
}

// Compile-time check that QuickBooksLedger implements Secondary.
var _ Secondary = (*QuickBooksLedger)(nil)

// NewQuickBooksLedger creates an accounting-ledger client for one owner's
// access token and company realm.
func NewQuickBooksLedger(accessToken, realmID string) *QuickBooksLedger {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = 30 * time.Second
	rc.Logger = nil

	return &QuickBooksLedger{
		baseURL:     qboDefaultBaseURL,
		realmID:     realmID,
		accessToken: accessToken,
		http:        rc,
	}
}

// qboSecondaryFactory satisfies SecondaryFactory.
func qboSecondaryFactory(apiKey, realmID string) Secondary {
	return NewQuickBooksLedger(apiKey, realmID)
}

// DefaultSecondaryFactory returns the production secondary-ledger factory.
func DefaultSecondaryFactory() SecondaryFactory {
	return qboSecondaryFactory
}

// WithBaseURL points the client at a non-production endpoint (sandbox, test
// server).
func (q *QuickBooksLedger) WithBaseURL(baseURL string) *QuickBooksLedger {
	q.baseURL = baseURL
	return q
}

type qboCustomer struct {
	ID           string `json:"Id,omitempty"`
	DisplayName  string `json:"DisplayName"`
	PrimaryEmail *struct {
		Address string `json:"Address"`
	} `json:"PrimaryEmailAddr,omitempty"`
}

type qboQueryResponse struct {
	QueryResponse struct {
		Customer []qboCustomer `json:"Customer"`
	} `json:"QueryResponse"`
}

type qboCustomerResponse struct {
	Customer qboCustomer `json:"Customer"`
}

type qboInvoiceLine struct {
	Amount              float64 `json:"Amount"`
	Description         string  `json:"Description"`
	DetailType          string  `json:"DetailType"`
	SalesItemLineDetail struct {
		ItemRef struct {
			Value string `json:"value"`
		} `json:"ItemRef"`
	} `json:"SalesItemLineDetail"`
}

type qboInvoice struct {
	ID          string           `json:"Id,omitempty"`
	DocNumber   string           `json:"DocNumber,omitempty"`
	DueDate     string           `json:"DueDate"`
	PrivateNote string           `json:"PrivateNote,omitempty"`
	Line        []qboInvoiceLine `json:"Line"`
	CustomerRef struct {
		Value string `json:"value"`
	} `json:"CustomerRef"`
}

type qboInvoiceResponse struct {
	Invoice qboInvoice `json:"Invoice"`
}

// EnsurePayee finds the customer by display name, creating it when absent.
func (q *QuickBooksLedger) EnsurePayee(ctx context.Context, details PayeeDetails) (string, error) {
	query := fmt.Sprintf("select Id from Customer where DisplayName = '%s'", qboEscape(details.Name))
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s", q.baseURL, q.realmID, url.QueryEscape(query))

	var found qboQueryResponse
	if err := q.do(ctx, http.MethodGet, endpoint, nil, &found); err != nil {
		return "", err
	}
	if len(found.QueryResponse.Customer) > 0 {
		return found.QueryResponse.Customer[0].ID, nil
	}

	cust := qboCustomer{DisplayName: details.Name}
	if details.Email != "" {
		cust.PrimaryEmail = &struct {
			Address string `json:"Address"`
		}{Address: details.Email}
	}

	var created qboCustomerResponse
	endpoint = fmt.Sprintf("%s/v3/company/%s/customer", q.baseURL, q.realmID)
	if err := q.do(ctx, http.MethodPost, endpoint, cust, &created); err != nil {
		return "", err
	}
	return created.Customer.ID, nil
}

// CreateCharge mirrors a charge as a QuickBooks invoice. The primary-ledger
// reference is carried in DocNumber and the private note for reconciliation.
func (q *QuickBooksLedger) CreateCharge(ctx context.Context, params MirrorChargeParams) (string, error) {
	amount, _ := params.Amount.Float64()

	line := qboInvoiceLine{
		Amount:      amount,
		Description: params.Description,
		DetailType:  "SalesItemLineDetail",
	}
	line.SalesItemLineDetail.ItemRef.Value = "1" // default service item

	inv := qboInvoice{
		DocNumber:   params.ExternalRef,
		DueDate:     params.DueDate.Format("2006-01-02"),
		PrivateNote: fmt.Sprintf("rentroll charge, collections ref %s", params.ExternalRef),
		Line:        []qboInvoiceLine{line},
	}
	inv.CustomerRef.Value = params.PayeeRef

	var created qboInvoiceResponse
	endpoint := fmt.Sprintf("%s/v3/company/%s/invoice", q.baseURL, q.realmID)
	if err := q.do(ctx, http.MethodPost, endpoint, inv, &created); err != nil {
		return "", err
	}
	return created.Invoice.ID, nil
}

// do executes one authenticated API call and decodes the response into out.
func (q *QuickBooksLedger) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &APIError{Provider: "quickbooks", Message: "failed to encode request", OriginalError: err}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &APIError{Provider: "quickbooks", Message: "failed to build request", OriginalError: err}
	}
	req.Header.Set("Authorization", "Bearer "+q.accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := q.http.Do(req)
	if err != nil {
		return &APIError{Provider: "quickbooks", Message: "request failed", OriginalError: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Provider:   "quickbooks",
			Message:    fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, detail),
			StatusCode: resp.StatusCode,
			RequestID:  resp.Header.Get("intuit_tid"),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &APIError{Provider: "quickbooks", Message: "failed to decode response", OriginalError: err}
		}
	}
	return nil
}

// qboEscape escapes single quotes for the QBO query grammar.
func qboEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
