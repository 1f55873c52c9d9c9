package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockPrimary is a mock collections ledger for testing.
// Safe for concurrent use; batch runner tests drive it from a worker pool.
type MockPrimary struct {
	// CreateChargeFunc allows customizing charge creation behavior.
	CreateChargeFunc func(ctx context.Context, params ChargeParams) (string, error)

	// SendFunc allows customizing send behavior.
	SendFunc func(ctx context.Context, chargeRef string) error

	mu sync.Mutex

	// Charges stores created charges by reference.
	Charges map[string]ChargeParams

	// Sent tracks which references were sent.
	Sent map[string]bool

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockPrimary creates a new mock collections ledger.
func NewMockPrimary() *MockPrimary {
	return &MockPrimary{
		Charges: make(map[string]ChargeParams),
		Sent:    make(map[string]bool),
	}
}

// CreateCharge creates a mock charge.
func (m *MockPrimary) CreateCharge(ctx context.Context, params ChargeParams) (string, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCharge(%s, %s)", params.PayeeRef, params.Amount))
	m.mu.Unlock()

	if m.CreateChargeFunc != nil {
		return m.CreateChargeFunc(ctx, params)
	}

	ref := "in_" + uuid.New().String()
	m.mu.Lock()
	m.Charges[ref] = params
	m.mu.Unlock()
	return ref, nil
}

// Send marks a mock charge as sent.
func (m *MockPrimary) Send(ctx context.Context, chargeRef string) error {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("Send(%s)", chargeRef))
	m.mu.Unlock()

	if m.SendFunc != nil {
		return m.SendFunc(ctx, chargeRef)
	}

	m.mu.Lock()
	m.Sent[chargeRef] = true
	m.mu.Unlock()
	return nil
}

// CreateCount returns how many charges were created.
func (m *MockPrimary) CreateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, call := range m.CallLog {
		if len(call) >= 12 && call[:12] == "CreateCharge" {
			n++
		}
	}
	return n
}

// MockSecondary is a mock accounting ledger for testing.
type MockSecondary struct {
	// EnsurePayeeFunc allows customizing payee resolution behavior.
	EnsurePayeeFunc func(ctx context.Context, details PayeeDetails) (string, error)

	// CreateChargeFunc allows customizing mirror behavior.
	CreateChargeFunc func(ctx context.Context, params MirrorChargeParams) (string, error)

	mu sync.Mutex

	// Payees stores created payees by name.
	Payees map[string]string

	// Mirrored stores mirrored charges by reference.
	Mirrored map[string]MirrorChargeParams

	// CallLog tracks method calls for test assertions.
	CallLog []string
}

// NewMockSecondary creates a new mock accounting ledger.
func NewMockSecondary() *MockSecondary {
	return &MockSecondary{
		Payees:   make(map[string]string),
		Mirrored: make(map[string]MirrorChargeParams),
	}
}

// EnsurePayee returns a stable payee reference per name.
func (m *MockSecondary) EnsurePayee(ctx context.Context, details PayeeDetails) (string, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("EnsurePayee(%s)", details.Name))
	m.mu.Unlock()

	if m.EnsurePayeeFunc != nil {
		return m.EnsurePayeeFunc(ctx, details)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ref, ok := m.Payees[details.Name]; ok {
		return ref, nil
	}
	ref := "cust_" + uuid.New().String()
	m.Payees[details.Name] = ref
	return ref, nil
}

// CreateCharge mirrors a mock charge.
func (m *MockSecondary) CreateCharge(ctx context.Context, params MirrorChargeParams) (string, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("CreateCharge(%s, %s)", params.PayeeRef, params.ExternalRef))
	m.mu.Unlock()

	if m.CreateChargeFunc != nil {
		return m.CreateChargeFunc(ctx, params)
	}

	ref := "qbinv_" + uuid.New().String()
	m.mu.Lock()
	m.Mirrored[ref] = params
	m.mu.Unlock()
	return ref, nil
}
