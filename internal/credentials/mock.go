package credentials

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MockResolver is an in-memory Resolver for testing.
// Safe for concurrent use; batch runner tests drive it from a worker pool.
type MockResolver struct {
	// GetFunc allows customizing lookup behavior.
	GetFunc func(ctx context.Context, ownerID uuid.UUID, provider Provider) (*Credentials, error)

	mu sync.Mutex

	// Store holds credentials keyed by "ownerID:provider".
	Store map[string]*Credentials

	// CallLog tracks lookups for test assertions.
	CallLog []string
}

// NewMockResolver creates an empty mock resolver.
func NewMockResolver() *MockResolver {
	return &MockResolver{Store: make(map[string]*Credentials)}
}

// Add registers credentials for an owner/provider pair.
func (m *MockResolver) Add(ownerID uuid.UUID, provider Provider, apiKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Store[mockKey(ownerID, provider)] = &Credentials{
		OwnerID:  ownerID,
		Provider: provider,
		APIKey:   apiKey,
	}
}

// Get returns stored credentials or ErrNotFound.
func (m *MockResolver) Get(ctx context.Context, ownerID uuid.UUID, provider Provider) (*Credentials, error) {
	m.mu.Lock()
	m.CallLog = append(m.CallLog, fmt.Sprintf("Get(%s, %s)", ownerID, provider))
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, ownerID, provider)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.Store[mockKey(ownerID, provider)]
	if !ok {
		return nil, ErrNotFound
	}
	return creds, nil
}

func mockKey(ownerID uuid.UUID, provider Provider) string {
	return ownerID.String() + ":" + string(provider)
}
