package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/lodgepole/rentroll/internal/credentials"
	"github.com/lodgepole/rentroll/internal/domain"
	"github.com/lodgepole/rentroll/internal/events"
	"github.com/lodgepole/rentroll/internal/ledger"
	"github.com/lodgepole/rentroll/internal/telemetry"
)

// recordingPublisher captures published billing events for assertions.
type recordingPublisher struct {
	mu           sync.Mutex
	chargeEvents []events.ChargeCreated
	runEvents    []events.RunCompleted
}

func (p *recordingPublisher) PublishChargeCreated(_ context.Context, ev events.ChargeCreated) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.chargeEvents = append(p.chargeEvents, ev)
}

func (p *recordingPublisher) PublishRunCompleted(_ context.Context, ev events.RunCompleted) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runEvents = append(p.runEvents, ev)
}

func (p *recordingPublisher) runCompleted() []events.RunCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.RunCompleted(nil), p.runEvents...)
}

func (p *recordingPublisher) chargeCreated() []events.ChargeCreated {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.ChargeCreated(nil), p.chargeEvents...)
}

// memLeaseStore and memChargeStore back runner tests with the same contracts
// the Postgres store honors, including the charge uniqueness constraint.

type memLeaseStore struct {
	mu     sync.Mutex
	zones  []domain.OwnerZone
	leases []domain.Lease

	zonesErr  error
	leasesErr error
}

func (s *memLeaseStore) ListOwnerZones(ctx context.Context) ([]domain.OwnerZone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zonesErr != nil {
		return nil, s.zonesErr
	}
	return append([]domain.OwnerZone(nil), s.zones...), nil
}

func (s *memLeaseStore) ListBillableLeases(ctx context.Context, ownerIDs []uuid.UUID) ([]domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.leasesErr != nil {
		return nil, s.leasesErr
	}
	want := make(map[uuid.UUID]bool, len(ownerIDs))
	for _, id := range ownerIDs {
		want[id] = true
	}
	var out []domain.Lease
	for i := range s.leases {
		if want[s.leases[i].OwnerID] && s.leases[i].Billable() {
			out = append(out, s.leases[i])
		}
	}
	return out, nil
}

func (s *memLeaseStore) GetLease(ctx context.Context, id uuid.UUID) (*domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.leases {
		if s.leases[i].ID == id {
			l := s.leases[i]
			return &l, nil
		}
	}
	return nil, domain.ErrLeaseNotFound
}

type memChargeStore struct {
	mu    sync.Mutex
	byKey map[string]*domain.Charge
	byID  map[uuid.UUID]*domain.Charge

	// now stands in for the database clock stamping created_at.
	now func() time.Time

	lookupErr error
	insertErr error
}

func newMemChargeStore() *memChargeStore {
	return &memChargeStore{
		byKey: make(map[string]*domain.Charge),
		byID:  make(map[uuid.UUID]*domain.Charge),
	}
}

func chargeKey(leaseID uuid.UUID, period domain.BillingPeriod) string {
	return leaseID.String() + "|" + period.String()
}

func (s *memChargeStore) ChargeForPeriod(ctx context.Context, leaseID uuid.UUID, period domain.BillingPeriod) (*domain.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	c, ok := s.byKey[chargeKey(leaseID, period)]
	if !ok {
		return nil, domain.ErrChargeNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memChargeStore) InsertCharge(ctx context.Context, charge *domain.Charge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	key := chargeKey(charge.LeaseID, charge.Period)
	if _, ok := s.byKey[key]; ok {
		return domain.ErrChargeExists
	}
	cp := *charge
	if cp.CreatedAt.IsZero() {
		if s.now != nil {
			cp.CreatedAt = s.now().UTC()
		} else {
			cp.CreatedAt = time.Now().UTC()
		}
	}
	s.byKey[key] = &cp
	s.byID[cp.ID] = &cp
	return nil
}

func (s *memChargeStore) SetSecondaryRef(ctx context.Context, chargeID uuid.UUID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byID[chargeID]
	if !ok {
		return domain.ErrChargeNotFound
	}
	c.SecondaryRef = ref
	return nil
}

func (s *memChargeStore) ListUnsyncedCharges(ctx context.Context, cutoff time.Time) ([]domain.Charge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Charge
	for _, c := range s.byID {
		if c.SecondaryRef == "" && c.CreatedAt.Before(cutoff) {
			out = append(out, *c)
		}
	}
	return out, nil
}

// add seeds a pre-existing charge, bypassing the insert path.
func (s *memChargeStore) add(t *testing.T, charge *domain.Charge) {
	t.Helper()
	if err := s.InsertCharge(context.Background(), charge); err != nil {
		t.Fatalf("seeding charge: %v", err)
	}
}

func (s *memChargeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}

func (s *memChargeStore) get(t *testing.T, leaseID uuid.UUID, period domain.BillingPeriod) *domain.Charge {
	t.Helper()
	c, err := s.ChargeForPeriod(context.Background(), leaseID, period)
	if err != nil {
		t.Fatalf("charge for %s %s: %v", leaseID, period, err)
	}
	return c
}

// fixture wires a runner over the in-memory stores and ledger mocks. The
// clock is frozen at fixture.now; tests advance it directly.
type fixture struct {
	now       time.Time
	leases    *memLeaseStore
	charges   *memChargeStore
	primary   *ledger.MockPrimary
	secondary *ledger.MockSecondary
	creds     *credentials.MockResolver
	events    *recordingPublisher
	writer    *Writer
	runner    *Runner
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		now:       now,
		leases:    &memLeaseStore{},
		charges:   newMemChargeStore(),
		primary:   ledger.NewMockPrimary(),
		secondary: ledger.NewMockSecondary(),
		creds:     credentials.NewMockResolver(),
		events:    &recordingPublisher{},
	}
	f.charges.now = func() time.Time { return f.now }

	logger := discardLogger()
	f.writer = NewWriter(
		f.creds,
		func(apiKey string) ledger.Primary { return f.primary },
		func(apiKey, realmID string) ledger.Secondary { return f.secondary },
		f.charges,
		f.events,
		logger,
	)
	f.runner = NewRunner(
		f.leases,
		f.charges,
		f.writer,
		f.events,
		telemetry.NewBillingMetrics(prometheus.NewRegistry()),
		Config{MaxConcurrency: 4, Now: func() time.Time { return f.now }},
		logger,
	)
	return f
}

// addOwner registers an owner zone with credentials for both ledgers.
func (f *fixture) addOwner(tz string) uuid.UUID {
	ownerID := uuid.New()
	f.leases.zones = append(f.leases.zones, domain.OwnerZone{OwnerID: ownerID, Timezone: tz})
	f.creds.Add(ownerID, credentials.ProviderStripe, "sk_test_"+ownerID.String()[:8])
	f.creds.Add(ownerID, credentials.ProviderQuickBooks, "qb_test_"+ownerID.String()[:8])
	return ownerID
}

func (f *fixture) addLease(ownerID uuid.UUID, tz string, rent int64) *domain.Lease {
	lease := domain.Lease{
		ID:              uuid.New(),
		OwnerID:         ownerID,
		Timezone:        tz,
		PropertyAddress: "12 Elm St",
		Unit:            "2B",
		TenantName:      "Pat Doe",
		TenantEmail:     "pat@example.com",
		PrimaryPayeeRef: "cus_" + uuid.New().String()[:8],
		BaseRent:        decimal.NewFromInt(rent),
		RentDueDay:      1,
		Status:          domain.LeaseStatusActive,
		AutoInvoice:     true,
	}
	f.leases.leases = append(f.leases.leases, lease)
	return &f.leases.leases[len(f.leases.leases)-1]
}
