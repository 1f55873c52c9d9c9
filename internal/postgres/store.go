package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lodgepole/rentroll/internal/domain"
)

// Store implements domain.LeaseStore and domain.ChargeStore using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Compile-time checks that Store implements the domain store interfaces.
var (
	_ domain.LeaseStore  = (*Store)(nil)
	_ domain.ChargeStore = (*Store)(nil)
)

// NewStore creates a PostgreSQL-backed store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const billableStatusFilter = `status IN ('active', 'month_to_month') AND auto_invoice`

// ListOwnerZones returns one entry per distinct lease owner that has at
// least one billable lease.
func (s *Store) ListOwnerZones(ctx context.Context) ([]domain.OwnerZone, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT owner_id, timezone FROM leases WHERE `+billableStatusFilter)
	if err != nil {
		return nil, domain.Unavailable(err, "lease.list_owner_zones", "failed to query owner zones")
	}
	defer rows.Close()

	var zones []domain.OwnerZone
	for rows.Next() {
		var z domain.OwnerZone
		if err := rows.Scan(&z.OwnerID, &z.Timezone); err != nil {
			return nil, domain.Internal(err, "lease.list_owner_zones", "failed to scan owner zone")
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(err, "lease.list_owner_zones", "failed to read owner zones")
	}
	return zones, nil
}

const leaseColumns = `id, owner_id, timezone, property_address, unit, tenant_name, tenant_email,
	primary_payee_ref, base_rent, rent_due_day, status, auto_invoice, created_at, updated_at`

// ListBillableLeases returns billable leases for the given owners, with
// rent-increase history attached in insertion order.
func (s *Store) ListBillableLeases(ctx context.Context, ownerIDs []uuid.UUID) ([]domain.Lease, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+leaseColumns+` FROM leases
		 WHERE owner_id = ANY($1) AND `+billableStatusFilter+`
		 ORDER BY id`,
		ownerIDs)
	if err != nil {
		return nil, domain.Unavailable(err, "lease.list_billable", "failed to query leases")
	}
	defer rows.Close()

	var leases []domain.Lease
	for rows.Next() {
		lease, err := scanLease(rows)
		if err != nil {
			return nil, domain.Internal(err, "lease.list_billable", "failed to scan lease")
		}
		leases = append(leases, *lease)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(err, "lease.list_billable", "failed to read leases")
	}

	if err := s.attachIncreases(ctx, leases); err != nil {
		return nil, err
	}
	return leases, nil
}

// GetLease returns one lease with its rent-increase history.
func (s *Store) GetLease(ctx context.Context, id uuid.UUID) (*domain.Lease, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leaseColumns+` FROM leases WHERE id = $1`, id)

	lease, err := scanLease(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrLeaseNotFound
		}
		return nil, domain.Unavailable(err, "lease.get", "failed to query lease")
	}

	leases := []domain.Lease{*lease}
	if err := s.attachIncreases(ctx, leases); err != nil {
		return nil, err
	}
	return &leases[0], nil
}

// attachIncreases loads rent-increase history for the given leases, ordered
// by insertion position so resolver tie-breaking stays deterministic.
func (s *Store) attachIncreases(ctx context.Context, leases []domain.Lease) error {
	if len(leases) == 0 {
		return nil
	}

	ids := make([]uuid.UUID, len(leases))
	index := make(map[uuid.UUID]int, len(leases))
	for i := range leases {
		ids[i] = leases[i].ID
		index[leases[i].ID] = i
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, lease_id, effective_date, new_amount
		 FROM rent_increases
		 WHERE lease_id = ANY($1)
		 ORDER BY position`,
		ids)
	if err != nil {
		return domain.Unavailable(err, "lease.increases", "failed to query rent increases")
	}
	defer rows.Close()

	for rows.Next() {
		var inc domain.RentIncrease
		if err := rows.Scan(&inc.ID, &inc.LeaseID, &inc.EffectiveDate, &inc.NewAmount); err != nil {
			return domain.Internal(err, "lease.increases", "failed to scan rent increase")
		}
		if i, ok := index[inc.LeaseID]; ok {
			leases[i].Increases = append(leases[i].Increases, inc)
		}
	}
	if err := rows.Err(); err != nil {
		return domain.Unavailable(err, "lease.increases", "failed to read rent increases")
	}
	return nil
}

// ChargeForPeriod returns the charge for the lease and billing period, or
// domain.ErrChargeNotFound.
func (s *Store) ChargeForPeriod(ctx context.Context, leaseID uuid.UUID, period domain.BillingPeriod) (*domain.Charge, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, lease_id, period_month, period_year, amount, due_date, status,
		        primary_ref, secondary_ref, created_at, updated_at
		 FROM rent_charges
		 WHERE lease_id = $1 AND period_month = $2 AND period_year = $3`,
		leaseID, int(period.Month), period.Year)

	charge, err := scanCharge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChargeNotFound
		}
		return nil, domain.Unavailable(err, "charge.for_period", "failed to query charge")
	}
	return charge, nil
}

// InsertCharge writes a new charge. The (lease_id, period_month, period_year)
// uniqueness constraint makes this the atomic insert-if-absent that backs the
// idempotency guarantee; a concurrent duplicate returns domain.ErrChargeExists.
func (s *Store) InsertCharge(ctx context.Context, charge *domain.Charge) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO rent_charges
		   (id, lease_id, period_month, period_year, amount, due_date, status, primary_ref)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (lease_id, period_month, period_year) DO NOTHING`,
		charge.ID, charge.LeaseID, int(charge.Period.Month), charge.Period.Year,
		charge.Amount, charge.DueDate, charge.Status, charge.PrimaryRef)
	if err != nil {
		return domain.Unavailable(err, "charge.insert", "failed to insert charge")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChargeExists
	}
	return nil
}

// SetSecondaryRef records a completed accounting mirror.
func (s *Store) SetSecondaryRef(ctx context.Context, chargeID uuid.UUID, ref string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE rent_charges SET secondary_ref = $2, updated_at = now() WHERE id = $1`,
		chargeID, ref)
	if err != nil {
		return domain.Unavailable(err, "charge.set_secondary_ref", "failed to update charge")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChargeNotFound
	}
	return nil
}

// ListUnsyncedCharges returns charges without a secondary reference created
// before the cutoff.
func (s *Store) ListUnsyncedCharges(ctx context.Context, cutoff time.Time) ([]domain.Charge, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lease_id, period_month, period_year, amount, due_date, status,
		        primary_ref, secondary_ref, created_at, updated_at
		 FROM rent_charges
		 WHERE secondary_ref IS NULL AND created_at < $1
		 ORDER BY created_at`,
		cutoff)
	if err != nil {
		return nil, domain.Unavailable(err, "charge.list_unsynced", "failed to query charges")
	}
	defer rows.Close()

	var charges []domain.Charge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, domain.Internal(err, "charge.list_unsynced", "failed to scan charge")
		}
		charges = append(charges, *charge)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Unavailable(err, "charge.list_unsynced", "failed to read charges")
	}
	return charges, nil
}

// scanLease scans one lease row.
func scanLease(row pgx.Row) (*domain.Lease, error) {
	var l domain.Lease
	var unit, payeeRef pgtype.Text
	err := row.Scan(
		&l.ID, &l.OwnerID, &l.Timezone, &l.PropertyAddress, &unit,
		&l.TenantName, &l.TenantEmail, &payeeRef, &l.BaseRent, &l.RentDueDay,
		&l.Status, &l.AutoInvoice, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.Unit = unit.String
	l.PrimaryPayeeRef = payeeRef.String
	return &l, nil
}

// scanCharge scans one charge row.
func scanCharge(row pgx.Row) (*domain.Charge, error) {
	var c domain.Charge
	var month int
	var secondaryRef pgtype.Text
	err := row.Scan(
		&c.ID, &c.LeaseID, &month, &c.Period.Year, &c.Amount, &c.DueDate,
		&c.Status, &c.PrimaryRef, &secondaryRef, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Period.Month = time.Month(month)
	c.SecondaryRef = secondaryRef.String
	return &c, nil
}
