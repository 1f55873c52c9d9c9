package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChargeCreated is published after a charge record is durably written.
type ChargeCreated struct {
	ChargeID   uuid.UUID `json:"charge_id"`
	LeaseID    uuid.UUID `json:"lease_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Period     string    `json:"period"`
	Amount     string    `json:"amount"`
	PrimaryRef string    `json:"primary_ref"`
	Synced     bool      `json:"synced"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RunCompleted is published after a batch run finishes, fatal or not.
type RunCompleted struct {
	Processed  int       `json:"processed"`
	Succeeded  int       `json:"succeeded"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	Duration   string    `json:"duration"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits billing lifecycle events for downstream consumers
// (monitoring, reporting). Publishing is best-effort; failures are logged by
// implementations and never affect billing outcomes.
type Publisher interface {
	PublishChargeCreated(ctx context.Context, ev ChargeCreated)
	PublishRunCompleted(ctx context.Context, ev RunCompleted)
}

// Noop is a Publisher that discards everything. Used when no event broker is
// configured.
type Noop struct{}

func (Noop) PublishChargeCreated(context.Context, ChargeCreated) {}
func (Noop) PublishRunCompleted(context.Context, RunCompleted)  {}
