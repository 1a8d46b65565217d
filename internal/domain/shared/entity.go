package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity is the identity and audit stamp of configuration records such
// as locations. Ledger rows (cells, movements) carry their own keys.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity stamps a fresh id in UTC.
func NewBaseEntity() BaseEntity {
	now := SystemClock()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// Clock returns the current time. Services take one so tests can pin the
// sales window and alert dates.
type Clock func() time.Time

// SystemClock is the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// StartOfDay truncates t to midnight UTC. Alert days are UTC days.
func StartOfDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
