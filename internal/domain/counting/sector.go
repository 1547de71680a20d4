package counting

import (
	"time"

	"github.com/tally/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SectorStatus represents the lifecycle state of a counting sector
type SectorStatus string

const (
	SectorStatusPending    SectorStatus = "PENDING"
	SectorStatusInProgress SectorStatus = "IN_PROGRESS"
	SectorStatusFinalized  SectorStatus = "FINALIZED"
)

// IsValid checks if the status is a valid SectorStatus
func (s SectorStatus) IsValid() bool {
	switch s {
	case SectorStatusPending, SectorStatusInProgress, SectorStatusFinalized:
		return true
	}
	return false
}

// String returns the string representation of SectorStatus
func (s SectorStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status.
// The only legal moves are Pending->InProgress, InProgress->Finalized,
// InProgress->Pending (release) and Finalized->InProgress (reopen).
func (s SectorStatus) CanTransitionTo(target SectorStatus) bool {
	switch s {
	case SectorStatusPending:
		return target == SectorStatusInProgress
	case SectorStatusInProgress:
		return target == SectorStatusFinalized || target == SectorStatusPending
	case SectorStatusFinalized:
		return target == SectorStatusInProgress
	}
	return false
}

// Sector is a numbered subdivision of an inventory assigned to one counting
// session at a time. The exclusive-open guarantee is enforced by a conditional
// update at the storage layer; the methods here validate the state machine and
// emit the matching domain events.
type Sector struct {
	shared.TenantAggregateRoot
	InventoryID uuid.UUID
	Number      int
	RangeStart  int64 // inclusive barcode range start
	RangeEnd    int64 // exclusive barcode range end
	Label       string
	Status      SectorStatus
	HolderID    *uuid.UUID
	HolderName  string
	OpenedAt    *time.Time
	FinalizedAt *time.Time
}

// NewSector creates a new pending sector for an inventory
func NewSector(tenantID, inventoryID uuid.UUID, number int, rangeStart, rangeEnd int64, label string) (*Sector, error) {
	if inventoryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INVENTORY", "Inventory ID cannot be empty")
	}
	if number <= 0 {
		return nil, shared.NewDomainError("INVALID_SECTOR_NUMBER", "Sector number must be positive")
	}
	if rangeEnd < rangeStart {
		return nil, shared.NewDomainError("INVALID_SECTOR_RANGE", "Sector range end cannot precede range start")
	}

	return &Sector{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InventoryID:         inventoryID,
		Number:              number,
		RangeStart:          rangeStart,
		RangeEnd:            rangeEnd,
		Label:               label,
		Status:              SectorStatusPending,
	}, nil
}

// HeldBy reports whether the sector is currently held by the given operator
func (s *Sector) HeldBy(operatorID uuid.UUID) bool {
	return s.Status == SectorStatusInProgress && s.HolderID != nil && *s.HolderID == operatorID
}

// CheckOpenable validates the open preconditions without mutating the sector.
// It returns alreadyHeld=true when the requesting operator already holds this
// sector, which callers treat as an idempotent success.
func (s *Sector) CheckOpenable(operator Actor) (alreadyHeld bool, err error) {
	switch s.Status {
	case SectorStatusFinalized:
		return false, ErrSectorAlreadyFinalized.WithDetail("sector_number", s.Number)
	case SectorStatusInProgress:
		if s.HeldBy(operator.ID) {
			return true, nil
		}
		return false, ErrSectorInUse.WithDetail("holder_name", s.HolderName)
	}
	return false, nil
}

// Open transitions the sector to InProgress held by the operator. The caller
// must have validated openability and won the storage-level claim first.
func (s *Sector) Open(operator Actor, origin Origin) error {
	if _, err := s.CheckOpenable(operator); err != nil {
		return err
	}

	now := time.Now()
	holderID := operator.ID
	s.Status = SectorStatusInProgress
	s.HolderID = &holderID
	s.HolderName = operator.Name
	s.OpenedAt = &now
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewSectorOpenedEvent(s, operator, origin))
	return nil
}

// Finalize closes the sector to further counting and clears the holder.
// Divergence resolution is evaluated at the inventory level, not here.
func (s *Sector) Finalize(operator Actor, origin Origin) error {
	if s.Status != SectorStatusInProgress {
		return ErrSectorNotInProgress.WithDetail("status", s.Status.String())
	}

	now := time.Now()
	s.Status = SectorStatusFinalized
	s.HolderID = nil
	s.HolderName = ""
	s.FinalizedAt = &now
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewSectorFinalizedEvent(s, operator, origin))
	return nil
}

// Reopen puts a finalized sector back in progress, held by the operator.
// Permission to reopen is checked by the caller against the authorization
// collaborator; this method only enforces the state machine.
func (s *Sector) Reopen(operator Actor, origin Origin) error {
	if s.Status != SectorStatusFinalized {
		return ErrSectorNotFinalized.WithDetail("status", s.Status.String())
	}

	now := time.Now()
	holderID := operator.ID
	s.Status = SectorStatusInProgress
	s.HolderID = &holderID
	s.HolderName = operator.Name
	s.OpenedAt = &now
	s.FinalizedAt = nil
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewSectorReopenedEvent(s, operator, origin))
	return nil
}

// Release returns an in-progress sector to Pending without finalizing it, so
// another operator can take over.
func (s *Sector) Release(operator Actor, origin Origin) error {
	if s.Status != SectorStatusInProgress {
		return ErrSectorNotInProgress.WithDetail("status", s.Status.String())
	}

	now := time.Now()
	s.Status = SectorStatusPending
	s.HolderID = nil
	s.HolderName = ""
	s.OpenedAt = nil
	s.UpdatedAt = now
	s.IncrementVersion()

	s.AddDomainEvent(NewSectorReleasedEvent(s, operator, origin))
	return nil
}

// Ref returns a lightweight reference used in closing previews and error details
func (s *Sector) Ref() SectorRef {
	return SectorRef{
		ID:     s.ID,
		Number: s.Number,
		Label:  s.Label,
		Status: s.Status,
	}
}

// SectorRef identifies a sector in projections and structured error details
type SectorRef struct {
	ID     uuid.UUID    `json:"id"`
	Number int          `json:"number"`
	Label  string       `json:"label,omitempty"`
	Status SectorStatus `json:"status"`
}
