package service

import (
	"context"
	"errors"

	"github.com/venuely/reservation-engine/internal/model"
	"github.com/venuely/reservation-engine/internal/repository"
)

// resourceReader is the slice of ResourceRepo the capacity ledger needs.
type resourceReader interface {
	GetByID(ctx context.Context, id uint64) (*model.Resource, error)
	HasDateBlockOverlap(ctx context.Context, resourceID uint64, w model.Window) (bool, error)
}

// occupancyCounter counts reservations that hold capacity for a window.
type occupancyCounter interface {
	CountOccupying(ctx context.Context, resourceID uint64, w model.Window, excludeID uint64, statuses []string) (int, error)
}

// Availability is the capacity ledger's verdict for one resource and
// window.
type Availability struct {
	Available bool `json:"available"`
	Quantity  int  `json:"quantity"`
	Booked    int  `json:"booked"`
}

// AvailabilityService is the capacity ledger. It reads and decides; it
// never reserves ahead of insertion. Admission races are resolved by the
// guarded insert in the reservation repository, and a losing request is
// a capacity error, never an automatic retry.
type AvailabilityService struct {
	resources resourceReader
	occupancy occupancyCounter
}

// NewAvailabilityService constructs the capacity ledger.
func NewAvailabilityService(resources resourceReader, occupancy occupancyCounter) *AvailabilityService {
	return &AvailabilityService{resources: resources, occupancy: occupancy}
}

// CheckAvailability reports whether a new commitment fits the resource in
// the given window. excludeReservationID, when non-zero, leaves one
// existing reservation out of the count — used when re-checking a
// reservation that already occupies the window.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, resourceID uint64, w model.Window, excludeReservationID uint64) (Availability, error) {
	if !w.Valid() {
		return Availability{}, ErrValidation
	}
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Availability{}, ErrNotFound
		}
		return Availability{}, err
	}
	out := Availability{Quantity: int(res.Quantity)}
	if !res.Active || res.DeletedAt != nil {
		return out, nil
	}
	blocked, err := s.resources.HasDateBlockOverlap(ctx, resourceID, w)
	if err != nil {
		return Availability{}, err
	}
	if blocked {
		return out, nil
	}
	booked, err := s.occupancy.CountOccupying(ctx, resourceID, w, excludeReservationID, model.Occupying.Strings())
	if err != nil {
		return Availability{}, err
	}
	out.Booked = booked
	out.Available = booked < out.Quantity
	return out, nil
}
