package scheduling

import (
	"context"
	"time"
)

// SlotStatus is the outcome of checking a candidate slot.
type SlotStatus int

const (
	// SlotOK means the slot may be booked.
	SlotOK SlotStatus = iota
	// SlotPast means the candidate time is not strictly in the future.
	SlotPast
	// SlotConflict means another Booked appointment occupies the exact time.
	SlotConflict
	// SlotUnavailable means the time is outside the doctor's published
	// availability for that date.
	SlotUnavailable
)

func (s SlotStatus) String() string {
	switch s {
	case SlotOK:
		return "ok"
	case SlotPast:
		return "past"
	case SlotConflict:
		return "conflict"
	case SlotUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// ConflictChecker decides booking legality for a candidate (doctor, time)
// pair. Pure read-only query, no side effects.
//
// Conflict matching is by exact timestamp equality. Appointments carry no
// duration, so overlaps shorter than an exact match are not detected.
type ConflictChecker struct {
	repo         AppointmentRepository
	availability AvailabilityStore
	now          func() time.Time
	loc          *time.Location
}

// NewConflictChecker creates a checker reading through repo and availability.
func NewConflictChecker(repo AppointmentRepository, availability AvailabilityStore, now func() time.Time, loc *time.Location) *ConflictChecker {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &ConflictChecker{repo: repo, availability: availability, now: now, loc: loc}
}

// CheckSlot reports whether doctorID can take an appointment at the exact
// instant at. excludeID ignores one appointment id in the conflict scan; a
// reschedule passes the id of the appointment being moved so it never
// conflicts with itself. Pass 0 to exclude nothing.
func (c *ConflictChecker) CheckSlot(ctx context.Context, doctorID uint, at time.Time, excludeID uint) (SlotStatus, error) {
	if !at.After(c.now()) {
		return SlotPast, nil
	}

	existing, err := c.repo.FindBookedByDoctorAndTime(ctx, doctorID, at, excludeID)
	if err != nil {
		return SlotConflict, err
	}
	if existing != nil {
		return SlotConflict, nil
	}

	local := at.In(c.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	cal, err := c.availability.Get(ctx, doctorID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return SlotUnavailable, err
	}
	if !cal.Allows(at, c.loc) {
		return SlotUnavailable, nil
	}

	return SlotOK, nil
}
