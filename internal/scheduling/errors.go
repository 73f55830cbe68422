package scheduling

import "errors"

// Common errors returned by the scheduling engine.
var (
	// ErrInvalidTime means the requested time is not strictly in the future.
	ErrInvalidTime = errors.New("appointment time must be in the future")
	// ErrSlotTaken means another Booked appointment already occupies the slot.
	ErrSlotTaken = errors.New("time slot is already booked")
	// ErrSlotUnavailable means the doctor has published availability for the
	// day and the requested time is not among the open slots.
	ErrSlotUnavailable = errors.New("doctor is not available at this time")
	// ErrNotFound means no appointment matches the id for the acting party.
	ErrNotFound = errors.New("appointment not found")
	// ErrInvalidState means the appointment's status does not allow the transition.
	ErrInvalidState = errors.New("appointment status does not allow this operation")
	// ErrForbidden means the actor does not own the resource.
	ErrForbidden = errors.New("not authorized to access this resource")
)
