package scheduling

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"hospital-booking-server/internal/models"
)

// CompletionUpdate carries the doctor-facing partial update applied when an
// appointment is concluded. Nil fields are left untouched, not cleared.
type CompletionUpdate struct {
	Diagnosis    *string
	Prescription *string
	Notes        *string
	Status       *models.AppointmentStatus
}

// Engine orchestrates every appointment state transition. It is the sole
// mutator of appointment state; all writes go through the injected
// repository so the no-double-booking invariant is enforced inside one
// transaction per operation.
//
// State machine: Booked -> {Completed, Cancelled}; Booked -> Booked on
// reschedule (time change only). Terminal states admit no transitions.
type Engine struct {
	repo         AppointmentRepository
	availability AvailabilityStore
	now          func() time.Time
	loc          *time.Location
	log          zerolog.Logger
}

// NewEngine creates a scheduling engine. now may be nil (defaults to
// time.Now); loc may be nil (defaults to time.Local).
func NewEngine(repo AppointmentRepository, availability AvailabilityStore, loc *time.Location, log zerolog.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		repo:         repo,
		availability: availability,
		now:          time.Now,
		loc:          loc,
		log:          log,
	}
}

// WithClock overrides the engine's notion of now. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

func (e *Engine) checker(repo AppointmentRepository) *ConflictChecker {
	return NewConflictChecker(repo, e.availability, e.now, e.loc)
}

func slotError(status SlotStatus) error {
	switch status {
	case SlotPast:
		return ErrInvalidTime
	case SlotConflict:
		return ErrSlotTaken
	case SlotUnavailable:
		return ErrSlotUnavailable
	default:
		return nil
	}
}

// Book creates a new Booked appointment for the patient with the doctor at
// the exact instant at. The conflict check and the insert run in one
// transaction so concurrent bookers of the same slot cannot both succeed.
func (e *Engine) Book(ctx context.Context, patientID, doctorID uint, at time.Time) (*models.Appointment, error) {
	var appt *models.Appointment
	err := e.repo.InTransaction(ctx, func(tx AppointmentRepository) error {
		status, err := e.checker(tx).CheckSlot(ctx, doctorID, at, 0)
		if err != nil {
			return err
		}
		if serr := slotError(status); serr != nil {
			return serr
		}

		appt = &models.Appointment{
			PatientID: patientID,
			DoctorID:  doctorID,
			DateTime:  at,
			Status:    models.StatusBooked,
		}
		return tx.Insert(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("appointment_id", appt.ID).
		Uint("patient_id", patientID).
		Uint("doctor_id", doctorID).
		Time("date_time", at).
		Msg("appointment booked")
	return appt, nil
}

// Reschedule moves the patient's Booked appointment to newTime. The
// appointment's own slot is excluded from the conflict scan, so rescheduling
// to the current time succeeds.
func (e *Engine) Reschedule(ctx context.Context, appointmentID, patientID uint, newTime time.Time) (*models.Appointment, error) {
	var appt *models.Appointment
	err := e.repo.InTransaction(ctx, func(tx AppointmentRepository) error {
		var err error
		appt, err = tx.FindByIDForPatient(ctx, appointmentID, patientID)
		if err != nil {
			return err
		}
		if appt.Status != models.StatusBooked {
			return ErrInvalidState
		}

		status, err := e.checker(tx).CheckSlot(ctx, appt.DoctorID, newTime, appt.ID)
		if err != nil {
			return err
		}
		if serr := slotError(status); serr != nil {
			return serr
		}

		appt.DateTime = newTime
		return tx.Update(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("appointment_id", appt.ID).
		Time("date_time", newTime).
		Msg("appointment rescheduled")
	return appt, nil
}

// Cancel moves the patient's Booked appointment to Cancelled. Cancelling an
// appointment that is already Cancelled or Completed fails with
// ErrInvalidState.
func (e *Engine) Cancel(ctx context.Context, appointmentID, patientID uint) (*models.Appointment, error) {
	var appt *models.Appointment
	err := e.repo.InTransaction(ctx, func(tx AppointmentRepository) error {
		var err error
		appt, err = tx.FindByIDForPatient(ctx, appointmentID, patientID)
		if err != nil {
			return err
		}
		if appt.Status != models.StatusBooked {
			return ErrInvalidState
		}
		appt.Status = models.StatusCancelled
		return tx.Update(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().Uint("appointment_id", appt.ID).Msg("appointment cancelled")
	return appt, nil
}

// CompleteWithRecord applies the doctor's clinical record to their Booked
// appointment. Only supplied fields change. A supplied status must be
// Completed or Cancelled; any other target is rejected, and terminal
// appointments admit no further changes.
func (e *Engine) CompleteWithRecord(ctx context.Context, appointmentID, doctorID uint, update CompletionUpdate) (*models.Appointment, error) {
	var appt *models.Appointment
	err := e.repo.InTransaction(ctx, func(tx AppointmentRepository) error {
		var err error
		appt, err = tx.FindByIDForDoctor(ctx, appointmentID, doctorID)
		if err != nil {
			return err
		}
		if appt.Status.IsTerminal() {
			return ErrInvalidState
		}
		if update.Status != nil {
			if *update.Status != models.StatusCompleted && *update.Status != models.StatusCancelled {
				return ErrInvalidState
			}
			appt.Status = *update.Status
		}
		if update.Diagnosis != nil {
			appt.Diagnosis = *update.Diagnosis
		}
		if update.Prescription != nil {
			appt.Prescription = *update.Prescription
		}
		if update.Notes != nil {
			appt.Notes = *update.Notes
		}
		return tx.Update(ctx, appt)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("appointment_id", appt.ID).
		Str("status", string(appt.Status)).
		Msg("appointment record updated")
	return appt, nil
}

// ListForPatient returns every appointment for the patient, newest first.
func (e *Engine) ListForPatient(ctx context.Context, patientID uint) ([]models.Appointment, error) {
	return e.repo.FindByPatient(ctx, patientID)
}

// ListForDoctor returns every appointment for the doctor, oldest first.
func (e *Engine) ListForDoctor(ctx context.Context, doctorID uint) ([]models.Appointment, error) {
	return e.repo.FindByDoctor(ctx, doctorID)
}

// TreatmentHistory returns the patient's Completed appointments.
func (e *Engine) TreatmentHistory(ctx context.Context, patientID uint) ([]models.Appointment, error) {
	return e.repo.FindCompletedByPatient(ctx, patientID)
}

// UpcomingForDoctor returns the doctor's Booked appointments within the next
// days days, ordered by time.
func (e *Engine) UpcomingForDoctor(ctx context.Context, doctorID uint, days int) ([]models.Appointment, error) {
	now := e.now()
	return e.repo.FindByDoctorInRange(ctx, doctorID, now, now.AddDate(0, 0, days), models.StatusBooked)
}

// HistoryForDoctorPatient returns a patient's Completed appointments with one
// doctor, the record the doctor may review.
func (e *Engine) HistoryForDoctorPatient(ctx context.Context, doctorID, patientID uint) ([]models.Appointment, error) {
	appts, err := e.repo.FindByDoctor(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	var history []models.Appointment
	for _, a := range appts {
		if a.PatientID == patientID && a.Status == models.StatusCompleted {
			history = append(history, a)
		}
	}
	return history, nil
}

// Availability exposes the injected availability store for callers that
// publish or read doctor calendars.
func (e *Engine) Availability() AvailabilityStore {
	return e.availability
}
