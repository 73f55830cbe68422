package scheduling

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hospital-booking-server/internal/models"
)

// ---------- Fakes ----------

// fakeRepo is an in-memory AppointmentRepository. InTransaction serializes
// whole operations, matching the atomic check-and-insert the engine needs.
type fakeRepo struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	nextID uint
	appts  map[uint]*models.Appointment
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1, appts: make(map[uint]*models.Appointment)}
}

func (r *fakeRepo) FindByID(_ context.Context, id uint) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *fakeRepo) FindByIDForPatient(_ context.Context, id, patientID uint) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appts[id]
	if !ok || appt.PatientID != patientID {
		return nil, ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *fakeRepo) FindByIDForDoctor(_ context.Context, id, doctorID uint) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appts[id]
	if !ok || appt.DoctorID != doctorID {
		return nil, ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *fakeRepo) FindBookedByDoctorAndTime(_ context.Context, doctorID uint, at time.Time, excludeID uint) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, appt := range r.appts {
		if appt.DoctorID == doctorID && appt.DateTime.Equal(at) &&
			appt.Status == models.StatusBooked && appt.ID != excludeID {
			cp := *appt
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) FindByPatient(_ context.Context, patientID uint) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Appointment
	for _, appt := range r.appts {
		if appt.PatientID == patientID {
			out = append(out, *appt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.After(out[j].DateTime) })
	return out, nil
}

func (r *fakeRepo) FindByDoctor(_ context.Context, doctorID uint) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Appointment
	for _, appt := range r.appts {
		if appt.DoctorID == doctorID {
			out = append(out, *appt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (r *fakeRepo) FindByDoctorInRange(_ context.Context, doctorID uint, from, to time.Time, status models.AppointmentStatus) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Appointment
	for _, appt := range r.appts {
		if appt.DoctorID != doctorID {
			continue
		}
		if appt.DateTime.Before(from) || !appt.DateTime.Before(to) {
			continue
		}
		if status != "" && appt.Status != status {
			continue
		}
		out = append(out, *appt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (r *fakeRepo) FindCompletedByPatient(_ context.Context, patientID uint) ([]models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Appointment
	for _, appt := range r.appts {
		if appt.PatientID == patientID && appt.Status == models.StatusCompleted {
			out = append(out, *appt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (r *fakeRepo) Insert(_ context.Context, appt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt.ID = r.nextID
	r.nextID++
	cp := *appt
	r.appts[appt.ID] = &cp
	return nil
}

func (r *fakeRepo) Update(_ context.Context, appt *models.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[appt.ID]; !ok {
		return ErrNotFound
	}
	cp := *appt
	r.appts[appt.ID] = &cp
	return nil
}

func (r *fakeRepo) InTransaction(_ context.Context, fn func(AppointmentRepository) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()
	return fn(r)
}

// fakeAvailability is an in-memory AvailabilityStore.
type fakeAvailability struct {
	mu        sync.Mutex
	calendars map[uint]Calendar
}

func newFakeAvailability() *fakeAvailability {
	return &fakeAvailability{calendars: make(map[uint]Calendar)}
}

func (s *fakeAvailability) Get(_ context.Context, doctorID uint, _, _ time.Time) (Calendar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cal, ok := s.calendars[doctorID]
	if !ok {
		return Calendar{}, nil
	}
	return cal, nil
}

func (s *fakeAvailability) Set(_ context.Context, doctorID uint, cal Calendar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	normalized, err := cal.Normalize()
	if err != nil {
		return err
	}
	s.calendars[doctorID] = normalized
	return nil
}

// ---------- Helpers ----------

var testNow = time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)

func newTestEngine(repo *fakeRepo, availability *fakeAvailability) *Engine {
	return NewEngine(repo, availability, time.UTC, zerolog.Nop()).
		WithClock(func() time.Time { return testNow })
}

func futureTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.ParseInLocation("2006-01-02T15:04", value, time.UTC)
	if err != nil {
		t.Fatalf("bad time literal %q: %v", value, err)
	}
	return parsed
}

// ---------- Book ----------

func TestBook_Succeeds(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	at := futureTime(t, "2024-06-01T10:00")

	appt, err := engine.Book(context.Background(), 1, 7, at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if appt.ID == 0 {
		t.Error("expected appointment to receive an id")
	}
	if appt.Status != models.StatusBooked {
		t.Errorf("expected status Booked, got %s", appt.Status)
	}
	if !appt.DateTime.Equal(at) {
		t.Errorf("expected time %v, got %v", at, appt.DateTime)
	}
	if appt.Diagnosis != "" || appt.Prescription != "" || appt.Notes != "" {
		t.Error("clinical fields must be unset on booking")
	}
}

func TestBook_RejectsPastAndPresent(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())

	for _, at := range []time.Time{testNow.Add(-time.Hour), testNow} {
		_, err := engine.Book(context.Background(), 1, 7, at)
		if !errors.Is(err, ErrInvalidTime) {
			t.Errorf("Book(%v): expected ErrInvalidTime, got %v", at, err)
		}
	}
}

func TestBook_SlotTaken(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	at := futureTime(t, "2024-06-01T10:00")

	if _, err := engine.Book(context.Background(), 1, 7, at); err != nil {
		t.Fatalf("first booking failed: %v", err)
	}
	if _, err := engine.Book(context.Background(), 2, 7, at); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	// An adjacent slot with the same doctor is free.
	appt, err := engine.Book(context.Background(), 2, 7, futureTime(t, "2024-06-01T11:00"))
	if err != nil {
		t.Fatalf("booking adjacent slot failed: %v", err)
	}
	if appt.Status != models.StatusBooked {
		t.Errorf("expected status Booked, got %s", appt.Status)
	}
}

func TestBook_CancelledSlotIsFree(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	at := futureTime(t, "2024-06-01T10:00")

	appt, err := engine.Book(context.Background(), 1, 7, at)
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := engine.Cancel(context.Background(), appt.ID, 1); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	// Only Booked appointments occupy a slot.
	if _, err := engine.Book(context.Background(), 2, 7, at); err != nil {
		t.Fatalf("rebooking cancelled slot failed: %v", err)
	}
}

func TestBook_OutsidePublishedAvailability(t *testing.T) {
	availability := newFakeAvailability()
	engine := newTestEngine(newFakeRepo(), availability)

	if err := availability.Set(context.Background(), 7, Calendar{"2024-06-01": {"09:00", "10:00"}}); err != nil {
		t.Fatalf("seeding availability failed: %v", err)
	}

	if _, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T14:00")); !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if _, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00")); err != nil {
		t.Fatalf("booking published slot failed: %v", err)
	}
	// Days without a published entry stay open.
	if _, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-02T14:00")); err != nil {
		t.Fatalf("booking unpublished day failed: %v", err)
	}
}

func TestBook_ConcurrentSameSlot(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	at := futureTime(t, "2024-06-01T10:00")

	const attempts = 8
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(patientID uint) {
			defer wg.Done()
			_, err := engine.Book(context.Background(), patientID, 7, at)
			results <- err
		}(uint(i + 1))
	}
	wg.Wait()
	close(results)

	var succeeded, conflicted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrSlotTaken):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("expected exactly 1 successful booking, got %d", succeeded)
	}
	if conflicted != attempts-1 {
		t.Errorf("expected %d conflicts, got %d", attempts-1, conflicted)
	}
}

// ---------- Reschedule ----------

func TestReschedule_MovesTimeOnly(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	appt, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	newTime := futureTime(t, "2024-06-01T12:00")
	moved, err := engine.Reschedule(context.Background(), appt.ID, 1, newTime)
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if !moved.DateTime.Equal(newTime) {
		t.Errorf("expected time %v, got %v", newTime, moved.DateTime)
	}
	if moved.Status != models.StatusBooked {
		t.Errorf("status must stay Booked, got %s", moved.Status)
	}
	if moved.ID != appt.ID {
		t.Errorf("reschedule must mutate in place, got new id %d", moved.ID)
	}
}

func TestReschedule_ToOwnTimeSucceeds(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	at := futureTime(t, "2024-06-01T10:00")
	appt, err := engine.Book(context.Background(), 1, 7, at)
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// Excluding its own id, the appointment never conflicts with itself.
	if _, err := engine.Reschedule(context.Background(), appt.ID, 1, at); err != nil {
		t.Fatalf("reschedule to own time failed: %v", err)
	}
}

func TestReschedule_ConflictAndRetry(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	first, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := engine.Book(context.Background(), 2, 7, futureTime(t, "2024-06-01T11:00")); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// 11:00 is occupied by the other patient.
	if _, err := engine.Reschedule(context.Background(), first.ID, 1, futureTime(t, "2024-06-01T11:00")); !errors.Is(err, ErrSlotTaken) {
		t.Fatalf("expected ErrSlotTaken, got %v", err)
	}

	moved, err := engine.Reschedule(context.Background(), first.ID, 1, futureTime(t, "2024-06-01T12:00"))
	if err != nil {
		t.Fatalf("reschedule to free slot failed: %v", err)
	}
	if !moved.DateTime.Equal(futureTime(t, "2024-06-01T12:00")) {
		t.Errorf("unexpected time %v", moved.DateTime)
	}
	if moved.Status != models.StatusBooked {
		t.Errorf("status must stay Booked, got %s", moved.Status)
	}
}

func TestReschedule_Failures(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	appt, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// Unknown id and foreign patient both read as not found.
	if _, err := engine.Reschedule(context.Background(), 999, 1, futureTime(t, "2024-06-01T12:00")); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
	if _, err := engine.Reschedule(context.Background(), appt.ID, 2, futureTime(t, "2024-06-01T12:00")); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign patient: expected ErrNotFound, got %v", err)
	}

	if _, err := engine.Reschedule(context.Background(), appt.ID, 1, testNow.Add(-time.Minute)); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("past time: expected ErrInvalidTime, got %v", err)
	}

	if _, err := engine.Cancel(context.Background(), appt.ID, 1); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := engine.Reschedule(context.Background(), appt.ID, 1, futureTime(t, "2024-06-01T12:00")); !errors.Is(err, ErrInvalidState) {
		t.Errorf("cancelled appointment: expected ErrInvalidState, got %v", err)
	}
}

// ---------- Cancel ----------

func TestCancel_TransitionsAndGuards(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	appt, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	cancelled, err := engine.Cancel(context.Background(), appt.ID, 1)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Errorf("expected Cancelled, got %s", cancelled.Status)
	}

	// Second cancel fails: terminal states admit no transitions.
	if _, err := engine.Cancel(context.Background(), appt.ID, 1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second cancel: expected ErrInvalidState, got %v", err)
	}

	if _, err := engine.Cancel(context.Background(), 999, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown id: expected ErrNotFound, got %v", err)
	}
}

func TestCancel_CompletedAppointmentRejected(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	appt, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	status := models.StatusCompleted
	if _, err := engine.CompleteWithRecord(context.Background(), appt.ID, 7, CompletionUpdate{Status: &status}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if _, err := engine.Cancel(context.Background(), appt.ID, 1); !errors.Is(err, ErrInvalidState) {
		t.Errorf("expected ErrInvalidState, got %v", err)
	}
}

// ---------- CompleteWithRecord ----------

func TestCompleteWithRecord_PartialUpdate(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	appt, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	diagnosis := "Flu"
	status := models.StatusCompleted
	updated, err := engine.CompleteWithRecord(context.Background(), appt.ID, 7, CompletionUpdate{
		Diagnosis: &diagnosis,
		Status:    &status,
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if updated.Status != models.StatusCompleted {
		t.Errorf("expected Completed, got %s", updated.Status)
	}
	if updated.Diagnosis != "Flu" {
		t.Errorf("expected diagnosis Flu, got %q", updated.Diagnosis)
	}
	if updated.Prescription != "" || updated.Notes != "" {
		t.Error("unsupplied fields must remain unset")
	}
}

func TestCompleteWithRecord_Guards(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())
	appt, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	// Appointment belongs to doctor 7, not doctor 8.
	diagnosis := "Flu"
	if _, err := engine.CompleteWithRecord(context.Background(), appt.ID, 8, CompletionUpdate{Diagnosis: &diagnosis}); !errors.Is(err, ErrNotFound) {
		t.Errorf("foreign doctor: expected ErrNotFound, got %v", err)
	}

	// Booked is not a valid target status.
	booked := models.StatusBooked
	if _, err := engine.CompleteWithRecord(context.Background(), appt.ID, 7, CompletionUpdate{Status: &booked}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("target Booked: expected ErrInvalidState, got %v", err)
	}

	completed := models.StatusCompleted
	if _, err := engine.CompleteWithRecord(context.Background(), appt.ID, 7, CompletionUpdate{Status: &completed}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	// No changes once terminal.
	notes := "follow-up"
	if _, err := engine.CompleteWithRecord(context.Background(), appt.ID, 7, CompletionUpdate{Notes: &notes}); !errors.Is(err, ErrInvalidState) {
		t.Errorf("terminal appointment: expected ErrInvalidState, got %v", err)
	}
}

// ---------- Read queries ----------

func TestTreatmentHistory_OnlyCompleted(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())

	first, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-02T10:00")); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	diagnosis := "Flu"
	status := models.StatusCompleted
	if _, err := engine.CompleteWithRecord(context.Background(), first.ID, 7, CompletionUpdate{Diagnosis: &diagnosis, Status: &status}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	history, err := engine.TreatmentHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 completed appointment, got %d", len(history))
	}
	if history[0].Diagnosis != "Flu" {
		t.Errorf("expected diagnosis Flu, got %q", history[0].Diagnosis)
	}
}

func TestUpcomingForDoctor_WindowAndStatus(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())

	inWindow, err := engine.Book(context.Background(), 1, 7, testNow.AddDate(0, 0, 2))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := engine.Book(context.Background(), 2, 7, testNow.AddDate(0, 0, 10)); err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	cancelled, err := engine.Book(context.Background(), 3, 7, testNow.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := engine.Cancel(context.Background(), cancelled.ID, 3); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	upcoming, err := engine.UpcomingForDoctor(context.Background(), 7, 7)
	if err != nil {
		t.Fatalf("upcoming failed: %v", err)
	}
	if len(upcoming) != 1 {
		t.Fatalf("expected 1 upcoming appointment, got %d", len(upcoming))
	}
	if upcoming[0].ID != inWindow.ID {
		t.Errorf("expected appointment %d, got %d", inWindow.ID, upcoming[0].ID)
	}
}

func TestHistoryForDoctorPatient_FiltersByPatientAndStatus(t *testing.T) {
	engine := newTestEngine(newFakeRepo(), newFakeAvailability())

	mine, err := engine.Book(context.Background(), 1, 7, futureTime(t, "2024-06-01T10:00"))
	if err != nil {
		t.Fatalf("booking failed: %v", err)
	}
	if _, err := engine.Book(context.Background(), 2, 7, futureTime(t, "2024-06-01T11:00")); err != nil {
		t.Fatalf("booking failed: %v", err)
	}

	status := models.StatusCompleted
	diagnosis := "Sprain"
	if _, err := engine.CompleteWithRecord(context.Background(), mine.ID, 7, CompletionUpdate{Status: &status, Diagnosis: &diagnosis}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	history, err := engine.HistoryForDoctorPatient(context.Background(), 7, 1)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(history))
	}
	if history[0].PatientID != 1 || history[0].Status != models.StatusCompleted {
		t.Errorf("unexpected entry: %+v", history[0])
	}
}
