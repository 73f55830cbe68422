package scheduling

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hospital-booking-server/internal/models"
)

// AppointmentRepository is the storage surface the engine mutates through.
// The engine holds no database handle of its own, so tests can substitute an
// in-memory implementation.
type AppointmentRepository interface {
	// FindByID returns the appointment or ErrNotFound.
	FindByID(ctx context.Context, id uint) (*models.Appointment, error)
	// FindByIDForPatient returns the appointment only if it belongs to the
	// patient, otherwise ErrNotFound.
	FindByIDForPatient(ctx context.Context, id, patientID uint) (*models.Appointment, error)
	// FindByIDForDoctor returns the appointment only if it belongs to the
	// doctor, otherwise ErrNotFound.
	FindByIDForDoctor(ctx context.Context, id, doctorID uint) (*models.Appointment, error)
	// FindBookedByDoctorAndTime returns the Booked appointment occupying the
	// exact (doctor, time) slot, ignoring excludeID. Returns (nil, nil) when
	// the slot is free.
	FindBookedByDoctorAndTime(ctx context.Context, doctorID uint, at time.Time, excludeID uint) (*models.Appointment, error)
	// FindByPatient returns all appointments for a patient, newest first.
	FindByPatient(ctx context.Context, patientID uint) ([]models.Appointment, error)
	// FindByDoctor returns all appointments for a doctor, oldest first.
	FindByDoctor(ctx context.Context, doctorID uint) ([]models.Appointment, error)
	// FindByDoctorInRange returns a doctor's appointments with date_time in
	// [from, to), optionally filtered by status, ordered by time.
	FindByDoctorInRange(ctx context.Context, doctorID uint, from, to time.Time, status models.AppointmentStatus) ([]models.Appointment, error)
	// FindCompletedByPatient returns the patient's Completed appointments with
	// the doctor relation preloaded, ordered by time.
	FindCompletedByPatient(ctx context.Context, patientID uint) ([]models.Appointment, error)

	Insert(ctx context.Context, appt *models.Appointment) error
	Update(ctx context.Context, appt *models.Appointment) error

	// InTransaction runs fn against a repository bound to a single
	// transaction. The conflict read and the subsequent write of a booking
	// must share one transaction so the check-and-insert is atomic.
	InTransaction(ctx context.Context, fn func(AppointmentRepository) error) error
}

// GormAppointmentRepository implements AppointmentRepository on gorm.
type GormAppointmentRepository struct {
	db *gorm.DB
}

// NewGormAppointmentRepository creates a repository bound to db.
func NewGormAppointmentRepository(db *gorm.DB) *GormAppointmentRepository {
	return &GormAppointmentRepository{db: db}
}

func (r *GormAppointmentRepository) FindByID(ctx context.Context, id uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).First(&appt, "id = ?", id).Error
	return wrapNotFound(&appt, err)
}

func (r *GormAppointmentRepository) FindByIDForPatient(ctx context.Context, id, patientID uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).First(&appt, "id = ? AND patient_id = ?", id, patientID).Error
	return wrapNotFound(&appt, err)
}

func (r *GormAppointmentRepository) FindByIDForDoctor(ctx context.Context, id, doctorID uint) (*models.Appointment, error) {
	var appt models.Appointment
	err := r.db.WithContext(ctx).First(&appt, "id = ? AND doctor_id = ?", id, doctorID).Error
	return wrapNotFound(&appt, err)
}

func (r *GormAppointmentRepository) FindBookedByDoctorAndTime(ctx context.Context, doctorID uint, at time.Time, excludeID uint) (*models.Appointment, error) {
	var appt models.Appointment
	// Row-locked inside a transaction so two concurrent bookers cannot both
	// observe the slot as free.
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("doctor_id = ? AND date_time = ? AND status = ? AND id != ?",
			doctorID, at, models.StatusBooked, excludeID).
		First(&appt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &appt, nil
}

func (r *GormAppointmentRepository) FindByPatient(ctx context.Context, patientID uint) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Doctor").Preload("Doctor.User").
		Where("patient_id = ?", patientID).
		Order("date_time desc").
		Find(&appts).Error
	return appts, err
}

func (r *GormAppointmentRepository) FindByDoctor(ctx context.Context, doctorID uint) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Patient").Preload("Patient.User").
		Where("doctor_id = ?", doctorID).
		Order("date_time asc").
		Find(&appts).Error
	return appts, err
}

func (r *GormAppointmentRepository) FindByDoctorInRange(ctx context.Context, doctorID uint, from, to time.Time, status models.AppointmentStatus) ([]models.Appointment, error) {
	query := r.db.WithContext(ctx).
		Preload("Patient").Preload("Patient.User").
		Where("doctor_id = ? AND date_time >= ? AND date_time < ?", doctorID, from, to)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var appts []models.Appointment
	err := query.Order("date_time asc").Find(&appts).Error
	return appts, err
}

func (r *GormAppointmentRepository) FindCompletedByPatient(ctx context.Context, patientID uint) ([]models.Appointment, error) {
	var appts []models.Appointment
	err := r.db.WithContext(ctx).
		Preload("Doctor").Preload("Doctor.User").
		Where("patient_id = ? AND status = ?", patientID, models.StatusCompleted).
		Order("date_time asc").
		Find(&appts).Error
	return appts, err
}

func (r *GormAppointmentRepository) Insert(ctx context.Context, appt *models.Appointment) error {
	return r.db.WithContext(ctx).Create(appt).Error
}

func (r *GormAppointmentRepository) Update(ctx context.Context, appt *models.Appointment) error {
	return r.db.WithContext(ctx).Save(appt).Error
}

func (r *GormAppointmentRepository) InTransaction(ctx context.Context, fn func(AppointmentRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormAppointmentRepository{db: tx})
	})
}

func wrapNotFound(appt *models.Appointment, err error) (*models.Appointment, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return appt, nil
}
