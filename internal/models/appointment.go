package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusBooked    AppointmentStatus = "Booked"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// IsValid reports whether the status is one of the known values.
func (s AppointmentStatus) IsValid() bool {
	return s == StatusBooked || s == StatusCompleted || s == StatusCancelled
}

// Appointment represents a scheduled consultation between a patient and a
// doctor at a single point in time. Diagnosis, prescription and notes carry
// meaning only once the appointment is Completed.
type Appointment struct {
	BaseModel
	PatientID    uint              `gorm:"index;not null" json:"patientId"`
	DoctorID     uint              `gorm:"index:idx_doctor_time;not null" json:"doctorId"`
	DateTime     time.Time         `gorm:"index:idx_doctor_time;not null" json:"dateTime"`
	Status       AppointmentStatus `gorm:"size:20;default:'Booked'" json:"status"`
	Diagnosis    string            `gorm:"type:text" json:"diagnosis,omitempty"`
	Prescription string            `gorm:"type:text" json:"prescription,omitempty"`
	Notes        string            `gorm:"type:text" json:"notes,omitempty"`

	// Relations
	Patient Patient `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  Doctor  `gorm:"foreignKey:DoctorID" json:"-"`
}
