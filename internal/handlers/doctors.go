package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"hospital-booking-server/internal/middleware"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/scheduling"
	"hospital-booking-server/internal/utils"
)

// DoctorHandler handles the doctor-facing schedule and records surface.
type DoctorHandler struct {
	DB     *gorm.DB
	Engine *scheduling.Engine
	Log    zerolog.Logger
}

// NewDoctorHandler creates a new DoctorHandler.
func NewDoctorHandler(db *gorm.DB, engine *scheduling.Engine, log zerolog.Logger) *DoctorHandler {
	return &DoctorHandler{DB: db, Engine: engine, Log: log}
}

// doctorProfile resolves the acting doctor from the authenticated user.
func (h *DoctorHandler) doctorProfile(c *gin.Context) (*models.Doctor, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return nil, false
	}
	var doctor models.Doctor
	if err := h.DB.Preload("User").First(&doctor, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor profile not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &doctor, true
}

// GetAppointments lists every appointment assigned to the doctor.
func (h *DoctorHandler) GetAppointments(c *gin.Context) {
	doctor, ok := h.doctorProfile(c)
	if !ok {
		return
	}

	appts, err := h.Engine.ListForDoctor(c.Request.Context(), doctor.ID)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}
	utils.Success(c, "Appointments fetched successfully", appts)
}

// GetUpcomingAppointments lists the doctor's booked appointments for the
// next seven days, ordered by time.
func (h *DoctorHandler) GetUpcomingAppointments(c *gin.Context) {
	doctor, ok := h.doctorProfile(c)
	if !ok {
		return
	}

	appts, err := h.Engine.UpcomingForDoctor(c.Request.Context(), doctor.ID, 7)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch upcoming appointments: "+err.Error())
		return
	}
	utils.Success(c, "Upcoming appointments fetched successfully", appts)
}

// UpdateAppointmentRequest represents the doctor's partial update of an
// appointment record. Absent fields are left untouched.
type UpdateAppointmentRequest struct {
	Status       *models.AppointmentStatus `json:"status"`
	Diagnosis    *string                   `json:"diagnosis"`
	Prescription *string                   `json:"prescription"`
	Notes        *string                   `json:"notes"`
}

// UpdateAppointment concludes an appointment: attaches diagnosis,
// prescription and notes, and optionally moves it to Completed or Cancelled.
func (h *DoctorHandler) UpdateAppointment(c *gin.Context) {
	appointmentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	if req.Status != nil && !req.Status.IsValid() {
		utils.BadRequest(c, "Unknown appointment status")
		return
	}

	doctor, ok := h.doctorProfile(c)
	if !ok {
		return
	}

	appt, err := h.Engine.CompleteWithRecord(c.Request.Context(), appointmentID, doctor.ID, scheduling.CompletionUpdate{
		Diagnosis:    req.Diagnosis,
		Prescription: req.Prescription,
		Notes:        req.Notes,
		Status:       req.Status,
	})
	if err != nil {
		utils.SchedulingError(c, err)
		return
	}
	utils.Success(c, "Appointment updated", appt)
}

// PatientSummary is one row of the doctor's patient roster.
type PatientSummary struct {
	ID                uint   `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	TotalAppointments int64  `json:"totalAppointments"`
}

// GetPatients returns the unique patients who have appointments with the
// doctor, with visit counts.
func (h *DoctorHandler) GetPatients(c *gin.Context) {
	doctor, ok := h.doctorProfile(c)
	if !ok {
		return
	}

	var patientIDs []uint
	if err := h.DB.Model(&models.Appointment{}).
		Where("doctor_id = ?", doctor.ID).
		Distinct().
		Pluck("patient_id", &patientIDs).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch patients: "+err.Error())
		return
	}

	summaries := make([]PatientSummary, 0, len(patientIDs))
	for _, pid := range patientIDs {
		var patient models.Patient
		if err := h.DB.Preload("User").First(&patient, "id = ?", pid).Error; err != nil {
			continue
		}
		var count int64
		if err := h.DB.Model(&models.Appointment{}).
			Where("doctor_id = ? AND patient_id = ?", doctor.ID, pid).
			Count(&count).Error; err != nil {
			utils.InternalServerError(c, "Failed to count appointments: "+err.Error())
			return
		}
		summaries = append(summaries, PatientSummary{
			ID:                patient.ID,
			Username:          patient.User.Username,
			Email:             patient.User.Email,
			TotalAppointments: count,
		})
	}
	utils.Success(c, "Patients fetched successfully", summaries)
}

// GetPatientHistory returns the completed consultations this doctor held
// with one patient.
func (h *DoctorHandler) GetPatientHistory(c *gin.Context) {
	patientID, ok := parseIDParam(c, "patientId")
	if !ok {
		return
	}

	doctor, ok := h.doctorProfile(c)
	if !ok {
		return
	}

	history, err := h.Engine.HistoryForDoctorPatient(c.Request.Context(), doctor.ID, patientID)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch patient history: "+err.Error())
		return
	}
	utils.Success(c, "Patient history fetched successfully", history)
}

// GetAvailability returns the doctor's own published calendar.
func (h *DoctorHandler) GetAvailability(c *gin.Context) {
	doctor, ok := h.doctorProfile(c)
	if !ok {
		return
	}

	cal, err := h.Engine.Availability().Get(c.Request.Context(), doctor.ID, time.Time{}, time.Time{})
	if err != nil {
		utils.SchedulingError(c, err)
		return
	}
	utils.Success(c, "Availability fetched successfully", cal)
}

// SetAvailability replaces the doctor's whole calendar. Last write wins.
func (h *DoctorHandler) SetAvailability(c *gin.Context) {
	var cal scheduling.Calendar
	if err := c.ShouldBindJSON(&cal); err != nil {
		utils.BadRequest(c, "Invalid availability payload: "+err.Error())
		return
	}

	doctor, ok := h.doctorProfile(c)
	if !ok {
		return
	}

	if err := h.Engine.Availability().Set(c.Request.Context(), doctor.ID, cal); err != nil {
		if errors.Is(err, scheduling.ErrDoctorNotFound) {
			utils.NotFound(c, "Doctor not found")
			return
		}
		utils.BadRequest(c, "Invalid availability: "+err.Error())
		return
	}

	h.Log.Info().Uint("doctor_id", doctor.ID).Msg("availability replaced")
	utils.Success(c, "Availability updated", nil)
}
