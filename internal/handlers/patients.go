package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"hospital-booking-server/internal/middleware"
	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/scheduling"
	"hospital-booking-server/internal/tasks"
	"hospital-booking-server/internal/utils"
)

// PatientHandler handles the patient-facing booking surface.
type PatientHandler struct {
	DB     *gorm.DB
	Engine *scheduling.Engine
	Queue  *asynq.Client
	Log    zerolog.Logger
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(db *gorm.DB, engine *scheduling.Engine, queue *asynq.Client, log zerolog.Logger) *PatientHandler {
	return &PatientHandler{DB: db, Engine: engine, Queue: queue, Log: log}
}

// patientProfile resolves the acting patient from the authenticated user.
func (h *PatientHandler) patientProfile(c *gin.Context) (*models.Patient, bool) {
	userID, exists := middleware.GetUserIDFromContext(c)
	if !exists {
		utils.Unauthorized(c, "User not authenticated")
		return nil, false
	}
	var patient models.Patient
	if err := h.DB.Preload("User").First(&patient, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient profile not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return nil, false
	}
	return &patient, true
}

// BookAppointmentRequest represents the request body for booking.
type BookAppointmentRequest struct {
	DoctorID uint      `json:"doctorId" binding:"required"`
	DateTime time.Time `json:"dateTime" binding:"required"`
}

// BookAppointment books a new appointment for the authenticated patient.
func (h *PatientHandler) BookAppointment(c *gin.Context) {
	var req BookAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patient, ok := h.patientProfile(c)
	if !ok {
		return
	}

	// Verify the doctor exists and takes bookings.
	var doctor models.Doctor
	if err := h.DB.First(&doctor, "id = ? AND is_approved = ?", req.DoctorID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	appt, err := h.Engine.Book(c.Request.Context(), patient.ID, req.DoctorID, req.DateTime)
	if err != nil {
		utils.SchedulingError(c, err)
		return
	}

	utils.Created(c, "Appointment booked successfully", appt)
}

// GetAppointments lists every appointment of the authenticated patient.
func (h *PatientHandler) GetAppointments(c *gin.Context) {
	patient, ok := h.patientProfile(c)
	if !ok {
		return
	}

	appts, err := h.Engine.ListForPatient(c.Request.Context(), patient.ID)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}
	utils.Success(c, "Appointments fetched successfully", appts)
}

// RescheduleAppointmentRequest represents the request body for rescheduling.
type RescheduleAppointmentRequest struct {
	DateTime time.Time `json:"dateTime" binding:"required"`
}

// RescheduleAppointment moves a booked appointment to a new time.
func (h *PatientHandler) RescheduleAppointment(c *gin.Context) {
	appointmentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	patient, ok := h.patientProfile(c)
	if !ok {
		return
	}

	appt, err := h.Engine.Reschedule(c.Request.Context(), appointmentID, patient.ID, req.DateTime)
	if err != nil {
		utils.SchedulingError(c, err)
		return
	}
	utils.Success(c, "Appointment rescheduled successfully", appt)
}

// CancelAppointment cancels a booked appointment.
func (h *PatientHandler) CancelAppointment(c *gin.Context) {
	appointmentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	patient, ok := h.patientProfile(c)
	if !ok {
		return
	}

	appt, err := h.Engine.Cancel(c.Request.Context(), appointmentID, patient.ID)
	if err != nil {
		utils.SchedulingError(c, err)
		return
	}
	utils.Success(c, "Appointment cancelled", appt)
}

// TreatmentHistoryEntry is one completed consultation in the patient's history.
type TreatmentHistoryEntry struct {
	ID             uint      `json:"id"`
	Doctor         string    `json:"doctor"`
	Specialization string    `json:"specialization"`
	Date           time.Time `json:"date"`
	Diagnosis      string    `json:"diagnosis"`
	Prescription   string    `json:"prescription"`
	Notes          string    `json:"notes"`
}

// GetTreatmentHistory returns the patient's completed appointments with
// their clinical records.
func (h *PatientHandler) GetTreatmentHistory(c *gin.Context) {
	patient, ok := h.patientProfile(c)
	if !ok {
		return
	}

	appts, err := h.Engine.TreatmentHistory(c.Request.Context(), patient.ID)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch treatment history: "+err.Error())
		return
	}

	history := make([]TreatmentHistoryEntry, len(appts))
	for i, a := range appts {
		history[i] = TreatmentHistoryEntry{
			ID:             a.ID,
			Doctor:         a.Doctor.User.Username,
			Specialization: a.Doctor.Specialization,
			Date:           a.DateTime,
			Diagnosis:      a.Diagnosis,
			Prescription:   a.Prescription,
			Notes:          a.Notes,
		}
	}
	utils.Success(c, "Treatment history fetched successfully", history)
}

// UpdateProfileRequest represents the request body for profile updates.
type UpdateProfileRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

// GetProfile returns the patient's profile.
func (h *PatientHandler) GetProfile(c *gin.Context) {
	patient, ok := h.patientProfile(c)
	if !ok {
		return
	}
	utils.Success(c, "Profile fetched successfully", gin.H{
		"username": patient.User.Username,
		"email":    patient.User.Email,
		"address":  patient.Address,
	})
}

// UpdateProfile applies a partial update to the patient's profile.
func (h *PatientHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	patient, ok := h.patientProfile(c)
	if !ok {
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if req.Username != "" {
			patient.User.Username = req.Username
		}
		if req.Email != "" {
			patient.User.Email = req.Email
		}
		if err := tx.Save(&patient.User).Error; err != nil {
			return err
		}
		if req.Address != "" {
			patient.Address = req.Address
		}
		return tx.Save(patient).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to update profile: "+err.Error())
		return
	}
	utils.Success(c, "Profile updated successfully", nil)
}

// ExportHistory queues a background CSV export of the patient's completed
// treatment history and returns the task id without waiting for it.
func (h *PatientHandler) ExportHistory(c *gin.Context) {
	patient, ok := h.patientProfile(c)
	if !ok {
		return
	}

	task, err := tasks.NewExportHistoryTask(patient.ID)
	if err != nil {
		utils.InternalServerError(c, "Failed to build export task: "+err.Error())
		return
	}
	info, err := h.Queue.Enqueue(task)
	if err != nil {
		utils.InternalServerError(c, "Failed to queue export: "+err.Error())
		return
	}

	h.Log.Info().Uint("patient_id", patient.ID).Str("task_id", info.ID).Msg("history export queued")
	utils.Accepted(c, "Export started", gin.H{"taskId": info.ID})
}

// parseIDParam parses an integer path parameter, replying 400 on failure.
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		utils.BadRequest(c, "Invalid "+name+" parameter")
		return 0, false
	}
	return uint(id), true
}
