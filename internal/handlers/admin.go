package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/utils"
)

// AdminHandler handles roster management and platform statistics.
type AdminHandler struct {
	DB  *gorm.DB
	Loc *time.Location
	Log zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(db *gorm.DB, loc *time.Location, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{DB: db, Loc: loc, Log: log}
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalDoctors          int64 `json:"totalDoctors"`
	TotalPatients         int64 `json:"totalPatients"`
	TotalAppointments     int64 `json:"totalAppointments"`
	TodayAppointments     int64 `json:"todayAppointments"`
	CompletedAppointments int64 `json:"completedAppointments"`
}

// GetStats returns platform-wide counts.
func (h *AdminHandler) GetStats(c *gin.Context) {
	var stats Stats
	counts := []struct {
		dest  *int64
		query *gorm.DB
	}{
		{&stats.TotalDoctors, h.DB.Model(&models.Doctor{})},
		{&stats.TotalPatients, h.DB.Model(&models.Patient{})},
		{&stats.TotalAppointments, h.DB.Model(&models.Appointment{})},
		{&stats.CompletedAppointments, h.DB.Model(&models.Appointment{}).Where("status = ?", models.StatusCompleted)},
	}
	for _, cnt := range counts {
		if err := cnt.query.Count(cnt.dest).Error; err != nil {
			utils.InternalServerError(c, "Failed to compute stats: "+err.Error())
			return
		}
	}

	now := time.Now().In(h.Loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.Loc)
	if err := h.DB.Model(&models.Appointment{}).
		Where("date_time >= ? AND date_time < ?", dayStart, dayStart.AddDate(0, 0, 1)).
		Count(&stats.TodayAppointments).Error; err != nil {
		utils.InternalServerError(c, "Failed to compute stats: "+err.Error())
		return
	}

	utils.Success(c, "Stats fetched successfully", stats)
}

// DoctorDetail is the admin view of one doctor.
type DoctorDetail struct {
	ID             uint   `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Specialization string `json:"specialization"`
	IsApproved     bool   `json:"isApproved"`
}

func toDoctorDetails(doctors []models.Doctor) []DoctorDetail {
	details := make([]DoctorDetail, len(doctors))
	for i, d := range doctors {
		details[i] = DoctorDetail{
			ID:             d.ID,
			Username:       d.User.Username,
			Email:          d.User.Email,
			Specialization: d.Specialization,
			IsApproved:     d.IsApproved,
		}
	}
	return details
}

// GetDoctors lists every doctor on the roster.
func (h *AdminHandler) GetDoctors(c *gin.Context) {
	var doctors []models.Doctor
	if err := h.DB.Preload("User").Find(&doctors).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}
	utils.Success(c, "Doctors fetched successfully", toDoctorDetails(doctors))
}

// CreateDoctorRequest represents the request body for adding a doctor.
type CreateDoctorRequest struct {
	Username       string `json:"username" binding:"required,min=3,max=80"`
	Email          string `json:"email" binding:"required,email"`
	Password       string `json:"password" binding:"required,min=8"`
	Specialization string `json:"specialization" binding:"required"`
}

// CreateDoctor adds a doctor account and profile.
func (h *AdminHandler) CreateDoctor(c *gin.Context) {
	var req CreateDoctorRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	var existing models.User
	if err := h.DB.Where("username = ? OR email = ?", req.Username, req.Email).First(&existing).Error; err == nil {
		utils.BadRequest(c, "Username or email already exists")
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}

	user := models.User{
		Username: req.Username,
		Email:    req.Email,
		Role:     models.RoleDoctor,
	}
	if err := user.SetPassword(req.Password); err != nil {
		utils.InternalServerError(c, "Failed to hash password: "+err.Error())
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		doctor := models.Doctor{
			UserID:         user.ID,
			Specialization: req.Specialization,
			IsApproved:     true,
		}
		return tx.Create(&doctor).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to create doctor: "+err.Error())
		return
	}

	h.Log.Info().Str("username", req.Username).Msg("doctor added to roster")
	utils.Created(c, "Doctor added", user.Sanitize())
}

// UpdateDoctorRequest represents the request body for updating a doctor.
type UpdateDoctorRequest struct {
	Username       string `json:"username"`
	Email          string `json:"email"`
	Specialization string `json:"specialization"`
}

// UpdateDoctor applies a partial update to a doctor and their account.
func (h *AdminHandler) UpdateDoctor(c *gin.Context) {
	doctorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdateDoctorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	var doctor models.Doctor
	if err := h.DB.Preload("User").First(&doctor, "id = ?", doctorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if req.Username != "" {
			doctor.User.Username = req.Username
		}
		if req.Email != "" {
			doctor.User.Email = req.Email
		}
		if err := tx.Save(&doctor.User).Error; err != nil {
			return err
		}
		if req.Specialization != "" {
			doctor.Specialization = req.Specialization
		}
		return tx.Save(&doctor).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to update doctor: "+err.Error())
		return
	}
	utils.Success(c, "Doctor updated successfully", nil)
}

// DeleteDoctor removes a doctor, their account and, by cascade, their
// appointments. Administrative collaborator path, outside the scheduling core.
func (h *AdminHandler) DeleteDoctor(c *gin.Context) {
	doctorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var doctor models.Doctor
	if err := h.DB.First(&doctor, "id = ?", doctorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("doctor_id = ?", doctor.ID).Delete(&models.Appointment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Doctor{}, doctor.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, doctor.UserID).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to delete doctor: "+err.Error())
		return
	}

	h.Log.Info().Uint("doctor_id", doctorID).Msg("doctor deleted")
	utils.Success(c, "Doctor deleted", nil)
}

// PatientDetail is the admin view of one patient.
type PatientDetail struct {
	ID       uint   `json:"id"`
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Address  string `json:"address"`
}

func toPatientDetails(patients []models.Patient) []PatientDetail {
	details := make([]PatientDetail, len(patients))
	for i, p := range patients {
		details[i] = PatientDetail{
			ID:       p.ID,
			UserID:   p.UserID,
			Username: p.User.Username,
			Email:    p.User.Email,
			Address:  p.Address,
		}
	}
	return details
}

// GetPatients lists every registered patient.
func (h *AdminHandler) GetPatients(c *gin.Context) {
	var patients []models.Patient
	if err := h.DB.Preload("User").Find(&patients).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch patients: "+err.Error())
		return
	}
	utils.Success(c, "Patients fetched successfully", toPatientDetails(patients))
}

// DeletePatient removes a patient unless they still hold booked
// appointments; those must be cancelled first.
func (h *AdminHandler) DeletePatient(c *gin.Context) {
	patientID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var patient models.Patient
	if err := h.DB.First(&patient, "id = ?", patientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.InternalServerError(c, "Database error: "+err.Error())
		}
		return
	}

	var activeCount int64
	if err := h.DB.Model(&models.Appointment{}).
		Where("patient_id = ? AND status = ?", patient.ID, models.StatusBooked).
		Count(&activeCount).Error; err != nil {
		utils.InternalServerError(c, "Database error: "+err.Error())
		return
	}
	if activeCount > 0 {
		utils.BadRequest(c, "Cannot delete patient with active appointments. Please cancel them first.")
		return
	}

	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("patient_id = ?", patient.ID).Delete(&models.Appointment{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Patient{}, patient.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, patient.UserID).Error
	})
	if err != nil {
		utils.InternalServerError(c, "Failed to delete patient: "+err.Error())
		return
	}

	h.Log.Info().Uint("patient_id", patientID).Msg("patient deleted")
	utils.Success(c, "Patient deleted successfully", nil)
}

// GetAppointments lists every appointment on the platform.
func (h *AdminHandler) GetAppointments(c *gin.Context) {
	var appts []models.Appointment
	err := h.DB.
		Preload("Doctor").Preload("Doctor.User").
		Preload("Patient").Preload("Patient.User").
		Order("date_time desc").
		Find(&appts).Error
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch appointments: "+err.Error())
		return
	}

	type row struct {
		ID          uint                     `json:"id"`
		DoctorName  string                   `json:"doctorName"`
		PatientName string                   `json:"patientName"`
		DateTime    time.Time                `json:"dateTime"`
		Status      models.AppointmentStatus `json:"status"`
	}
	rows := make([]row, len(appts))
	for i, a := range appts {
		rows[i] = row{
			ID:          a.ID,
			DoctorName:  a.Doctor.User.Username,
			PatientName: a.Patient.User.Username,
			DateTime:    a.DateTime,
			Status:      a.Status,
		}
	}
	utils.Success(c, "Appointments fetched successfully", rows)
}

// SearchDoctors filters the full roster by name or specialization.
func (h *AdminHandler) SearchDoctors(c *gin.Context) {
	name := c.Query("q")
	specialization := c.Query("specialization")

	query := h.DB.Preload("User").
		Joins("JOIN users ON users.id = doctors.user_id")
	if name != "" || specialization != "" {
		query = query.Where("users.username LIKE ? OR doctors.specialization LIKE ?",
			"%"+name+"%", "%"+specialization+"%")
	}

	var doctors []models.Doctor
	if err := query.Find(&doctors).Error; err != nil {
		utils.InternalServerError(c, "Failed to search doctors: "+err.Error())
		return
	}
	utils.Success(c, "Doctors fetched successfully", toDoctorDetails(doctors))
}

// SearchPatients filters patients by username or email.
func (h *AdminHandler) SearchPatients(c *gin.Context) {
	term := c.Query("q")

	query := h.DB.Preload("User").
		Joins("JOIN users ON users.id = patients.user_id")
	if term != "" {
		query = query.Where("users.username LIKE ? OR users.email LIKE ?",
			"%"+term+"%", "%"+term+"%")
	}

	var patients []models.Patient
	if err := query.Find(&patients).Error; err != nil {
		utils.InternalServerError(c, "Failed to search patients: "+err.Error())
		return
	}
	utils.Success(c, "Patients fetched successfully", toPatientDetails(patients))
}
