package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"hospital-booking-server/internal/models"
	"hospital-booking-server/internal/scheduling"
	"hospital-booking-server/internal/utils"
)

// DirectoryHandler serves the public doctor directory used for booking.
type DirectoryHandler struct {
	DB           *gorm.DB
	Availability scheduling.AvailabilityStore
}

// NewDirectoryHandler creates a new DirectoryHandler.
func NewDirectoryHandler(db *gorm.DB, availability scheduling.AvailabilityStore) *DirectoryHandler {
	return &DirectoryHandler{DB: db, Availability: availability}
}

// DoctorListing is a public view of one doctor.
type DoctorListing struct {
	ID             uint   `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
}

func toListings(doctors []models.Doctor) []DoctorListing {
	listings := make([]DoctorListing, len(doctors))
	for i, d := range doctors {
		listings[i] = DoctorListing{
			ID:             d.ID,
			Name:           d.User.Username,
			Specialization: d.Specialization,
		}
	}
	return listings
}

// GetDoctors lists all approved doctors.
func (h *DirectoryHandler) GetDoctors(c *gin.Context) {
	var doctors []models.Doctor
	if err := h.DB.Preload("User").Where("is_approved = ?", true).Find(&doctors).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch doctors: "+err.Error())
		return
	}
	utils.Success(c, "Doctors fetched successfully", toListings(doctors))
}

// SearchDoctors filters approved doctors by name and/or specialization.
func (h *DirectoryHandler) SearchDoctors(c *gin.Context) {
	name := c.Query("q")
	specialization := c.Query("specialization")

	query := h.DB.Preload("User").
		Joins("JOIN users ON users.id = doctors.user_id").
		Where("doctors.is_approved = ?", true)
	if name != "" {
		query = query.Where("users.username LIKE ?", "%"+name+"%")
	}
	if specialization != "" {
		query = query.Where("doctors.specialization LIKE ?", "%"+specialization+"%")
	}

	var doctors []models.Doctor
	if err := query.Find(&doctors).Error; err != nil {
		utils.InternalServerError(c, "Failed to search doctors: "+err.Error())
		return
	}
	utils.Success(c, "Doctors fetched successfully", toListings(doctors))
}

// GetSpecializations lists the distinct specializations on the roster.
func (h *DirectoryHandler) GetSpecializations(c *gin.Context) {
	var specializations []string
	if err := h.DB.Model(&models.Doctor{}).
		Distinct().
		Where("specialization != ''").
		Pluck("specialization", &specializations).Error; err != nil {
		utils.InternalServerError(c, "Failed to fetch specializations: "+err.Error())
		return
	}
	utils.Success(c, "Specializations fetched successfully", specializations)
}

// GetDoctorAvailability returns one doctor's published open slots so a
// patient can pick a time. Advisory data; booking legality is decided by
// the scheduling engine.
func (h *DirectoryHandler) GetDoctorAvailability(c *gin.Context) {
	doctorID, ok := parseIDParam(c, "doctorId")
	if !ok {
		return
	}

	cal, err := h.Availability.Get(c.Request.Context(), doctorID, time.Time{}, time.Time{})
	if err != nil {
		utils.SchedulingError(c, err)
		return
	}
	utils.Success(c, "Availability fetched successfully", cal)
}
