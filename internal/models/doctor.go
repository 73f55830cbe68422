package models

// Doctor represents a clinician profile linked to a user account.
// Availability holds the doctor's published open slots as a JSON document
// mapping calendar dates ("2006-01-02") to time-of-day slots ("09:00").
// It is mutated only through the availability store, full replace each write.
type Doctor struct {
	BaseModel
	UserID         uint   `gorm:"index;not null" json:"userId"`
	Specialization string `gorm:"size:100;not null" json:"specialization"`
	Availability   string `gorm:"type:text" json:"-"`
	IsApproved     bool   `gorm:"default:true" json:"isApproved"`

	// Relations
	User         User          `gorm:"foreignKey:UserID" json:"-"`
	Appointments []Appointment `gorm:"foreignKey:DoctorID" json:"-"`
}
