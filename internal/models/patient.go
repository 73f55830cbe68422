package models

// Patient represents a patient profile linked to a user account.
type Patient struct {
	BaseModel
	UserID  uint   `gorm:"index;not null" json:"userId"`
	Address string `gorm:"type:text" json:"address,omitempty"`

	// Relations
	User         User          `gorm:"foreignKey:UserID" json:"-"`
	Appointments []Appointment `gorm:"foreignKey:PatientID" json:"-"`
}
