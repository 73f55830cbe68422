package models

import (
	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// User represents a login account. Doctors and patients each carry a
// one-to-one profile row holding their role-specific attributes.
type User struct {
	BaseModel
	Username string `gorm:"uniqueIndex;size:80;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;size:120;not null" json:"email"`
	Password string `gorm:"size:200;not null" json:"-"` // Never send password in JSON
	Role     Role   `gorm:"size:20;not null" json:"role"`

	// Relations (not always preloaded)
	DoctorProfile  *Doctor  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	PatientProfile *Patient `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
