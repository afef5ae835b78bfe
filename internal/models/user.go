package models

import (
	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleCenterAdmin Role = "center_admin"
	RoleDoctor      Role = "doctor"
	RoleStaff       Role = "staff"
	RolePatient     Role = "patient"
	RoleLabTech     Role = "lab_tech"
	RolePharmacist  Role = "pharmacist"
)

// IsAdmin reports whether r administers a center or the whole hub.
func (r Role) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleCenterAdmin
}

// User represents a portal account
type User struct {
	BaseModel
	Email     string `json:"email"`
	Password  string `json:"passwordHash"`
	FullName  string `json:"fullName"`
	Role      Role   `json:"role"`
	CenterID  string `json:"centerId"`
	PatientID string `json:"patientId,omitempty"` // set for patient accounts
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"fullName"`
	Role      Role   `json:"role"`
	CenterID  string `json:"centerId"`
	PatientID string `json:"patientId,omitempty"`
	AvatarURL string `json:"avatarUrl,omitempty"`
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
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CenterID:  u.CenterID,
		PatientID: u.PatientID,
		AvatarURL: u.AvatarURL,
	}
}

// Patient is the clinical identity of a person receiving care.
type Patient struct {
	ID           string   `json:"id"`
	CenterID     string   `json:"centerId"`
	DocumentID   string   `json:"documentId"`
	FirstName    string   `json:"firstName"`
	LastName     string   `json:"lastName"`
	BirthDate    string   `json:"birthDate"`
	Gender       string   `json:"gender"`
	BloodType    string   `json:"bloodType,omitempty"`
	Allergies    []string `json:"allergies,omitempty"`
	SourceSystem string   `json:"sourceSystem"`
	ConsentGiven bool     `json:"consentGiven"`
	CreatedBy    string   `json:"createdBy,omitempty"`
}
