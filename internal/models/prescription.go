package models

import (
	"time"
)

// PrescriptionStatus represents the dispensing state of a prescription
type PrescriptionStatus string

const (
	PrescriptionPending   PrescriptionStatus = "PENDING"
	PrescriptionDispensed PrescriptionStatus = "DISPENSED"
	PrescriptionExpired   PrescriptionStatus = "EXPIRED"
)

// Medication is one line of a prescription.
type Medication struct {
	Name      string `json:"name" validate:"required"`
	Dosage    string `json:"dosage" validate:"required"`
	Frequency string `json:"frequency" validate:"required"`
	Duration  string `json:"duration" validate:"required"`
}

// Prescription represents medications ordered by a doctor and redeemed at a pharmacy
type Prescription struct {
	BaseModel
	PatientID       string             `json:"patientId"`
	DoctorID        string             `json:"doctorId"`
	MedicalRecordID string             `json:"medicalRecordId"`
	Medications     []Medication       `json:"medications"`
	ValidationCode  string             `json:"validationCode"`
	Status          PrescriptionStatus `json:"status"`
	DispensedAt     *time.Time         `json:"dispensedAt,omitempty"`
}
