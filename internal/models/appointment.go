package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusRequested          AppointmentStatus = "REQUESTED"
	StatusRequestedByPatient AppointmentStatus = "REQUESTED_BY_PATIENT"
	StatusProposedByDoctor   AppointmentStatus = "PROPOSED_BY_DOCTOR"
	StatusConfirmedByPatient AppointmentStatus = "CONFIRMED_BY_PATIENT"
	StatusWaitingForTriage   AppointmentStatus = "WAITING_FOR_TRIAGE"
	StatusPending            AppointmentStatus = "PENDING"
	StatusConfirmed          AppointmentStatus = "CONFIRMED"
	StatusInProgress         AppointmentStatus = "IN_PROGRESS"
	StatusCompleted          AppointmentStatus = "COMPLETED"
	StatusCancelled          AppointmentStatus = "CANCELLED"
)

// IsValid reports whether s is one of the known statuses.
func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusRequested, StatusRequestedByPatient, StatusProposedByDoctor, StatusConfirmedByPatient,
		StatusWaitingForTriage, StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition may leave s.
func (s AppointmentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AppointmentType represents how the encounter takes place
type AppointmentType string

const (
	TypeVirtual      AppointmentType = "VIRTUAL"
	TypePhysical     AppointmentType = "PHYSICAL"
	TypeTelemedicine AppointmentType = "TELEMEDICINE"
	TypeRoutine      AppointmentType = "ROUTINE"
	TypeEmergency    AppointmentType = "EMERGENCY"
)

func (t AppointmentType) IsValid() bool {
	switch t {
	case TypeVirtual, TypePhysical, TypeTelemedicine, TypeRoutine, TypeEmergency:
		return true
	}
	return false
}

// SupportsVideo reports whether a teleconsultation session can be attached.
func (t AppointmentType) SupportsVideo() bool {
	return t == TypeVirtual || t == TypeTelemedicine || t == TypeEmergency
}

// Appointment represents a negotiable unit of scheduled care between a patient and a doctor
type Appointment struct {
	ID                 string            `json:"id"`
	PatientID          string            `json:"patientId"`
	DoctorID           string            `json:"doctorId"`
	CenterID           string            `json:"centerId"`
	Status             AppointmentStatus `json:"status"`
	Type               AppointmentType   `json:"type"`
	Date               *time.Time        `json:"date"`
	ProposedDate       *time.Time        `json:"proposedDate"`
	Reason             string            `json:"reason"`
	PatientNotes       string            `json:"patientNotes,omitempty"`
	DoctorNotes        string            `json:"doctorNotes,omitempty"`
	TeleconsultationID string            `json:"teleconsultationId,omitempty"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

// Clone returns a deep copy so callers never share the date pointers.
func (a Appointment) Clone() Appointment {
	out := a
	if a.Date != nil {
		d := *a.Date
		out.Date = &d
	}
	if a.ProposedDate != nil {
		p := *a.ProposedDate
		out.ProposedDate = &p
	}
	return out
}

// IsEmergency reports whether the appointment came through triage.
func (a Appointment) IsEmergency() bool {
	return a.Type == TypeEmergency
}
