package models

import (
	"time"
)

// SessionStatus represents the state of a video consultation session
type SessionStatus string

const (
	SessionWaiting    SessionStatus = "WAITING"
	SessionConnecting SessionStatus = "CONNECTING"
	SessionActive     SessionStatus = "ACTIVE"
	SessionCompleted  SessionStatus = "COMPLETED"
)

// TeleconsultationSession is the handle of a simulated video room linked to an appointment
type TeleconsultationSession struct {
	ID              string        `json:"id"`
	AppointmentID   string        `json:"appointmentId"`
	DoctorID        string        `json:"doctorId"`
	PatientID       string        `json:"patientId"`
	StartTime       time.Time     `json:"startTime"`
	EndTime         *time.Time    `json:"endTime,omitempty"`
	Status          SessionStatus `json:"status"`
	DurationSeconds int64         `json:"durationSeconds"`
}
