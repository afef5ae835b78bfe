package models

// MedicalRecord is a SOAP clinical note filed against an appointment
type MedicalRecord struct {
	BaseModel
	AppointmentID string `json:"appointmentId"`
	PatientID     string `json:"patientId"`
	DoctorID      string `json:"doctorId"`
	Subjective    string `json:"subjective"` // what the patient reports
	Objective     string `json:"objective"`  // what the doctor observes
	Assessment    string `json:"assessment"` // diagnosis
	Plan          string `json:"plan"`
}
