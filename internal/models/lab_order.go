package models

// LabOrderStatus represents the processing state of a lab order
type LabOrderStatus string

const (
	LabOrderReceived   LabOrderStatus = "RECEIVED"
	LabOrderProcessing LabOrderStatus = "PROCESSING"
	LabOrderCompleted  LabOrderStatus = "COMPLETED"
	LabOrderCancelled  LabOrderStatus = "CANCELLED"
)

// LabOrder represents tests requested by a doctor for the lab
type LabOrder struct {
	BaseModel
	PatientID     string         `json:"patientId"`
	DoctorID      string         `json:"doctorId"`
	CenterID      string         `json:"centerId"`
	Tests         []string       `json:"tests"`
	Status        LabOrderStatus `json:"status"`
	ResultsURL    string         `json:"resultsUrl,omitempty"`
	ClinicalNotes string         `json:"clinicalNotes,omitempty"`
}
