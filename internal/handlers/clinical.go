package handlers

import (
	"github.com/gin-gonic/gin"

	"sacs-telemedicina-hub/internal/appointments"
	"sacs-telemedicina-hub/internal/clinical"
	"sacs-telemedicina-hub/internal/middleware"
	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/utils"
)

// ClinicalHandler handles notes, prescriptions and lab orders.
type ClinicalHandler struct {
	Clinical *clinical.Service
	Engine   *appointments.Engine
}

// NewClinicalHandler creates a new ClinicalHandler.
func NewClinicalHandler(svc *clinical.Service, engine *appointments.Engine) *ClinicalHandler {
	return &ClinicalHandler{Clinical: svc, Engine: engine}
}

// CreateNoteRequest represents the request body for filing a SOAP note.
type CreateNoteRequest struct {
	AppointmentID string `json:"appointmentId" binding:"required"`
	Subjective    string `json:"subjective"`
	Objective     string `json:"objective"`
	Assessment    string `json:"assessment"`
	Plan          string `json:"plan"`
	// CompleteAppointment closes the appointment once the note is filed.
	CompleteAppointment bool `json:"completeAppointment"`
}

// NoteResponse is the filed note and, when requested, the completed appointment.
type NoteResponse struct {
	Note        models.MedicalRecord `json:"note"`
	Appointment *models.Appointment  `json:"appointment,omitempty"`
}

// CreateNote files a SOAP note for an appointment the doctor attends.
func (h *ClinicalHandler) CreateNote(c *gin.Context) {
	var req CreateNoteRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	ctx := c.Request.Context()

	appt, err := h.Engine.Get(ctx, req.AppointmentID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	doctorID, _ := middleware.GetUserIDFromContext(c)
	if !sameCenter(c, appt.CenterID) || (appt.DoctorID != "" && appt.DoctorID != doctorID) {
		utils.Forbidden(c, "Only the attending doctor can file notes for this appointment.")
		return
	}
	if appt.Status.IsTerminal() {
		utils.Conflict(c, "Appointment is already "+string(appt.Status)+"; notes can no longer be filed.")
		return
	}

	note, err := h.Clinical.CreateSOAPNote(ctx, clinical.NoteRequest{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      doctorID,
		Subjective:    req.Subjective,
		Objective:     req.Objective,
		Assessment:    req.Assessment,
		Plan:          req.Plan,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	resp := NoteResponse{Note: note}
	if req.CompleteAppointment {
		done, err := h.Engine.Complete(ctx, appt.ID, actorFromContext(c))
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		resp.Appointment = &done
	}
	utils.Created(c, "Medical note saved", resp)
}

// PatientHistory lists a patient's notes, newest first. Patients only see their own.
func (h *ClinicalHandler) PatientHistory(c *gin.Context) {
	patientID := c.Param("patientId")
	role, _ := middleware.GetUserRoleFromContext(c)
	if role == models.RolePatient {
		own, _ := middleware.GetPatientIDFromContext(c)
		if own != patientID {
			utils.Forbidden(c, "You can only view your own medical history.")
			return
		}
	}
	notes, err := h.Clinical.PatientHistory(c.Request.Context(), patientID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Medical history fetched successfully", notes)
}

// CreatePrescriptionRequest represents the request body for issuing a prescription.
type CreatePrescriptionRequest struct {
	PatientID       string              `json:"patientId" binding:"required"`
	MedicalRecordID string              `json:"medicalRecordId"`
	Medications     []models.Medication `json:"medications"`
}

func (h *ClinicalHandler) CreatePrescription(c *gin.Context) {
	var req CreatePrescriptionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	doctorID, _ := middleware.GetUserIDFromContext(c)
	p, err := h.Clinical.CreatePrescription(c.Request.Context(), clinical.PrescriptionRequest{
		PatientID:       req.PatientID,
		DoctorID:        doctorID,
		MedicalRecordID: req.MedicalRecordID,
		Medications:     req.Medications,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Prescription issued", p)
}

// ValidatePrescription looks up a pending prescription by its printed code.
func (h *ClinicalHandler) ValidatePrescription(c *gin.Context) {
	p, err := h.Clinical.ValidatePrescription(c.Request.Context(), c.Param("code"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Prescription is valid", p)
}

func (h *ClinicalHandler) DispensePrescription(c *gin.Context) {
	p, err := h.Clinical.Dispense(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Prescription dispensed", p)
}

// CreateLabOrderRequest represents the request body for ordering lab tests.
type CreateLabOrderRequest struct {
	PatientID     string   `json:"patientId" binding:"required"`
	Tests         []string `json:"tests"`
	ClinicalNotes string   `json:"clinicalNotes"`
}

func (h *ClinicalHandler) CreateLabOrder(c *gin.Context) {
	var req CreateLabOrderRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	doctorID, _ := middleware.GetUserIDFromContext(c)
	centerID, _ := middleware.GetCenterIDFromContext(c)
	o, err := h.Clinical.CreateLabOrder(c.Request.Context(), clinical.LabOrderRequest{
		PatientID:     req.PatientID,
		DoctorID:      doctorID,
		CenterID:      centerID,
		Tests:         req.Tests,
		ClinicalNotes: req.ClinicalNotes,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Lab order created", o)
}

// ListLabOrders lists the orders of the caller's center.
func (h *ClinicalHandler) ListLabOrders(c *gin.Context) {
	centerID, _ := middleware.GetCenterIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	if role == models.RoleSuperAdmin {
		centerID = c.Query("centerId")
	}
	orders, err := h.Clinical.ListLabOrders(c.Request.Context(), centerID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Lab orders fetched successfully", orders)
}

func (h *ClinicalHandler) StartLabOrder(c *gin.Context) {
	o, err := h.Clinical.StartLabOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Lab order in process", o)
}

// LabResultRequest carries the link to the uploaded results.
type LabResultRequest struct {
	ResultsURL string `json:"resultsUrl" binding:"required"`
}

func (h *ClinicalHandler) CompleteLabOrder(c *gin.Context) {
	var req LabResultRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	o, err := h.Clinical.CompleteLabOrder(c.Request.Context(), c.Param("id"), req.ResultsURL)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Lab results uploaded", o)
}
