package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"sacs-telemedicina-hub/internal/appointments"
	"sacs-telemedicina-hub/internal/middleware"
	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/utils"
)

// AppointmentHandler exposes the appointment lifecycle.
type AppointmentHandler struct {
	Engine *appointments.Engine
	Views  *appointments.Views
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(engine *appointments.Engine, views *appointments.Views) *AppointmentHandler {
	return &AppointmentHandler{Engine: engine, Views: views}
}

// CreateRequest is the body of every appointment creation endpoint. Fields a
// variant does not use are ignored.
type CreateRequest struct {
	PatientID    string                   `json:"patientId"`
	DoctorID     string                   `json:"doctorId"`
	CenterID     string                   `json:"centerId"`
	Reason       string                   `json:"reason"`
	Type         models.AppointmentType   `json:"type"`
	Status       models.AppointmentStatus `json:"status"`
	Date         *time.Time               `json:"date"`
	DesiredDate  *time.Time               `json:"desiredDate"`
	PatientNotes string                   `json:"patientNotes"`
	DoctorNotes  string                   `json:"doctorNotes"`
}

// DateRequest carries the date of a proposal or a confirmation.
type DateRequest struct {
	Date        *time.Time `json:"date"`
	DoctorNotes string     `json:"doctorNotes"`
}

// NotesRequest carries the notes written by the patient or the doctor.
type NotesRequest struct {
	PatientNotes string `json:"patientNotes"`
	DoctorNotes  string `json:"doctorNotes"`
}

func actorFromContext(c *gin.Context) appointments.Actor {
	id, _ := middleware.GetUserIDFromContext(c)
	role, _ := middleware.GetUserRoleFromContext(c)
	return appointments.Actor{ID: id, Role: role}
}

// bindCreate fills the caller's own patient and center ids when the token carries them.
func bindCreate(c *gin.Context) (CreateRequest, bool) {
	var req CreateRequest
	if !utils.BindAndValidate(c, &req) {
		return req, false
	}
	role, _ := middleware.GetUserRoleFromContext(c)
	if role == models.RolePatient {
		patientID, _ := middleware.GetPatientIDFromContext(c)
		if req.PatientID != "" && req.PatientID != patientID {
			utils.Forbidden(c, "Patients can only book appointments for themselves.")
			return req, false
		}
		req.PatientID = patientID
	}
	if req.CenterID == "" {
		req.CenterID, _ = middleware.GetCenterIDFromContext(c)
	}
	return req, true
}

// RequestTeleconsultation handles a patient asking for a remote consultation.
func (h *AppointmentHandler) RequestTeleconsultation(c *gin.Context) {
	req, ok := bindCreate(c)
	if !ok {
		return
	}
	a, err := h.Engine.RequestTeleconsultation(c.Request.Context(), actorFromContext(c), appointments.TeleconsultationRequest{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		CenterID:     req.CenterID,
		Reason:       req.Reason,
		Type:         req.Type,
		PatientNotes: req.PatientNotes,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Teleconsultation requested", a)
}

// RequestRoutine handles a patient asking for a visit on a desired date.
func (h *AppointmentHandler) RequestRoutine(c *gin.Context) {
	req, ok := bindCreate(c)
	if !ok {
		return
	}
	desired := req.DesiredDate
	if desired == nil {
		desired = req.Date
	}
	a, err := h.Engine.RequestRoutine(c.Request.Context(), actorFromContext(c), appointments.RoutineRequest{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		CenterID:     req.CenterID,
		Reason:       req.Reason,
		DesiredDate:  desired,
		Type:         req.Type,
		PatientNotes: req.PatientNotes,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Appointment requested", a)
}

// RaiseEmergency enters a patient into the triage queue.
func (h *AppointmentHandler) RaiseEmergency(c *gin.Context) {
	req, ok := bindCreate(c)
	if !ok {
		return
	}
	a, err := h.Engine.RaiseEmergency(c.Request.Context(), actorFromContext(c), appointments.EmergencyRequest{
		PatientID:    req.PatientID,
		DoctorID:     req.DoctorID,
		CenterID:     req.CenterID,
		Reason:       req.Reason,
		PatientNotes: req.PatientNotes,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Emergency registered", a)
}

// DirectBook schedules an appointment without negotiation.
func (h *AppointmentHandler) DirectBook(c *gin.Context) {
	req, ok := bindCreate(c)
	if !ok {
		return
	}
	a, err := h.Engine.DirectBook(c.Request.Context(), actorFromContext(c), appointments.BookingRequest{
		PatientID:   req.PatientID,
		DoctorID:    req.DoctorID,
		CenterID:    req.CenterID,
		Reason:      req.Reason,
		Date:        req.Date,
		Type:        req.Type,
		Status:      req.Status,
		DoctorNotes: req.DoctorNotes,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Appointment booked", a)
}

// GetAppointment returns one appointment. Patients only see their own.
func (h *AppointmentHandler) GetAppointment(c *gin.Context) {
	a, ok := h.load(c)
	if !ok {
		return
	}
	utils.Success(c, "Appointment fetched successfully", a)
}

// ListForPatient lists a patient's appointments, ordered by date.
func (h *AppointmentHandler) ListForPatient(c *gin.Context) {
	patientID := c.Query("patientId")
	role, _ := middleware.GetUserRoleFromContext(c)
	if role == models.RolePatient {
		own, _ := middleware.GetPatientIDFromContext(c)
		if patientID != "" && patientID != own {
			utils.Forbidden(c, "Patients can only view their own appointments.")
			return
		}
		patientID = own
	}
	if patientID == "" {
		utils.BadRequest(c, "patientId is required")
		return
	}
	items, err := h.Views.ByPatient(c.Request.Context(), patientID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", items)
}

// ListForCenter lists a center's appointments in one status class.
func (h *AppointmentHandler) ListForCenter(c *gin.Context) {
	centerID := c.Param("centerId")
	if !sameCenter(c, centerID) {
		utils.Forbidden(c, "You can only view your own center.")
		return
	}
	class, ok := appointments.ParseStatusClass(c.DefaultQuery("class", string(appointments.ClassActiveAgenda)))
	if !ok {
		utils.BadRequest(c, "class must be one of emergency-queue, requests, active-agenda, in-progress")
		return
	}
	items, err := h.Views.ByCenterAndStatusClass(c.Request.Context(), centerID, class)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", items)
}

// DoctorAgenda lists the calling doctor's open appointments.
func (h *AppointmentHandler) DoctorAgenda(c *gin.Context) {
	doctorID, _ := middleware.GetUserIDFromContext(c)
	items, err := h.Views.DoctorAgenda(c.Request.Context(), doctorID)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Agenda fetched successfully", items)
}

// CounterPropose handles a doctor offering another date.
func (h *AppointmentHandler) CounterPropose(c *gin.Context) {
	var req DateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.respond(c, "Proposal sent", func(id string, actor appointments.Actor) (models.Appointment, error) {
		return h.Engine.CounterPropose(c.Request.Context(), id, actor, appointments.CounterProposal{Date: req.Date, DoctorNotes: req.DoctorNotes})
	})
}

// AcceptProposal handles a patient accepting the offered date.
func (h *AppointmentHandler) AcceptProposal(c *gin.Context) {
	h.respond(c, "Proposal accepted", func(id string, actor appointments.Actor) (models.Appointment, error) {
		return h.Engine.AcceptProposal(c.Request.Context(), id, actor)
	})
}

// RejectProposal handles a patient declining the offered date.
func (h *AppointmentHandler) RejectProposal(c *gin.Context) {
	h.respond(c, "Proposal rejected", func(id string, actor appointments.Actor) (models.Appointment, error) {
		return h.Engine.RejectProposal(c.Request.Context(), id, actor)
	})
}

// Confirm handles staff confirming an appointment.
func (h *AppointmentHandler) Confirm(c *gin.Context) {
	var req DateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.respond(c, "Appointment confirmed", func(id string, actor appointments.Actor) (models.Appointment, error) {
		return h.Engine.Confirm(c.Request.Context(), id, actor, appointments.Confirmation{Date: req.Date})
	})
}

// AttendEmergency handles a doctor taking an emergency from triage.
func (h *AppointmentHandler) AttendEmergency(c *gin.Context) {
	h.respond(c, "Emergency attended", func(id string, actor appointments.Actor) (models.Appointment, error) {
		return h.Engine.AttendEmergency(c.Request.Context(), id, actor)
	})
}

// StartSession opens the teleconsultation of a confirmed appointment.
func (h *AppointmentHandler) StartSession(c *gin.Context) {
	h.respond(c, "Session started", func(id string, actor appointments.Actor) (models.Appointment, error) {
		return h.Engine.StartSession(c.Request.Context(), id, actor)
	})
}

// Complete closes an encounter.
func (h *AppointmentHandler) Complete(c *gin.Context) {
	h.respond(c, "Appointment completed", func(id string, actor appointments.Actor) (models.Appointment, error) {
		return h.Engine.Complete(c.Request.Context(), id, actor)
	})
}

// Cancel handles cancellation by any participant.
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	h.respond(c, "Appointment cancelled", func(id string, actor appointments.Actor) (models.Appointment, error) {
		return h.Engine.Cancel(c.Request.Context(), id, actor)
	})
}

// Annotate updates appointment notes.
func (h *AppointmentHandler) Annotate(c *gin.Context) {
	var req NotesRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	role, _ := middleware.GetUserRoleFromContext(c)
	if role == models.RolePatient && req.DoctorNotes != "" {
		utils.Forbidden(c, "Patients cannot write doctor notes.")
		return
	}
	h.respond(c, "Notes updated", func(id string, actor appointments.Actor) (models.Appointment, error) {
		return h.Engine.Annotate(c.Request.Context(), id, actor, appointments.Notes{PatientNotes: req.PatientNotes, DoctorNotes: req.DoctorNotes})
	})
}

// respond runs a transition on the :id appointment after the ownership check.
func (h *AppointmentHandler) respond(c *gin.Context, message string, run func(id string, actor appointments.Actor) (models.Appointment, error)) {
	if _, ok := h.load(c); !ok {
		return
	}
	a, err := run(c.Param("id"), actorFromContext(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, message, a)
}

// load fetches the :id appointment and rejects patients who do not own it
// and staff of other centers.
func (h *AppointmentHandler) load(c *gin.Context) (models.Appointment, bool) {
	a, err := h.Engine.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return a, false
	}
	role, _ := middleware.GetUserRoleFromContext(c)
	if role == models.RolePatient {
		own, _ := middleware.GetPatientIDFromContext(c)
		if a.PatientID != own {
			utils.Forbidden(c, "You do not have permission to access this appointment.")
			return a, false
		}
		return a, true
	}
	if !sameCenter(c, a.CenterID) {
		utils.Forbidden(c, "You do not have permission to access this appointment.")
		return a, false
	}
	return a, true
}

// sameCenter reports whether the caller may act on centerID. Super admins
// work across centers.
func sameCenter(c *gin.Context, centerID string) bool {
	role, _ := middleware.GetUserRoleFromContext(c)
	if role == models.RoleSuperAdmin {
		return true
	}
	own, _ := middleware.GetCenterIDFromContext(c)
	return own == centerID
}
