package handlers

import (
	"github.com/gin-gonic/gin"

	"sacs-telemedicina-hub/internal/middleware"
	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/telemedicine"
	"sacs-telemedicina-hub/internal/utils"
)

// TelemedicineHandler handles the video session records.
type TelemedicineHandler struct {
	Sessions *telemedicine.Service
}

// NewTelemedicineHandler creates a new TelemedicineHandler.
func NewTelemedicineHandler(sessions *telemedicine.Service) *TelemedicineHandler {
	return &TelemedicineHandler{Sessions: sessions}
}

func (h *TelemedicineHandler) GetSession(c *gin.Context) {
	sess, ok := h.participant(c)
	if !ok {
		return
	}
	utils.Success(c, "Session fetched successfully", sess)
}

func (h *TelemedicineHandler) JoinSession(c *gin.Context) {
	if _, ok := h.participant(c); !ok {
		return
	}
	sess, err := h.Sessions.Join(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Joined session", sess)
}

func (h *TelemedicineHandler) EndSession(c *gin.Context) {
	if _, ok := h.participant(c); !ok {
		return
	}
	sess, err := h.Sessions.End(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Session ended", sess)
}

// participant loads the :id session and checks the caller is its doctor or patient.
func (h *TelemedicineHandler) participant(c *gin.Context) (models.TeleconsultationSession, bool) {
	sess, err := h.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return sess, false
	}
	role, _ := middleware.GetUserRoleFromContext(c)
	switch role {
	case models.RolePatient:
		own, _ := middleware.GetPatientIDFromContext(c)
		if own == sess.PatientID {
			return sess, true
		}
	case models.RoleDoctor:
		userID, _ := middleware.GetUserIDFromContext(c)
		if userID == sess.DoctorID {
			return sess, true
		}
	case models.RoleSuperAdmin:
		return sess, true
	}
	utils.Forbidden(c, "You are not a participant of this session.")
	return sess, false
}
