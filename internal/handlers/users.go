package handlers

import (
	"github.com/gin-gonic/gin"

	"sacs-telemedicina-hub/internal/identity"
	"sacs-telemedicina-hub/internal/middleware"
	"sacs-telemedicina-hub/internal/models"
	"sacs-telemedicina-hub/internal/utils"
)

// UserHandler lists the people of a medical center.
type UserHandler struct {
	Directory *identity.Directory
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(dir *identity.Directory) *UserHandler {
	return &UserHandler{Directory: dir}
}

// centerScope is the caller's center; super admins may pick one with ?centerId.
func centerScope(c *gin.Context) string {
	role, _ := middleware.GetUserRoleFromContext(c)
	if role == models.RoleSuperAdmin {
		return c.Query("centerId")
	}
	centerID, _ := middleware.GetCenterIDFromContext(c)
	return centerID
}

// GetDoctors handles fetching the doctors of the caller's center.
func (h *UserHandler) GetDoctors(c *gin.Context) {
	doctors, err := h.Directory.ListUsers(c.Request.Context(), models.RoleDoctor, centerScope(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Doctors fetched successfully", doctors)
}

// GetPatients handles fetching the patients registered at the caller's center.
func (h *UserHandler) GetPatients(c *gin.Context) {
	patients, err := h.Directory.ListPatients(c.Request.Context(), centerScope(c))
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Success(c, "Patients fetched successfully", patients)
}

// CreatePatient registers a patient at the caller's center. Super admins name
// the center in the body.
func (h *UserHandler) CreatePatient(c *gin.Context) {
	var req identity.PatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	role, _ := middleware.GetUserRoleFromContext(c)
	if role != models.RoleSuperAdmin {
		req.CenterID, _ = middleware.GetCenterIDFromContext(c)
	}
	req.CreatedBy, _ = middleware.GetUserIDFromContext(c)

	patient, err := h.Directory.CreatePatient(c.Request.Context(), req)
	if err != nil {
		utils.RespondError(c, err)
		return
	}
	utils.Created(c, "Patient registered successfully", patient)
}
