package handlers

import (
	"github.com/gin-gonic/gin"

	"clinic-portal-server/internal/appointment"
	"clinic-portal-server/internal/middleware"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/utils"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	service *appointment.Service
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(service *appointment.Service) *AppointmentHandler {
	return &AppointmentHandler{service: service}
}

// CreateAppointmentRequest represents the request body for booking an appointment.
// The patient is always the authenticated caller.
type CreateAppointmentRequest struct {
	DoctorID     string `json:"doctorId" binding:"required"`
	Date         string `json:"date" binding:"required"`
	Time         string `json:"time" binding:"required"`
	Reason       string `json:"reason" validate:"max=255"`
	PatientName  string `json:"patientName" binding:"required" validate:"max=200"`
	PatientEmail string `json:"patientEmail" binding:"required,email"`
	PatientPhone string `json:"patientPhone" validate:"max=50"`
}

// UpdateAppointmentStatusRequest represents the request body for a status change.
type UpdateAppointmentStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required"`
}

// CreateAppointment books an unverified appointment and emails the verification link.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.service.Create(c.Request.Context(), appointment.CreateInput{
		DoctorID:     req.DoctorID,
		Date:         req.Date,
		Time:         req.Time,
		Reason:       req.Reason,
		PatientName:  req.PatientName,
		PatientEmail: req.PatientEmail,
		PatientPhone: req.PatientPhone,
	}, middleware.CallerFromContext(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Created(c, "Appointment booked, check your email to confirm it", appt.Sanitize())
}

// VerifyAppointment confirms the patient's email through the emailed token.
func (h *AppointmentHandler) VerifyAppointment(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		utils.BadRequest(c, "Verification token is required")
		return
	}

	appt, err := h.service.Verify(c.Request.Context(), token)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.Success(c, "Appointment verified successfully", appt.Sanitize())
}

// GetPatientAppointments lists the caller's own bookings.
func (h *AppointmentHandler) GetPatientAppointments(c *gin.Context) {
	appointments, err := h.service.ListForPatient(c.Request.Context(), middleware.CallerFromContext(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", models.SanitizeAppointments(appointments))
}

// GetDoctorAppointments lists the calling doctor's schedule.
func (h *AppointmentHandler) GetDoctorAppointments(c *gin.Context) {
	appointments, err := h.service.ListForDoctor(c.Request.Context(), middleware.CallerFromContext(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", models.SanitizeAppointments(appointments))
}

// GetAllAppointments lists every appointment, optionally for one doctor (?doctorId=).
func (h *AppointmentHandler) GetAllAppointments(c *gin.Context) {
	appointments, err := h.service.ListAll(c.Request.Context(), middleware.CallerFromContext(c), c.Query("doctorId"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointments fetched successfully", models.SanitizeAppointments(appointments))
}

// GetAppointmentByID returns one appointment to a participant or an admin.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	appt, err := h.service.Get(c.Request.Context(), c.Param("id"), middleware.CallerFromContext(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment fetched successfully", appt.Sanitize())
}

// UpdateAppointmentStatus applies a staff status change.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	var req UpdateAppointmentStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appt, err := h.service.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, middleware.CallerFromContext(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Appointment status updated successfully", appt.Sanitize())
}
