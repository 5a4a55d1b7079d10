package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"clinic-portal-server/internal/middleware"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/telemedicine"
	"clinic-portal-server/internal/utils"
)

// MeetingHandler handles telemedicine meeting requests.
type MeetingHandler struct {
	provisioner *telemedicine.Provisioner
	now         func() time.Time
}

// NewMeetingHandler creates a new MeetingHandler.
func NewMeetingHandler(provisioner *telemedicine.Provisioner) *MeetingHandler {
	return &MeetingHandler{provisioner: provisioner, now: time.Now}
}

// MeetingResponse carries the meeting with the server-computed join window so
// clients gate their join button on the same rule the server enforces.
type MeetingResponse struct {
	*models.Meeting
	JoinWindow telemedicine.Window `json:"joinWindow"`
	Joinable   bool                `json:"joinable"`
}

func (h *MeetingHandler) respond(m *models.Meeting) MeetingResponse {
	return MeetingResponse{
		Meeting:    m,
		JoinWindow: telemedicine.JoinWindow(m),
		Joinable:   telemedicine.IsJoinable(m, h.now()),
	}
}

// CreateMeeting provisions the appointment's meeting, or returns the existing one.
func (h *MeetingHandler) CreateMeeting(c *gin.Context) {
	meeting, err := h.provisioner.CreateForAppointment(c.Request.Context(), c.Param("id"), middleware.CallerFromContext(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Meeting ready", h.respond(meeting))
}

// GetMeeting returns the appointment's meeting after a best-effort refresh.
func (h *MeetingHandler) GetMeeting(c *gin.Context) {
	meeting, err := h.provisioner.GetForAppointment(c.Request.Context(), c.Param("id"), middleware.CallerFromContext(c))
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Meeting fetched successfully", h.respond(meeting))
}

// JoinMeeting returns the join link only while the join window is open.
func (h *MeetingHandler) JoinMeeting(c *gin.Context) {
	now := h.now()
	meeting, window, err := h.provisioner.Join(c.Request.Context(), c.Param("id"), middleware.CallerFromContext(c), now)
	if err != nil {
		utils.HandleError(c, err)
		return
	}
	utils.Success(c, "Meeting is open", MeetingResponse{Meeting: meeting, JoinWindow: window, Joinable: true})
}
