package handler

import (
	interviewapp "github.com/genintake/backend/internal/application/interview"
	"github.com/genintake/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionHandler handles interview session API endpoints
type SessionHandler struct {
	BaseHandler
	interviewService *interviewapp.Service
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(interviewService *interviewapp.Service) *SessionHandler {
	return &SessionHandler{
		interviewService: interviewService,
	}
}

// StartSessionRequest represents a request to open an interview session
type StartSessionRequest struct {
	SubjectID string `json:"subject_id" binding:"required,uuid"`
	Specialty string `json:"specialty" binding:"omitempty,max=100"`
}

// SubmitTurnRequest represents one subject utterance within a session
type SubmitTurnRequest struct {
	Utterance string `json:"utterance" binding:"required,max=4000"`
}

// sessionID binds the :id path parameter. A false return means the
// error response has already been written.
func (h *SessionHandler) sessionID(c *gin.Context) (uuid.UUID, bool) {
	var uri dto.IDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		h.BadRequest(c, "Invalid session ID format")
		return uuid.Nil, false
	}
	return id, true
}

// Start opens an interview session and returns the opening question.
func (h *SessionHandler) Start(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		h.BadRequest(c, "Invalid subject ID format")
		return
	}

	resp, err := h.interviewService.StartSession(c.Request.Context(), interviewapp.StartSessionRequest{
		SubjectID: subjectID,
		Specialty: req.Specialty,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// SubmitTurn processes one interview turn for a session. The response
// carries the assistant reply, the session status, and the verdict once
// the session reached a terminal state.
func (h *SessionHandler) SubmitTurn(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	var req SubmitTurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	resp, err := h.interviewService.SubmitTurn(c.Request.Context(), sessionID, req.Utterance)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// GetAssessment returns the persisted verdict for a session, or 404 when
// no verdict has been reached yet.
func (h *SessionHandler) GetAssessment(c *gin.Context) {
	sessionID, ok := h.sessionID(c)
	if !ok {
		return
	}

	verdict, err := h.interviewService.GetAssessment(c.Request.Context(), sessionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, verdict)
}
