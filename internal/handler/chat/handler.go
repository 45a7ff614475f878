package chat

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/middleware"
	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/service/consultation"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/httputil"
)

type Handler struct {
	svc            *consultation.Service
	maxUploadBytes int64
}

func NewHandler(svc *consultation.Service, maxUploadBytes int64) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 25 << 20
	}
	return &Handler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// RegisterRoutes expects r to be authenticated. patientOnly guards the
// routes that add turns.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, patientOnly gin.HandlerFunc) {
	chat := r.Group("/chat")
	{
		chat.POST("/message", patientOnly, h.SendMessage)
		chat.POST("/voice", patientOnly, h.SendVoice)
		chat.POST("/upload", patientOnly, h.UploadImage)
		chat.GET("/history/:appointment_id", h.History)
		chat.POST("/end", h.End)
	}
}

// respond hides whether a foreign appointment exists from patients.
func respond(c *gin.Context, caller model.Caller, err error) {
	if caller.Role == model.RolePatient && errors.Is(err, apperrors.ForbiddenError) {
		err = apperrors.NewNotFound("appointment", err)
	}
	httputil.RespondWithError(c, err)
}

func (h *Handler) SendMessage(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	var req model.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	ex, err := h.svc.SendMessage(c.Request.Context(), caller, req.AppointmentID, req.Message)
	if err != nil {
		respond(c, caller, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, model.ChatMessageResponse{
		PatientMessage: ex.PatientTurn.Text,
		AIResponse:     ex.AITurn.Text,
	})
}

func (h *Handler) SendVoice(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	appointmentID, err := uuid.Parse(c.PostForm("appointment_id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("appointment_id: is required", err))
		return
	}

	file, err := c.FormFile("audio")
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("audio: is required", err))
		return
	}
	f, err := file.Open()
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("unreadable audio upload", err))
		return
	}
	defer f.Close()

	res, err := h.svc.SendVoice(c.Request.Context(), caller, appointmentID, f, file.Filename)
	if err != nil {
		respond(c, caller, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, model.VoiceMessageResponse{
		TranscribedText: res.TranscribedText,
		AIResponse:      res.Exchange.AITurn.Text,
		AudioURL:        res.AudioURL,
	})
}

func (h *Handler) UploadImage(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	appointmentID, err := uuid.Parse(c.PostForm("appointment_id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("appointment_id: is required", err))
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("image: is required", err))
		return
	}
	if file.Size > h.maxUploadBytes {
		httputil.RespondWithError(c, apperrors.NewBadRequest(fmt.Sprintf("image exceeds %d bytes", h.maxUploadBytes), nil))
		return
	}
	f, err := file.Open()
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("unreadable image upload", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes+1))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("unreadable image upload", err))
		return
	}

	res, err := h.svc.UploadImage(c.Request.Context(), caller, appointmentID, data, file.Filename, file.Header.Get("Content-Type"))
	if err != nil {
		respond(c, caller, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, model.ImageUploadResponse{
		ImageURL: res.ImageURL,
		Analysis: res.Analysis,
	})
}

func (h *Handler) History(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	appointmentID, err := uuid.Parse(c.Param("appointment_id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid appointment ID", err))
		return
	}

	turns, err := h.svc.History(c.Request.Context(), caller, appointmentID)
	if err != nil {
		respond(c, caller, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, turns)
}

// End accepts the appointment ID as a query parameter or in a JSON body.
func (h *Handler) End(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	var req model.EndChatRequest
	if raw := c.Query("appointment_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			httputil.RespondWithError(c, apperrors.NewBadRequest("invalid appointment ID", err))
			return
		}
		req.AppointmentID = id
	} else if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.RespondWithBindError(c, err)
			return
		}
	}
	if req.AppointmentID == uuid.Nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("appointment_id: is required", nil))
		return
	}

	summary, err := h.svc.End(c.Request.Context(), caller, req.AppointmentID)
	if err != nil {
		respond(c, caller, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, summary)
}
