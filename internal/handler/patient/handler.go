package patient

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/middleware"
	"github.com/jwalitptl/medicure-api/internal/model"
	"github.com/jwalitptl/medicure-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/httputil"
)

type Handler struct {
	appointments *appointment.Service
}

func NewHandler(appointments *appointment.Service) *Handler {
	return &Handler{appointments: appointments}
}

// RegisterRoutes expects r to be restricted to patients.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/doctors", h.ListDoctors)
	r.POST("/book", h.Book)
	r.GET("/appointments", h.ListAppointments)
	r.POST("/appointments/:id/cancel", h.Cancel)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	doctors, err := h.appointments.ListDoctors(c.Request.Context(), caller.ID, c.Query("specialization"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, doctors)
}

func (h *Handler) Book(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	var req model.BookAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithBindError(c, err)
		return
	}

	apt, err := h.appointments.Book(c.Request.Context(), caller.ID, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, apt)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	apts, err := h.appointments.ListForPatient(c.Request.Context(), caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, apts)
}

func (h *Handler) Cancel(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid appointment ID", err))
		return
	}

	apt, err := h.appointments.Cancel(c.Request.Context(), caller.ID, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, apt)
}
