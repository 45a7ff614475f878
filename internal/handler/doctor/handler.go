package doctor

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/medicure-api/internal/middleware"
	"github.com/jwalitptl/medicure-api/internal/service/consultation"
	"github.com/jwalitptl/medicure-api/internal/service/doctor"
	"github.com/jwalitptl/medicure-api/internal/service/report"
	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/httputil"
)

type Handler struct {
	dashboard    *doctor.Service
	consultation *consultation.Service
	reports      *report.Service
}

func NewHandler(dashboard *doctor.Service, consultation *consultation.Service, reports *report.Service) *Handler {
	return &Handler{
		dashboard:    dashboard,
		consultation: consultation,
		reports:      reports,
	}
}

// RegisterRoutes expects r to be restricted to doctors.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/appointments", h.ListAppointments)
	r.GET("/summary/:id", h.GetSummary)
	r.GET("/summary/:id/pdf", h.GetSummaryPDF)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	apts, err := h.dashboard.Appointments(c.Request.Context(), caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, apts)
}

func (h *Handler) GetSummary(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid summary ID", err))
		return
	}

	view, err := h.consultation.GetSummaryForDoctor(c.Request.Context(), id, caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, view)
}

func (h *Handler) GetSummaryPDF(c *gin.Context) {
	caller, ok := middleware.Caller(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized(nil))
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NewBadRequest("invalid summary ID", err))
		return
	}

	name, data, err := h.reports.SummaryPDF(c.Request.Context(), id, caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, "application/pdf", data)
}
