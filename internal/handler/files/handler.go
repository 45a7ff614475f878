package files

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jwalitptl/medicure-api/pkg/errors"
	"github.com/jwalitptl/medicure-api/pkg/httputil"
	"github.com/jwalitptl/medicure-api/pkg/storage"
)

// Handler serves stored media by name. Names are unguessable UUIDs, so the
// route is public like the media URLs handed to clients.
type Handler struct {
	store storage.MediaStore
}

func NewHandler(store storage.MediaStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/files/:filename", h.Get)
}

func (h *Handler) Get(c *gin.Context) {
	rc, info, err := h.store.Open(c.Request.Context(), c.Param("filename"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			httputil.RespondWithError(c, apperrors.NewNotFound("file", err))
			return
		}
		httputil.RespondWithError(c, apperrors.NewInternal(err))
		return
	}
	defer rc.Close()

	c.Header("Cache-Control", "private, max-age=3600")
	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, nil)
}
