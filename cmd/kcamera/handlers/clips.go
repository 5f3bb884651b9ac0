package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/wachiwi/kcamera/pkg/catalog"
)

type ClipHandler struct {
	Catalog *catalog.Catalog
}

func (h *ClipHandler) List(c *gin.Context) {
	entries, err := h.Catalog.List()
	if err != nil {
		slog.Error("Failed to list clips", "error", err)
		c.String(http.StatusInternalServerError, "Failed to list clips")
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *ClipHandler) entry(c *gin.Context) (catalog.Entry, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "Invalid clip id")
		return catalog.Entry{}, false
	}
	e, err := h.Catalog.Get(id)
	if errors.Is(err, catalog.ErrNotFound) {
		c.String(http.StatusNotFound, "Clip not found")
		return catalog.Entry{}, false
	}
	if err != nil {
		slog.Error("Failed to read catalog", "error", err)
		c.String(http.StatusInternalServerError, "Failed to read catalog")
		return catalog.Entry{}, false
	}
	return e, true
}

func (h *ClipHandler) Download(c *gin.Context) {
	e, ok := h.entry(c)
	if !ok {
		return
	}
	c.FileAttachment(e.Path, filepath.Base(e.Path))
}

func (h *ClipHandler) Delete(c *gin.Context) {
	e, ok := h.entry(c)
	if !ok {
		return
	}
	if err := h.Catalog.Remove(e.ID); err != nil {
		slog.Error("Failed to delete clip", "id", e.ID, "error", err)
		c.String(http.StatusInternalServerError, "Failed to delete clip")
		return
	}
	slog.Info("Deleted clip", "id", e.ID)
	c.Status(http.StatusNoContent)
}
