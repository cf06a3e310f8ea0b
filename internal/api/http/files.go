package http

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/shx815/simple-openhands/internal/infrastructure/monitoring"
	"github.com/shx815/simple-openhands/internal/providers/filesystem"
	"github.com/shx815/simple-openhands/internal/shared/types"
)

// ListFiles lists a directory, optionally filtered by a glob
func (h *Handlers) ListFiles(c *gin.Context) {
	var req types.ListFilesRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, types.ErrorResponse{Detail: "Invalid request: " + err.Error()})
			return
		}
	}

	rt, ok := h.runtime(c)
	if !ok {
		return
	}
	cwd, err := rt.Cwd()
	if err != nil {
		h.fail(c, err)
		return
	}

	path := req.Path
	if path == "" {
		path = cwd
	}

	timer := monitoring.NewTimer(h.metrics, "filesystem", "list")
	entries, err := h.files.List(c.Request.Context(), cwd, path, req.Pattern)
	if err != nil {
		timer.Stop("error")
		h.fileError(c, filesystem.Resolve(cwd, path), err)
		return
	}
	timer.Stop("success")
	c.JSON(http.StatusOK, entries)
}

// DownloadFiles streams a zip of a file or directory
func (h *Handlers) DownloadFiles(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Detail: "Path is required"})
		return
	}

	cwd := ""
	if rt, err := h.sessions.Current(); err == nil {
		cwd, _ = rt.Cwd()
	}
	if cwd == "" && !filepath.IsAbs(path) {
		c.JSON(http.StatusBadRequest, types.ErrorResponse{Detail: "Path must be absolute"})
		return
	}

	full := filesystem.Resolve(cwd, path)
	if _, err := os.Stat(full); err != nil {
		h.fileError(c, full, filesystem.ErrNotFound)
		return
	}

	timer := monitoring.NewTimer(h.metrics, "filesystem", "download")
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(full)+`.zip"`)
	c.Status(http.StatusOK)

	if err := h.files.Archive(c.Request.Context(), cwd, path, c.Writer); err != nil {
		timer.Stop("error")
		// headers are already sent
		h.logger.Warn("Archive stream failed", zap.String("path", full), zap.Error(err))
		c.Error(err)
		return
	}
	timer.Stop("success")
}

// ViewFile renders a file as an HTML page
func (h *Handlers) ViewFile(c *gin.Context) {
	path := c.Query("path")
	timer := monitoring.NewTimer(h.metrics, "filesystem", "view")

	page, err := h.files.View(path)
	if err != nil {
		timer.Stop("error")
		h.fileError(c, path, err)
		return
	}
	timer.Stop("success")
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (h *Handlers) fileError(c *gin.Context, path string, err error) {
	status, detail := http.StatusInternalServerError, "Error accessing file: "+err.Error()
	switch {
	case errors.Is(err, filesystem.ErrNotAbsolute):
		status, detail = http.StatusBadRequest, "Path must be absolute"
	case errors.Is(err, filesystem.ErrNotFound):
		status, detail = http.StatusNotFound, "File not found"
	case errors.Is(err, filesystem.ErrIsDirectory):
		status, detail = http.StatusBadRequest, "Path is a directory"
	case errors.Is(err, filesystem.ErrNotDirectory):
		status, detail = http.StatusBadRequest, "Path is not a directory"
	case errors.Is(err, filesystem.ErrUnsupportedView):
		status, detail = http.StatusBadRequest, "Unsupported file extension: "+filepath.Ext(path)
	case errors.Is(err, filesystem.ErrBinary):
		status, detail = http.StatusBadRequest, "File is binary"
	default:
		h.logger.Error("File request failed", zap.String("path", path), zap.Error(err))
	}
	c.JSON(status, types.ErrorResponse{Detail: detail})
}
