package upload

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/internal/middleware"
	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/internal/worlds"
	"github.com/aura-webinar/venue/pkg/response"
)

// Permissions accepted for generic uploads: any world-level or room-level right to
// view, edit or chat is enough.
var Permissions = []models.Permission{
	models.PermWorldView,
	models.PermWorldUpdate,
	models.PermRoomUpdate,
	models.PermRoomChatSend,
}

// SchedulePermissions are required for schedule imports.
var SchedulePermissions = []models.Permission{models.PermWorldUpdate}

const (
	// Raster uploads are checked against MaxSize after normalization, so the raw body
	// may exceed it by this factor.
	imageHeadroom     = 4
	multipartOverhead = 1 << 20
)

// Handler handles upload HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an upload handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Upload handles POST /api/upload (multipart: file, optional width and height).
func (h *Handler) Upload(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	world := worlds.FromContext(c)

	limit := h.svc.cfg.MaxSize*imageHeadroom + multipartOverhead
	f, ok := h.readFile(c, limit, false)
	if !ok {
		return
	}
	opts := Options{Width: c.PostForm("width"), Height: c.PostForm("height")}

	sf, err := h.svc.Ingest(c.Request.Context(), principal, world, f, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.FileCreated(c, sf.URL)
}

// ScheduleImport handles POST /api/schedule_import (multipart: file).
func (h *Handler) ScheduleImport(c *gin.Context) {
	principal := middleware.PrincipalFrom(c)
	world := worlds.FromContext(c)

	f, ok := h.readFile(c, h.svc.cfg.ScheduleMaxSize+multipartOverhead, true)
	if !ok {
		return
	}
	sf, err := h.svc.IngestSchedule(c.Request.Context(), principal, world, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.FileCreated(c, sf.URL)
}

// readFile bounds the request body to limit bytes and rejects files whose declared size
// is already over the ceiling before reading them into memory.
func (h *Handler) readFile(c *gin.Context, limit int64, schedule bool) (File, bool) {
	if c.Request.ContentLength > limit {
		response.FileError(c, ErrSizeExceeded.Code)
		return File{}, false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.FileError(c, ErrSizeExceeded.Code)
			return File{}, false
		}
		response.FileError(c, ErrMissingFile.Code)
		return File{}, false
	}
	if err := h.svc.checkDeclaredSize(fh.Filename, fh.Size, schedule); err != nil {
		h.fail(c, err)
		return File{}, false
	}
	rc, err := fh.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return File{}, false
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		h.logger.Error("read uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return File{}, false
	}
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
		Size:        fh.Size,
	}, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	var codeErr *CodeError
	var convErr *ConversionError
	switch {
	case errors.As(err, &codeErr):
		response.FileError(c, codeErr.Code)
	case errors.As(err, &convErr):
		response.FileError(c, convErr.Error())
	default:
		h.logger.Error("upload failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
	}
}
