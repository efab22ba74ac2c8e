package polls

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-webinar/venue/internal/middleware"
	"github.com/aura-webinar/venue/internal/models"
	"github.com/aura-webinar/venue/pkg/response"
)

// RoomParam is the route parameter holding the room id.
const RoomParam = "room"

// VoteRequest is the body for POST /api/rooms/:room/polls/:id/vote.
type VoteRequest struct {
	Options []uuid.UUID `json:"options"`
}

// Handler handles poll HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a polls handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /api/rooms/:room/polls?state=&pinned=.
func (h *Handler) List(c *gin.Context) {
	room, ok := roomID(c)
	if !ok {
		return
	}
	principal := middleware.PrincipalFrom(c)
	opts := ListOptions{
		Moderator: principal.HasRoomPermission(room, models.PermRoomPollManage),
		ForUser:   &principal.UserID,
	}
	if v := c.Query("state"); v != "" {
		st := models.PollState(v)
		opts.Filter.State = &st
	}
	if v := c.Query("pinned"); v != "" {
		pinned, err := strconv.ParseBool(v)
		if err != nil {
			response.BadRequest(c, "invalid pinned filter")
			return
		}
		opts.Filter.Pinned = &pinned
	}
	list, err := h.svc.ListForRoom(c.Request.Context(), room, opts)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Create handles POST /api/rooms/:room/polls.
func (h *Handler) Create(c *gin.Context) {
	room, ok := roomID(c)
	if !ok {
		return
	}
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	poll, err := h.svc.Create(c.Request.Context(), room, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, poll)
}

// Get handles GET /api/rooms/:room/polls/:id. Vote counts are only shown to moderators.
func (h *Handler) Get(c *gin.Context) {
	room, id, ok := pollIDs(c)
	if !ok {
		return
	}
	poll, err := h.svc.Get(c.Request.Context(), id, room)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !middleware.PrincipalFrom(c).HasRoomPermission(room, models.PermRoomPollManage) {
		if !hasState(models.PublicStates, poll.State) {
			response.NotFound(c, "poll not found")
			return
		}
		poll.Results = nil
	}
	response.OK(c, poll)
}

// Update handles PATCH /api/rooms/:room/polls/:id.
func (h *Handler) Update(c *gin.Context) {
	room, id, ok := pollIDs(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	poll, err := h.svc.Update(c.Request.Context(), id, room, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, poll)
}

// Delete handles DELETE /api/rooms/:room/polls/:id.
func (h *Handler) Delete(c *gin.Context) {
	room, id, ok := pollIDs(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id, room); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// Pin handles POST /api/rooms/:room/polls/:id/pin.
func (h *Handler) Pin(c *gin.Context) {
	room, id, ok := pollIDs(c)
	if !ok {
		return
	}
	if err := h.svc.Pin(c.Request.Context(), id, room); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"id": id, "is_pinned": true})
}

// Vote handles POST /api/rooms/:room/polls/:id/vote.
func (h *Handler) Vote(c *gin.Context) {
	room, id, ok := pollIDs(c)
	if !ok {
		return
	}
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	principal := middleware.PrincipalFrom(c)
	poll, err := h.svc.Vote(c.Request.Context(), id, room, principal.UserID, req.Options)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !principal.HasRoomPermission(room, models.PermRoomPollManage) {
		poll.Results = nil
	}
	response.OK(c, poll)
}

// Voted handles GET /api/rooms/:room/polls/voted.
func (h *Handler) Voted(c *gin.Context) {
	room, ok := roomID(c)
	if !ok {
		return
	}
	ids, err := h.svc.VotedPollIDs(c.Request.Context(), room, middleware.PrincipalFrom(c).UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, ids)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPollNotFound):
		response.NotFound(c, "poll not found")
	case errors.Is(err, ErrOptionNotFound):
		response.BadRequest(c, "unknown poll option")
	case errors.Is(err, ErrInvalidState):
		response.BadRequest(c, "invalid poll state")
	default:
		h.logger.Error("poll operation failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "server error")
	}
}

func roomID(c *gin.Context) (uuid.UUID, bool) {
	room, err := uuid.Parse(c.Param(RoomParam))
	if err != nil {
		response.BadRequest(c, "invalid room id")
		return uuid.Nil, false
	}
	return room, true
}

func pollIDs(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	room, ok := roomID(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid poll id")
		return uuid.Nil, uuid.Nil, false
	}
	return room, id, true
}
