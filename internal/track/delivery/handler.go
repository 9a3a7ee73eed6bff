package delivery

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	accountdelivery "pixeltrace/internal/account/delivery"
	trackdto "pixeltrace/internal/track/dto"
	"pixeltrace/internal/track/usecase"

	"github.com/gin-gonic/gin"
)

type TrackHandler struct {
	resolver usecase.Resolver
}

func NewTrackHandler(resolver usecase.Resolver) *TrackHandler {
	return &TrackHandler{
		resolver: resolver,
	}
}

// splitIDs parses the comma-joined explicit id list. Empty segments are
// dropped so trailing commas don't turn into phantom ids.
func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

func (h *TrackHandler) GetItems(c *gin.Context) {
	page := 1
	if pageStr := c.Query("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	query := &trackdto.ReadQuery{
		Page:           page,
		Limit:          limit,
		SenderIdentity: c.Query("senderIdentity"),
		OwnerIdentity:  c.Query("ownerIdentity"),
		ExplicitIDs:    splitIDs(c.Query("ids")),
	}

	resp, err := h.resolver.Read(accountdelivery.CallerAccount(c), query)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *TrackHandler) DeleteItems(c *gin.Context) {
	query := &trackdto.DeleteQuery{
		SenderIdentity: c.Query("senderIdentity"),
		OwnerIdentity:  c.Query("ownerIdentity"),
		ExplicitIDs:    splitIDs(c.Query("ids")),
	}

	deleted, err := h.resolver.Delete(accountdelivery.CallerAccount(c), query)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, trackdto.DeleteResponse{DeletedCount: deleted})
}

func (h *TrackHandler) LinkItems(c *gin.Context) {
	var req trackdto.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Items) > trackdto.MaxLinkBatch {
		c.JSON(http.StatusBadRequest, gin.H{"error": "batch exceeds 1000 items"})
		return
	}

	if err := h.resolver.BatchLink(accountdelivery.CallerAccount(c), &req); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "items linked"})
}

func (h *TrackHandler) ConflictCheck(c *gin.Context) {
	var req trackdto.ConflictCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conflict, err := h.resolver.ConflictCheck(&req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, trackdto.ConflictCheckResponse{Conflict: conflict})
}

func (h *TrackHandler) writeError(c *gin.Context, err error) {
	var conflictErr *usecase.OwnershipConflictError
	var forbiddenErr *usecase.ForbiddenOwnershipError

	switch {
	case errors.Is(err, usecase.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, usecase.ErrQueryTooBroad), errors.Is(err, usecase.ErrMissingFilter):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{"error": conflictErr.Error(), "conflict_count": conflictErr.Count})
	case errors.As(err, &forbiddenErr):
		c.JSON(http.StatusForbidden, gin.H{"error": forbiddenErr.Error(), "conflict_count": forbiddenErr.Count})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
