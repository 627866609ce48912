package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/models"
)

const streamKeepAlive = 25 * time.Second

// StreamHandler serves real-time updates as server-sent events.
type StreamHandler struct {
	profiles core.ProfileService
	collab   core.CollaborationService
	logger   *zap.Logger
}

func NewStreamHandler(ps core.ProfileService, cs core.CollaborationService, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{profiles: ps, collab: cs, logger: logger}
}

// stream subscribes with the request context and forwards every value as an event
// named event until the client goes away.
func stream[T any](c *gin.Context, logger *zap.Logger, event string, subscribe func(ctx context.Context, fn func(T)) (core.Unsubscribe, error)) {
	ctx := c.Request.Context()
	updates := make(chan T, 8)
	unsubscribe, err := subscribe(ctx, func(v T) {
		select {
		case updates <- v:
		case <-ctx.Done():
		}
	})
	if err != nil {
		mapServiceErrorToStatus(c, logger, err)
		return
	}
	defer unsubscribe()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-updates:
			c.SSEvent(event, v)
			c.Writer.Flush()
		case <-ticker.C:
			c.SSEvent("ping", "")
			c.Writer.Flush()
		}
	}
}

// Profiles handles GET /stream/profiles
func (h *StreamHandler) Profiles(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	stream(c, h.logger, "profiles", func(ctx context.Context, fn func([]*models.Profile)) (core.Unsubscribe, error) {
		return h.profiles.OnProfilesChange(ctx, id.UID, fn)
	})
}

// Profile handles GET /stream/profiles/:profileId. A deleted profile is sent as null.
func (h *StreamHandler) Profile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	stream(c, h.logger, "profile", func(ctx context.Context, fn func(*models.Profile)) (core.Unsubscribe, error) {
		return h.profiles.OnProfileChange(ctx, id.UID, c.Param("profileId"), fn)
	})
}

// SharedProfiles handles GET /stream/shared-profiles
func (h *StreamHandler) SharedProfiles(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	stream(c, h.logger, "sharedProfiles", func(ctx context.Context, fn func([]*models.SharedProfileRef)) (core.Unsubscribe, error) {
		return h.profiles.OnSharedProfilesChange(ctx, id.UID, fn)
	})
}

// CollaborativeProfile handles GET /stream/collaborative-profiles/:profileId
func (h *StreamHandler) CollaborativeProfile(c *gin.Context) {
	id, ok := identity(c)
	if !ok {
		return
	}
	stream(c, h.logger, "collaborativeProfile", func(ctx context.Context, fn func(*models.CollaborativeProfile)) (core.Unsubscribe, error) {
		return h.collab.OnCollaborativeProfileChange(ctx, id.UID, c.Param("profileId"), fn)
	})
}
