package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/matchwatch/vlr-results-notifier-go/internal/db/repository"
	"github.com/matchwatch/vlr-results-notifier-go/pkg/logger"
)

const defaultPendingLimit = 50

// CycleRunner triggers scrape cycles on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context) error
	InFlight() bool
}

// AdminHandler exposes operator endpoints: manual cycle triggers, the
// pending queue, and notified-flag resets.
type AdminHandler struct {
	runner       CycleRunner
	repo         repository.MatchRepository
	cycleTimeout time.Duration
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(runner CycleRunner, repo repository.MatchRepository, cycleTimeout time.Duration) *AdminHandler {
	return &AdminHandler{
		runner:       runner,
		repo:         repo,
		cycleTimeout: cycleTimeout,
	}
}

// TriggerCycle starts a scrape cycle in the background. A cycle already in
// flight yields 409; the caller watches logs or the pending endpoint for the
// outcome.
func (h *AdminHandler) TriggerCycle(c *gin.Context) {
	if h.runner.InFlight() {
		c.JSON(http.StatusConflict, gin.H{
			"error": "a scrape cycle is already in flight",
		})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.cycleTimeout)
		defer cancel()

		if err := h.runner.RunCycle(ctx); err != nil {
			logger.Log.Error("manually triggered cycle failed", zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status": "cycle started",
	})
}

// ListPending returns completed matches that have not been notified yet,
// including ones outside the recency window.
func (h *AdminHandler) ListPending(c *gin.Context) {
	limit := defaultPendingLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	matches, err := h.repo.ListPending(c.Request.Context(), limit)
	if err != nil {
		logger.Log.Error("failed to list pending matches", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to list pending matches",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"count":   len(matches),
	})
}

type resetRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

// ResetNotified clears the notified flag for the given ids, or for every
// record when all=true. The affected matches become candidates again on the
// next cycle.
func (h *AdminHandler) ResetNotified(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
		})
		return
	}

	if !req.All && len(req.IDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "provide ids or set all=true",
		})
		return
	}

	var (
		changed int64
		err     error
	)
	if req.All {
		changed, err = h.repo.ResetAllNotified(c.Request.Context())
	} else {
		changed, err = h.repo.ResetNotified(c.Request.Context(), req.IDs)
	}
	if err != nil {
		logger.Log.Error("failed to reset notified flags", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to reset notified flags",
		})
		return
	}

	logger.Log.Info("notified flags reset",
		zap.Bool("all", req.All),
		zap.Int64("changed", changed),
	)

	c.JSON(http.StatusOK, gin.H{
		"reset": changed,
	})
}
