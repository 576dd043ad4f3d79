package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/model"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // keeps a slow query from blocking the SSE loop
)

// ExamLookup resolves an exam definition.
type ExamLookup interface {
	GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// MonitorSource provides the aggregate attempt counts of an exam.
type MonitorSource interface {
	Snapshot(ctx context.Context, examID uuid.UUID) (*model.MonitorSnapshot, error)
}

// EventFeed subscribes to an exam's attempt events.
type EventFeed interface {
	Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub
}

type MonitorHandler struct {
	exams   ExamLookup
	monitor MonitorSource
	feed    EventFeed
	log     zerolog.Logger
}

func NewMonitorHandler(exams ExamLookup, monitor MonitorSource, feed EventFeed, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		exams:   exams,
		monitor: monitor,
		feed:    feed,
		log:     log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:exam_id/monitor
// Streams a snapshot, then every attempt event, with periodic refreshes.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	exam, err := h.exams.GetExam(reqCtx, examID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	snapCtx, cancel := context.WithTimeout(reqCtx, refreshTimeout)
	snap, err := h.monitor.Snapshot(snapCtx, examID)
	cancel()
	if err != nil {
		fail(c, h.log, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("message", gin.H{
		"type": "snapshot",
		"data": gin.H{
			"exam": gin.H{
				"id":              examID.String(),
				"title":           exam.Title,
				"duration":        exam.DurationMinutes,
				"total_questions": len(exam.Questions),
				"total_points":    exam.TotalPoints,
			},
			"stats": snap,
		},
	})
	c.Writer.Flush()

	pubsub := h.feed.Subscribe(reqCtx, examID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Refreshes are skipped until the first event proves somebody is active.
	active := snap.InProgress > 0

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, open := <-ch:
			if !open {
				return
			}
			// Events are already JSON; forward them untouched.
			c.Writer.WriteString("data: ")
			c.Writer.WriteString(msg.Payload)
			c.Writer.WriteString("\n\n")
			c.Writer.Flush()
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendRefresh(c, reqCtx, examID)

		case <-keepAliveTicker.C:
			c.Writer.WriteString("data: {\"type\":\"ping\"}\n\n")
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendRefresh(c *gin.Context, parentCtx context.Context, examID uuid.UUID) {
	ctx, cancel := context.WithTimeout(parentCtx, refreshTimeout)
	defer cancel()

	snap, err := h.monitor.Snapshot(ctx, examID)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to refresh monitor snapshot")
		return
	}

	c.SSEvent("message", gin.H{
		"type": "refresh",
		"data": snap,
	})
	c.Writer.Flush()
}
