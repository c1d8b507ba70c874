package server

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"github.com/aradhanasaha/coffee-sub000/internal/push"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

type streamEnvelope struct {
	Source       string                     `json:"source"`
	Notification notifications.Notification `json:"notification"`
	Timestamp    time.Time                  `json:"timestamp"`
}

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
		return
	}
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	userID := c.GetString(userIDContextKey)

	items, err := h.inbox.List(c.Request.Context(), userID, notifications.ListOptions{Limit: limit, UnreadOnly: unreadOnly})
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.inbox.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "unread_count": unread})
}

func (h *httpHandler) handleUnreadCount(c *gin.Context) {
	unread, err := h.inbox.UnreadCount(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": unread})
}

func (h *httpHandler) handleMarkRead(c *gin.Context) {
	if err := h.inbox.MarkRead(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleMarkAllRead(c *gin.Context) {
	updated, err := h.inbox.MarkAllRead(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, userID)
	defer cleanup()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	c.SSEvent(realtimeEventHeartbeat, gin.H{"source": realtimeSourceBackend})
	c.Writer.Flush()

	heartbeat := time.NewTicker(h.heartbeatPeriod)
	defer heartbeat.Stop()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, streamEnvelope{
				Source:       realtimeSourceBackend,
				Notification: message.Notification,
				Timestamp:    message.Timestamp,
			})
			return true
		case <-heartbeat.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"source": realtimeSourceBackend})
			return true
		}
	})
	h.logger.Debug("notification stream closed", zap.String("user_id", userID))
}

func (h *httpHandler) handleSubscribe(c *gin.Context) {
	var registration push.Registration
	if err := c.ShouldBindJSON(&registration); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	registration.UserAgent = c.Request.UserAgent()
	subscription, err := h.subscriptions.Upsert(c.Request.Context(), c.GetString(userIDContextKey), registration)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, subscription)
}

func (h *httpHandler) handleUnsubscribe(c *gin.Context) {
	var request unsubscribeRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	removed, err := h.subscriptions.Revoke(c.Request.Context(), c.GetString(userIDContextKey), request.Endpoint)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}
