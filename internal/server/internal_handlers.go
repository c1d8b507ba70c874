package server

import (
	"net/http"
	"strings"

	"github.com/aradhanasaha/coffee-sub000/internal/delivery"
	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"github.com/aradhanasaha/coffee-sub000/internal/push"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const webhookInsertType = "INSERT"

// handleDispatch accepts a database-webhook shaped insert event and pushes the
// notification to every subscription of its recipient.
func (h *httpHandler) handleDispatch(c *gin.Context) {
	var event delivery.WebhookEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	if !strings.EqualFold(event.Type, webhookInsertType) || event.Table != (notifications.Notification{}).TableName() {
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}
	record := event.Record
	if strings.TrimSpace(record.NotificationID) == "" || strings.TrimSpace(record.RecipientID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_record"})
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()
	report, err := h.dispatcher.Dispatch(ctx, record)
	if err != nil {
		h.logger.Error("push dispatch failed",
			zap.String("notification_id", record.NotificationID),
			zap.Error(err))
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notification_id": report.NotificationID,
		"delivered":       report.Count(push.OutcomeDelivered),
		"pruned":          report.Count(push.OutcomePruned),
		"failed":          report.Count(push.OutcomeFailed),
		"results":         report.Results,
	})
}

func (h *httpHandler) handleSweep(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()
	nudged, err := h.sweeper.Run(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nudged": nudged})
}
