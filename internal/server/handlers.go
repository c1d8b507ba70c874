package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/aradhanasaha/coffee-sub000/internal/feed"
	"github.com/aradhanasaha/coffee-sub000/internal/social"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type createListRequest struct {
	Title string `json:"title"`
}

func (h *httpHandler) handleFeed(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
		return
	}
	viewerID := c.GetString(userIDContextKey)
	entries, err := h.feed.RankFeed(c.Request.Context(), viewerID, feed.Filter{
		City:  c.Query("city"),
		Limit: limit,
	})
	if err != nil {
		h.logger.Warn("feed ranking failed; serving empty feed",
			zap.String("viewer_id", viewerID),
			zap.Error(err))
		body := gin.H{"items": []feed.Entry{}, "error": "feed_unavailable"}
		if code := errorCode(err); code != "" {
			body["code"] = code
		}
		c.JSON(http.StatusOK, body)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": entries})
}

func (h *httpHandler) handleCreateLog(c *gin.Context) {
	var input social.LogInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	entry, err := h.social.CreateLog(c.Request.Context(), c.GetString(userIDContextKey), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (h *httpHandler) handleDeleteLog(c *gin.Context) {
	if err := h.social.DeleteLog(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleToggleLike(c *gin.Context) {
	liked, err := h.social.ToggleLike(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked})
}

func (h *httpHandler) handleFollow(c *gin.Context) {
	if err := h.social.Follow(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": true})
}

func (h *httpHandler) handleUnfollow(c *gin.Context) {
	if err := h.social.Unfollow(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false})
}

func (h *httpHandler) handleCreateList(c *gin.Context) {
	var request createListRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_json"})
		return
	}
	list, err := h.social.CreateList(c.Request.Context(), c.GetString(userIDContextKey), request.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, list)
}

func (h *httpHandler) handleSaveList(c *gin.Context) {
	if err := h.social.SaveList(c.Request.Context(), c.GetString(userIDContextKey), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": true})
}

func (h *httpHandler) handleVAPIDPublicKey(c *gin.Context) {
	if h.vapidPublicKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "push_disabled"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.vapidPublicKey})
}

func (h *httpHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), internalRequestTimeout)
}

func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, strconv.ErrSyntax
	}
	return limit, nil
}
