package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/auth"
	"github.com/aradhanasaha/coffee-sub000/internal/feed"
	"github.com/aradhanasaha/coffee-sub000/internal/notifications"
	"github.com/aradhanasaha/coffee-sub000/internal/push"
	"github.com/aradhanasaha/coffee-sub000/internal/serviceerror"
	"github.com/aradhanasaha/coffee-sub000/internal/social"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	userIDContextKey       = "brewlog_user_id"
	accessTokenQueryParam  = "access_token"
	defaultHeartbeatPeriod = 25 * time.Second
	internalRequestTimeout = 2 * time.Minute
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingProfileService   = errors.New("profile service dependency required")
	errMissingFeedService      = errors.New("feed service dependency required")
	errMissingSocialService    = errors.New("social service dependency required")
	errMissingInbox            = errors.New("inbox dependency required")
	errMissingSubscriptions    = errors.New("subscription store dependency required")
	errMissingDispatcher       = errors.New("push dispatcher dependency required")
	errMissingDispatchAuth     = errors.New("dispatch secret verifier dependency required")
	errMissingSweeper          = errors.New("sweeper dependency required")
	errInvalidAuthorization    = errors.New("authorization header missing or invalid")
)

type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	ValidateToken(token string) (auth.SessionClaims, error)
}

type ProfileService interface {
	EnsureProfile(ctx context.Context, claims auth.SessionClaims) (string, error)
}

type FeedService interface {
	RankFeed(ctx context.Context, viewerID string, filter feed.Filter) ([]feed.Entry, error)
}

type SocialService interface {
	CreateLog(ctx context.Context, authorID string, input social.LogInput) (social.CoffeeLog, error)
	DeleteLog(ctx context.Context, authorID, logID string) error
	ToggleLike(ctx context.Context, userID, logID string) (bool, error)
	Follow(ctx context.Context, followerID, followedID string) error
	Unfollow(ctx context.Context, followerID, followedID string) error
	CreateList(ctx context.Context, ownerID, title string) (social.CoffeeList, error)
	SaveList(ctx context.Context, userID, listID string) error
}

type InboxService interface {
	List(ctx context.Context, recipientID string, options notifications.ListOptions) ([]notifications.Notification, error)
	MarkRead(ctx context.Context, recipientID, notificationID string) error
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	UnreadCount(ctx context.Context, recipientID string) (int64, error)
}

type SubscriptionService interface {
	Upsert(ctx context.Context, userID string, registration push.Registration) (push.Subscription, error)
	Revoke(ctx context.Context, userID, endpoint string) (bool, error)
}

type PushDispatcher interface {
	Dispatch(ctx context.Context, notification notifications.Notification) (push.Report, error)
}

type SecretVerifier interface {
	Verify(presented string) error
}

type SweepRunner interface {
	Run(ctx context.Context) (int, error)
}

type Dependencies struct {
	Sessions       SessionValidator
	Profiles       ProfileService
	Feed           FeedService
	Social         SocialService
	Inbox          InboxService
	Subscriptions  SubscriptionService
	Dispatcher     PushDispatcher
	DispatchAuth   SecretVerifier
	Sweeper        SweepRunner
	Realtime       *RealtimeDispatcher
	VAPIDPublicKey string
	MetricsHandler http.Handler
	Logger         *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errMissingSessionValidator
	case deps.Profiles == nil:
		return nil, errMissingProfileService
	case deps.Feed == nil:
		return nil, errMissingFeedService
	case deps.Social == nil:
		return nil, errMissingSocialService
	case deps.Inbox == nil:
		return nil, errMissingInbox
	case deps.Subscriptions == nil:
		return nil, errMissingSubscriptions
	case deps.Dispatcher == nil:
		return nil, errMissingDispatcher
	case deps.DispatchAuth == nil:
		return nil, errMissingDispatchAuth
	case deps.Sweeper == nil:
		return nil, errMissingSweeper
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		sessions:        deps.Sessions,
		profiles:        deps.Profiles,
		feed:            deps.Feed,
		social:          deps.Social,
		inbox:           deps.Inbox,
		subscriptions:   deps.Subscriptions,
		dispatcher:      deps.Dispatcher,
		dispatchAuth:    deps.DispatchAuth,
		sweeper:         deps.Sweeper,
		realtime:        realtime,
		vapidPublicKey:  deps.VAPIDPublicKey,
		logger:          logger,
		heartbeatPeriod: defaultHeartbeatPeriod,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}
	router.GET("/push/vapid-public-key", handler.handleVAPIDPublicKey)
	router.GET("/feed", handler.identifyViewer, handler.handleFeed)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/logs", handler.handleCreateLog)
	protected.DELETE("/logs/:id", handler.handleDeleteLog)
	protected.POST("/logs/:id/like", handler.handleToggleLike)
	protected.POST("/users/:id/follow", handler.handleFollow)
	protected.DELETE("/users/:id/follow", handler.handleUnfollow)
	protected.POST("/lists", handler.handleCreateList)
	protected.POST("/lists/:id/save", handler.handleSaveList)
	protected.GET("/notifications", handler.handleListNotifications)
	protected.GET("/notifications/unread-count", handler.handleUnreadCount)
	protected.GET("/notifications/stream", handler.handleNotificationStream)
	protected.POST("/notifications/read-all", handler.handleMarkAllRead)
	protected.POST("/notifications/:id/read", handler.handleMarkRead)
	protected.POST("/push/subscriptions", handler.handleSubscribe)
	protected.DELETE("/push/subscriptions", handler.handleUnsubscribe)

	internal := router.Group("/internal")
	internal.Use(handler.requireDispatchSecret)
	internal.POST("/dispatch", handler.handleDispatch)
	internal.POST("/sweep", handler.handleSweep)

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOriginFunc:  func(string) bool { return true },
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Last-Event-ID"},
		ExposeHeaders:    []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	sessions        SessionValidator
	profiles        ProfileService
	feed            FeedService
	social          SocialService
	inbox           InboxService
	subscriptions   SubscriptionService
	dispatcher      PushDispatcher
	dispatchAuth    SecretVerifier
	sweeper         SweepRunner
	realtime        *RealtimeDispatcher
	vapidPublicKey  string
	logger          *zap.Logger
	heartbeatPeriod time.Duration
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.validate(c.Request)
	if err != nil {
		h.logTokenFailure(err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if !h.bindUser(c, claims) {
		return
	}
	c.Next()
}

// identifyViewer resolves the caller when credentials are present and lets anonymous requests through.
func (h *httpHandler) identifyViewer(c *gin.Context) {
	claims, err := h.validate(c.Request)
	if errors.Is(err, auth.ErrMissingSessionToken) {
		c.Next()
		return
	}
	if err != nil {
		h.logTokenFailure(err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if !h.bindUser(c, claims) {
		return
	}
	c.Next()
}

func (h *httpHandler) validate(r *http.Request) (auth.SessionClaims, error) {
	if token := strings.TrimSpace(r.URL.Query().Get(accessTokenQueryParam)); token != "" && r.Header.Get("Authorization") == "" {
		return h.sessions.ValidateToken(token)
	}
	return h.sessions.ValidateRequest(r)
}

func (h *httpHandler) bindUser(c *gin.Context, claims auth.SessionClaims) bool {
	userID, err := h.profiles.EnsureProfile(c.Request.Context(), claims)
	if err != nil {
		h.logger.Error("failed to resolve user profile", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "profile_unavailable"})
		return false
	}
	c.Set(userIDContextKey, userID)
	return true
}

func (h *httpHandler) logTokenFailure(err error) {
	if errors.Is(err, auth.ErrMissingSessionToken) {
		h.logger.Debug("request without session token", zap.Error(errInvalidAuthorization))
		return
	}
	if errors.Is(err, auth.ErrExpiredSessionToken) {
		h.logger.Info("token validation failed", zap.Error(err))
		return
	}
	h.logger.Warn("token validation failed", zap.Error(err))
}

func (h *httpHandler) requireDispatchSecret(c *gin.Context) {
	if err := h.dispatchAuth.Verify(c.GetHeader(push.DispatchSecretHeader)); err != nil {
		h.logger.Warn("rejected internal invocation",
			zap.String("path", c.FullPath()),
			zap.String("remote_addr", c.ClientIP()))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Next()
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal_error"
	switch {
	case errors.Is(err, social.ErrLogNotFound),
		errors.Is(err, social.ErrListNotFound),
		errors.Is(err, notifications.ErrNotFound):
		status, message = http.StatusNotFound, "not_found"
	case errors.Is(err, social.ErrNotAuthor):
		status, message = http.StatusForbidden, "forbidden"
	case errors.Is(err, social.ErrRejectedContent):
		status, message = http.StatusUnprocessableEntity, "rejected_content"
	case errors.Is(err, social.ErrSelfFollow),
		errors.Is(err, social.ErrInvalidLog),
		errors.Is(err, push.ErrInvalidSubscription):
		status, message = http.StatusBadRequest, "invalid_request"
	}
	body := gin.H{"error": message}
	if code := errorCode(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}

func errorCode(err error) string {
	code, _ := serviceerror.CodeOf(err)
	return code
}
