package feed

import (
	"context"
	"errors"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/metrics"
	"github.com/aradhanasaha/coffee-sub000/internal/serviceerror"
	"github.com/aradhanasaha/coffee-sub000/internal/social"
	"go.uber.org/zap"
)

const (
	opServiceNew = "feed.service.new"
	opRankFeed   = "feed.rank"

	defaultFetchMultiplier = 3
)

var (
	errMissingContentStore = errors.New("feed: content store is required")
	errMissingFollowGraph  = errors.New("feed: follow graph is required")
	errMissingNameResolver = errors.New("feed: name resolver is required")
)

// ContentStore supplies candidate logs newest first.
type ContentStore interface {
	CandidateLogs(ctx context.Context, limit int) ([]social.Candidate, error)
}

// FollowGraph answers who a viewer follows.
type FollowGraph interface {
	FollowedUserIDs(ctx context.Context, followerID string) ([]string, error)
}

// NameResolver batch-resolves display names.
type NameResolver interface {
	DisplayNames(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Filter narrows a feed request. Zero values mean no preference and no limit.
type Filter struct {
	City  string
	Limit int
}

// Entry is a ranked coffee log ready to render.
type Entry struct {
	LogID      string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	PlaceName  string    `json:"place_name"`
	LocationID *string   `json:"location_id"`
	City       string    `json:"city"`
	Rating     int       `json:"rating"`
	Review     *string   `json:"review"`
	PhotoURL   *string   `json:"photo_url"`
	CreatedAt  time.Time `json:"created_at"`
}

type ServiceConfig struct {
	Content         ContentStore
	Follows         FollowGraph
	Names           NameResolver
	FetchMultiplier int
	MaxLimit        int
	Clock           func() time.Time
	Logger          *zap.Logger
	Metrics         *metrics.Collectors
}

// Service produces the public feed.
type Service struct {
	content         ContentStore
	follows         FollowGraph
	names           NameResolver
	fetchMultiplier int
	maxLimit        int
	clock           func() time.Time
	logger          *zap.Logger
	metrics         *metrics.Collectors
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Content == nil {
		return nil, serviceerror.New(opServiceNew, "missing_content_store", errMissingContentStore)
	}
	if cfg.Follows == nil {
		return nil, serviceerror.New(opServiceNew, "missing_follow_graph", errMissingFollowGraph)
	}
	if cfg.Names == nil {
		return nil, serviceerror.New(opServiceNew, "missing_name_resolver", errMissingNameResolver)
	}
	multiplier := cfg.FetchMultiplier
	if multiplier <= 0 {
		multiplier = defaultFetchMultiplier
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		content:         cfg.Content,
		follows:         cfg.Follows,
		names:           cfg.Names,
		fetchMultiplier: multiplier,
		maxLimit:        cfg.MaxLimit,
		clock:           clock,
		logger:          logger,
		metrics:         cfg.Metrics,
	}, nil
}

// RankFeed returns the feed for viewerID, or the anonymous feed when viewerID is empty.
func (s *Service) RankFeed(ctx context.Context, viewerID string, filter Filter) ([]Entry, error) {
	started := s.clock()
	defer func() {
		s.metrics.ObserveFeed(viewerID == "", s.clock().Sub(started))
	}()

	limit := filter.Limit
	if s.maxLimit > 0 && (limit <= 0 || limit > s.maxLimit) {
		limit = s.maxLimit
	}
	fetchLimit := 0
	if limit > 0 {
		fetchLimit = limit * s.fetchMultiplier
	}

	pool, err := s.content.CandidateLogs(ctx, fetchLimit)
	if err != nil {
		return nil, serviceerror.New(opRankFeed, "candidate_query_failed", err)
	}
	if len(pool) == 0 {
		return []Entry{}, nil
	}
	pool = ApplyCityPreference(pool, filter.City)

	var followed map[string]struct{}
	if viewerID != "" {
		followedIDs, err := s.follows.FollowedUserIDs(ctx, viewerID)
		if err != nil {
			return nil, serviceerror.New(opRankFeed, "follow_query_failed", err)
		}
		followed = make(map[string]struct{}, len(followedIDs))
		for _, id := range followedIDs {
			followed[id] = struct{}{}
		}
	}

	ranked := Rank(pool, viewerID, followed, limit)

	authorIDs := make([]string, 0, len(ranked))
	for _, candidate := range ranked {
		authorIDs = append(authorIDs, candidate.AuthorID)
	}
	names, err := s.names.DisplayNames(ctx, authorIDs)
	if err != nil {
		return nil, serviceerror.New(opRankFeed, "name_lookup_failed", err)
	}

	entries := make([]Entry, 0, len(ranked))
	for _, candidate := range ranked {
		entry := Entry{
			LogID:      candidate.LogID,
			AuthorID:   candidate.AuthorID,
			AuthorName: names[candidate.AuthorID],
			PlaceName:  candidate.PlaceName,
			LocationID: candidate.LocationID,
			City:       candidate.City,
			Rating:     candidate.Rating,
			Review:     candidate.Review,
			PhotoURL:   candidate.PhotoURL,
			CreatedAt:  candidate.CreatedAt,
		}
		if candidate.PhotoRemovedAt != nil {
			entry.PhotoURL = nil
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
