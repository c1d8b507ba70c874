package feed

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/serviceerror"
	"github.com/aradhanasaha/coffee-sub000/internal/social"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type staticContent struct {
	candidates []social.Candidate
	err        error
	lastLimit  int
}

func (s *staticContent) CandidateLogs(_ context.Context, limit int) ([]social.Candidate, error) {
	s.lastLimit = limit
	if s.err != nil {
		return nil, s.err
	}
	if limit > 0 && len(s.candidates) > limit {
		return s.candidates[:limit], nil
	}
	return s.candidates, nil
}

type staticGraph map[string][]string

func (g staticGraph) FollowedUserIDs(_ context.Context, followerID string) ([]string, error) {
	return g[followerID], nil
}

type countingNames struct {
	names map[string]string
	calls int
}

func (n *countingNames) DisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	n.calls++
	result := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if name, ok := n.names[id]; ok {
			result[id] = name
		}
	}
	return result, nil
}

func newTestService(t *testing.T, content ContentStore, graph FollowGraph, names NameResolver) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Content: content, Follows: graph, Names: names})
	if err != nil {
		t.Fatalf("failed to build feed service: %v", err)
	}
	return service
}

func TestRankFeedPuneScenario(t *testing.T) {
	now := baseTime
	content := &staticContent{candidates: []social.Candidate{
		candidate("q-delhi", "Q", "Delhi", now.Add(-30*time.Minute)),
		candidate("s-pune", "S", "Pune", now.Add(-time.Hour)),
		candidate("a-pune", "A", "Pune", now.Add(-10*time.Hour)),
	}}
	names := &countingNames{names: map[string]string{"A": "Asha", "S": "Sam"}}
	service := newTestService(t, content, staticGraph{"V": {"A"}}, names)

	entries, err := service.RankFeed(context.Background(), "V", Filter{City: "Pune"})
	if err != nil {
		t.Fatalf("rank feed failed: %v", err)
	}
	if len(entries) != 2 || entries[0].LogID != "a-pune" || entries[1].LogID != "s-pune" {
		t.Fatalf("expected [a-pune s-pune], got %#v", entries)
	}
	if entries[0].AuthorName != "Asha" || entries[1].AuthorName != "Sam" {
		t.Fatalf("expected resolved author names, got %q and %q", entries[0].AuthorName, entries[1].AuthorName)
	}
	if names.calls != 1 {
		t.Fatalf("expected one batched name lookup, got %d", names.calls)
	}
}

func TestRankFeedAnonymousIsPureRecency(t *testing.T) {
	content := &staticContent{candidates: []social.Candidate{
		candidate("newer", "S", "", baseTime),
		candidate("older", "A", "", baseTime.Add(-time.Hour)),
	}}
	service := newTestService(t, content, staticGraph{"": {"A"}}, &countingNames{})

	entries, err := service.RankFeed(context.Background(), "", Filter{})
	if err != nil {
		t.Fatalf("rank feed failed: %v", err)
	}
	if entries[0].LogID != "newer" {
		t.Fatalf("anonymous feed must not boost, got %#v", entries)
	}
}

func TestRankFeedScopesFetchByMultiplier(t *testing.T) {
	content := &staticContent{}
	service := newTestService(t, content, staticGraph{}, &countingNames{})

	entries, err := service.RankFeed(context.Background(), "", Filter{Limit: 5})
	if err != nil {
		t.Fatalf("rank feed failed: %v", err)
	}
	if entries == nil || len(entries) != 0 {
		t.Fatalf("expected empty non-nil feed, got %#v", entries)
	}
	if content.lastLimit != 15 {
		t.Fatalf("expected fetch limit 15, got %d", content.lastLimit)
	}
}

func TestRankFeedStripsModeratedPhotos(t *testing.T) {
	photo := "https://img.example/p.jpg"
	removedAt := baseTime
	hidden := candidate("hidden", "S", "", baseTime)
	hidden.PhotoURL = &photo
	hidden.PhotoRemovedAt = &removedAt
	visible := candidate("visible", "S", "", baseTime.Add(-time.Minute))
	visible.PhotoURL = &photo

	service := newTestService(t, &staticContent{candidates: []social.Candidate{hidden, visible}}, staticGraph{}, &countingNames{})
	entries, err := service.RankFeed(context.Background(), "", Filter{})
	if err != nil {
		t.Fatalf("rank feed failed: %v", err)
	}
	if entries[0].PhotoURL != nil {
		t.Fatalf("expected moderated photo to be stripped")
	}
	if entries[1].PhotoURL == nil || *entries[1].PhotoURL != photo {
		t.Fatalf("expected unmoderated photo to be kept")
	}
}

func TestRankFeedReportsStoreFailure(t *testing.T) {
	service := newTestService(t, &staticContent{err: errors.New("connection reset")}, staticGraph{}, &countingNames{})

	entries, err := service.RankFeed(context.Background(), "V", Filter{})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if entries != nil {
		t.Fatalf("expected no entries on failure")
	}
	code, ok := serviceerror.CodeOf(err)
	if !ok || code != "feed.rank.candidate_query_failed" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestRankFeedExcludesSoftDeletedLogs(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "feed.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(social.Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	deletedAt := baseTime
	rows := []social.CoffeeLog{
		{LogID: "live", AuthorID: "S", PlaceName: "Live", Rating: 4, CreatedAt: baseTime.Add(-time.Hour)},
		{LogID: "gone-followed", AuthorID: "A", PlaceName: "Gone", Rating: 5, CreatedAt: baseTime, DeletedAt: &deletedAt},
		{LogID: "gone-own", AuthorID: "V", PlaceName: "Mine", Rating: 5, CreatedAt: baseTime, DeletedAt: &deletedAt},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	store, err := social.NewStore(db)
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	service := newTestService(t, store, staticGraph{"V": {"A"}}, &countingNames{})

	for _, filter := range []Filter{{}, {City: "Pune"}, {Limit: 1}} {
		entries, err := service.RankFeed(context.Background(), "V", filter)
		if err != nil {
			t.Fatalf("rank feed failed: %v", err)
		}
		if len(entries) != 1 || entries[0].LogID != "live" {
			t.Fatalf("filter %+v: expected only the live log, got %#v", filter, entries)
		}
	}
}
