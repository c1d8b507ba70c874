package feed

import (
	"testing"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/social"
)

var baseTime = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func candidate(id, author, city string, createdAt time.Time) social.Candidate {
	return social.Candidate{LogID: id, AuthorID: author, PlaceName: id, City: city, CreatedAt: createdAt}
}

func logIDs(candidates []social.Candidate) []string {
	result := make([]string, 0, len(candidates))
	for _, c := range candidates {
		result = append(result, c.LogID)
	}
	return result
}

func TestBoostWindowBoundary(t *testing.T) {
	followed := map[string]struct{}{"A": {}}
	boosted := candidate("followed", "A", "", baseTime)

	testCases := []struct {
		name         string
		strangerAt   time.Time
		expectedHead string
	}{
		{name: "stranger-just-inside-window", strangerAt: baseTime.Add(11*time.Hour + 59*time.Minute), expectedHead: "followed"},
		{name: "stranger-just-outside-window", strangerAt: baseTime.Add(12*time.Hour + time.Minute), expectedHead: "stranger"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			pool := []social.Candidate{candidate("stranger", "S", "", testCase.strangerAt), boosted}
			ranked := Rank(pool, "V", followed, 0)
			if ranked[0].LogID != testCase.expectedHead {
				t.Fatalf("expected %s first, got %v", testCase.expectedHead, logIDs(ranked))
			}
		})
	}
}

func TestSortKey(t *testing.T) {
	followed := map[string]struct{}{"A": {}}
	base := baseTime.UnixMilli()
	boost := BoostWindow.Milliseconds()

	testCases := []struct {
		name     string
		author   string
		viewer   string
		expected int64
	}{
		{name: "followed-author", author: "A", viewer: "V", expected: base + boost},
		{name: "own-post", author: "V", viewer: "V", expected: base + boost},
		{name: "stranger", author: "S", viewer: "V", expected: base},
		{name: "anonymous-viewer", author: "A", viewer: "", expected: base},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := SortKey(candidate("x", testCase.author, "", baseTime), testCase.viewer, followed)
			if got != testCase.expected {
				t.Fatalf("expected %d, got %d", testCase.expected, got)
			}
		})
	}
}

func TestRankKeepsFetchOrderForTies(t *testing.T) {
	pool := []social.Candidate{
		candidate("first", "S", "", baseTime),
		candidate("second", "Q", "", baseTime),
		candidate("third", "R", "", baseTime),
	}
	ranked := Rank(pool, "", nil, 0)
	got := logIDs(ranked)
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRankTruncatesWithoutMutatingInput(t *testing.T) {
	pool := []social.Candidate{
		candidate("old", "S", "", baseTime.Add(-2*time.Hour)),
		candidate("new", "S", "", baseTime),
	}
	ranked := Rank(pool, "", nil, 1)
	if len(ranked) != 1 || ranked[0].LogID != "new" {
		t.Fatalf("expected only the newest log, got %v", logIDs(ranked))
	}
	if pool[0].LogID != "old" {
		t.Fatalf("input pool must not be reordered")
	}
}

func TestApplyCityPreference(t *testing.T) {
	pool := []social.Candidate{
		candidate("pune", "A", "Pune", baseTime),
		candidate("delhi", "B", "Delhi", baseTime),
		candidate("nowhere", "C", "", baseTime),
	}

	testCases := []struct {
		name     string
		city     string
		expected []string
	}{
		{name: "no-preference", city: "", expected: []string{"pune", "delhi", "nowhere"}},
		{name: "matching-city", city: "Pune", expected: []string{"pune"}},
		{name: "case-and-space-insensitive", city: "  pUNE ", expected: []string{"pune"}},
		{name: "no-match-falls-back", city: "Mumbai", expected: []string{"pune", "delhi", "nowhere"}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			got := logIDs(ApplyCityPreference(pool, testCase.city))
			if len(got) != len(testCase.expected) {
				t.Fatalf("expected %v, got %v", testCase.expected, got)
			}
			for i := range got {
				if got[i] != testCase.expected[i] {
					t.Fatalf("expected %v, got %v", testCase.expected, got)
				}
			}
		})
	}
}
