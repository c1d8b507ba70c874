package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/aradhanasaha/coffee-sub000/internal/social"
)

// BoostWindow is how far into the future a post by the viewer or someone they follow is shifted.
const BoostWindow = 12 * time.Hour

// ApplyCityPreference keeps the logs located in city when at least one exists and
// returns the pool unchanged otherwise. Matching ignores case and surrounding space.
func ApplyCityPreference(pool []social.Candidate, city string) []social.Candidate {
	city = strings.TrimSpace(city)
	if city == "" {
		return pool
	}
	matching := make([]social.Candidate, 0, len(pool))
	for _, candidate := range pool {
		if strings.EqualFold(strings.TrimSpace(candidate.City), city) {
			matching = append(matching, candidate)
		}
	}
	if len(matching) == 0 {
		return pool
	}
	return matching
}

// SortKey returns the creation time in milliseconds, shifted by BoostWindow when the
// author is the viewer or is followed by the viewer.
func SortKey(candidate social.Candidate, viewerID string, followed map[string]struct{}) int64 {
	key := candidate.CreatedAt.UnixMilli()
	if viewerID == "" {
		return key
	}
	if candidate.AuthorID == viewerID {
		return key + BoostWindow.Milliseconds()
	}
	if _, ok := followed[candidate.AuthorID]; ok {
		return key + BoostWindow.Milliseconds()
	}
	return key
}

// Rank orders the pool by descending sort key, keeping fetch order for equal keys,
// and truncates to limit when limit is positive. The input slice is not modified.
func Rank(pool []social.Candidate, viewerID string, followed map[string]struct{}, limit int) []social.Candidate {
	ranked := make([]social.Candidate, len(pool))
	copy(ranked, pool)

	keys := make(map[string]int64, len(ranked))
	for _, candidate := range ranked {
		keys[candidate.LogID] = SortKey(candidate, viewerID, followed)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return keys[ranked[i].LogID] > keys[ranked[j].LogID]
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
