package domain

import "sort"

// AssignRanks returns a copy of entries sorted by TotalPoints descending with
// Rank set to 1 + position. Entries with equal totals keep their input order.
func AssignRanks(entries []LeaderboardEntry) []LeaderboardEntry {
	ranked := make([]LeaderboardEntry, len(entries))
	copy(ranked, entries)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].TotalPoints > ranked[j].TotalPoints
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// RankOf reports the 1-based position of userID within an already ranked
// sequence, or 0 when the user is not present.
func RankOf(ranked []LeaderboardEntry, userID string) int {
	for i, entry := range ranked {
		if entry.ID == userID {
			return i + 1
		}
	}
	return 0
}

// RankByTotals ranks ids by their totals (missing totals count as zero) and
// returns the rank of target, or 0 if target is not among ids.
func RankByTotals(ids []string, totals map[string]UserTotal, target string) int {
	entries := make([]LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, LeaderboardEntry{ID: id, TotalPoints: totals[id].Points})
	}
	return RankOf(AssignRanks(entries), target)
}
