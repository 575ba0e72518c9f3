package domain

import "sort"

// ActivityStat summarises a user's logs for a single activity.
type ActivityStat struct {
	Name        string
	IconEmoji   string
	Unit        string
	Count       int
	TotalAmount float64
}

// AggregateByActivity groups logs by activity name, accumulating the count and
// summed amount per group. Groups are ordered by count descending; ties keep
// the order in which the activity first appeared.
func AggregateByActivity(logs []ActivityLog) []ActivityStat {
	index := make(map[string]int)
	stats := make([]ActivityStat, 0)
	for _, log := range logs {
		name := log.Activity.Name
		pos, ok := index[name]
		if !ok {
			pos = len(stats)
			index[name] = pos
			stats = append(stats, ActivityStat{
				Name:      name,
				IconEmoji: log.Activity.IconEmoji,
				Unit:      log.Activity.Unit,
			})
		}
		stats[pos].Count++
		stats[pos].TotalAmount += log.Amount
	}
	sort.SliceStable(stats, func(i, j int) bool {
		return stats[i].Count > stats[j].Count
	})
	return stats
}
