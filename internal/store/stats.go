package store

import (
	"time"

	"github.com/mj-member/mjmember/internal/models"
)

// MessageStats summarises the message backlog for moderators.
type MessageStats struct {
	Members       int64
	Messages      int64
	Unassigned    int64
	ByStatus      map[models.Status]int64
	ByTargetType  map[models.TargetType]int64
	LastMessageAt time.Time // zero when there are no messages
}

const messageStatsQuery = `
	SELECT status, target_type, COUNT(*),
		SUM(CASE WHEN assigned_to = 0 THEN 1 ELSE 0 END),
		MAX(created_at)
	FROM messages
	GROUP BY status, target_type
`

// statsRows is satisfied by both *sql.Rows and pgx.Rows.
type statsRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func collectStats(rows statsRows, members int64) (*MessageStats, error) {
	stats := &MessageStats{
		Members:      members,
		ByStatus:     make(map[models.Status]int64),
		ByTargetType: make(map[models.TargetType]int64),
	}

	for rows.Next() {
		var (
			status, targetType string
			count, unassigned  int64
			latest             any
		)
		if err := rows.Scan(&status, &targetType, &count, &unassigned, &latest); err != nil {
			return nil, err
		}

		stats.Messages += count
		stats.Unassigned += unassigned
		stats.ByStatus[models.Status(status)] += count
		stats.ByTargetType[models.TargetType(targetType)] += count
		if t := toTime(latest); t.After(stats.LastMessageAt) {
			stats.LastMessageAt = t
		}
	}
	return stats, rows.Err()
}
