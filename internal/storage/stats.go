package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	dateLayout = "2006-01-02"
	statsDays  = 14
)

// DailyCount is the number of events on one UTC calendar day.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// ReviewStats summarizes the review log.
type ReviewStats struct {
	TodayReviewed int          `json:"todayReviewed"`
	Streak        int          `json:"streak"` // consecutive days with reviews, ending today
	LastReviewed  *time.Time   `json:"lastReviewed"`
	DailyCounts   []DailyCount `json:"dailyCounts"`
}

// ReviewStats computes today's count, the day streak and the last fourteen
// days of review counts.
func (db *DB) ReviewStats(ctx context.Context, now time.Time) (ReviewStats, error) {
	now = now.UTC()
	var stats ReviewStats

	var last sql.NullString
	if err := db.q.QueryRowContext(ctx, `SELECT MAX(reviewed_at) FROM review_logs`).Scan(&last); err != nil {
		return stats, fmt.Errorf("failed to read last review time: %w", err)
	}
	if last.Valid {
		t, err := parseTime(last.String)
		if err != nil {
			return stats, err
		}
		stats.LastReviewed = &t
	}

	first := now.AddDate(0, 0, -(statsDays - 1))
	rows, err := db.q.QueryContext(ctx, `
		SELECT substr(reviewed_at, 1, 10) AS day, COUNT(*)
		FROM review_logs
		WHERE reviewed_at >= ?
		GROUP BY day
	`, first.Format(dateLayout))
	if err != nil {
		return stats, fmt.Errorf("failed to count reviews per day: %w", err)
	}
	counts, err := collectDailyCounts(rows)
	if err != nil {
		return stats, err
	}

	for i := 0; i < statsDays; i++ {
		key := first.AddDate(0, 0, i).Format(dateLayout)
		stats.DailyCounts = append(stats.DailyCounts, DailyCount{Date: key, Count: counts[key]})
	}
	stats.TodayReviewed = counts[now.Format(dateLayout)]

	for i := len(stats.DailyCounts) - 1; i >= 0; i-- {
		if stats.DailyCounts[i].Count == 0 {
			break
		}
		stats.Streak++
	}
	return stats, nil
}

// DueForecast counts unsuspended reviews due on each of the next days,
// starting with now's UTC day.
func (db *DB) DueForecast(ctx context.Context, now time.Time, days int) ([]DailyCount, error) {
	if days <= 0 {
		return nil, nil
	}
	start := now.UTC().Truncate(24 * time.Hour)
	end := endOfDay(start.AddDate(0, 0, days-1))

	rows, err := db.q.QueryContext(ctx, `
		SELECT substr(due, 1, 10) AS day, COUNT(*)
		FROM reviews
		WHERE suspended = 0 AND due >= ? AND due <= ?
		GROUP BY day
	`, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to compute due forecast: %w", err)
	}
	counts, err := collectDailyCounts(rows)
	if err != nil {
		return nil, err
	}

	forecast := make([]DailyCount, days)
	for i := range forecast {
		key := start.AddDate(0, 0, i).Format(dateLayout)
		forecast[i] = DailyCount{Date: key, Count: counts[key]}
	}
	return forecast, nil
}

func collectDailyCounts(rows *sql.Rows) (map[string]int, error) {
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var (
			day string
			n   int
		)
		if err := rows.Scan(&day, &n); err != nil {
			return nil, fmt.Errorf("failed to scan daily count: %w", err)
		}
		counts[day] = n
	}
	return counts, rows.Err()
}
