package models

import "time"

// DailyDecisionCount buckets moderation decisions by day.
type DailyDecisionCount struct {
	Day      time.Time `db:"day" json:"day"`
	Approved int       `db:"approved" json:"approved"`
	Denied   int       `db:"denied" json:"denied"`
}

// ModerationStats aggregates queue health for the moderator dashboard.
type ModerationStats struct {
	Pending          []PendingCount       `json:"pending"`
	Decisions        []DailyDecisionCount `json:"decisions"`
	AvgDecisionHours float64              `json:"avg_decision_hours"`
	GeneratedAt      time.Time            `json:"generated_at"`
}
