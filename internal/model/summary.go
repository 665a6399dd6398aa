package model

import "time"

// DailySummary is the once-per-date aggregate of approved meals.
// The unique BusinessDate is what makes the afternoon job idempotent.
type DailySummary struct {
	ID             uint   `gorm:"primaryKey"`
	BusinessDate   string `gorm:"type:char(10);not null;uniqueIndex"`
	BreakfastCount int    `gorm:"not null"`
	LunchCount     int    `gorm:"not null"`
	SnackCount     int    `gorm:"not null"`
	Total          int    `gorm:"not null"`
	// Delivered is set once the summary was queued for the spreadsheet webhook
	Delivered bool `gorm:"not null;default:false"`
	CreatedAt time.Time
}

// JobRun marks a scheduler job as done for one period (a date or an ISO week).
type JobRun struct {
	ID          uint      `gorm:"primaryKey"`
	Job         string    `gorm:"type:varchar(40);not null;uniqueIndex:idx_job_period,priority:1"`
	PeriodKey   string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_job_period,priority:2"`
	Detail      string    `gorm:"type:text"`
	CompletedAt time.Time `gorm:"not null"`
}
