package model

import "time"

// DailyUsage holds one student's counters for one facility-local calendar day.
// A row for a new day is created lazily on first resolution, which is what
// makes midnight a reset without touching any row.
// Invariant: MealsUsed == BreakfastUsed + LunchUsed + SnackUsed.
type DailyUsage struct {
	ID            uint      `gorm:"primaryKey"`
	StudentID     string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_usage_student_date,priority:1"`
	BusinessDate  string    `gorm:"type:char(10);not null;uniqueIndex:idx_usage_student_date,priority:2;index"`
	MealsUsed     int       `gorm:"not null;default:0"`
	BreakfastUsed int       `gorm:"not null;default:0"`
	LunchUsed     int       `gorm:"not null;default:0"`
	SnackUsed     int       `gorm:"not null;default:0"`
	LastResetAt   time.Time `gorm:"not null"`
	LastMealAt    *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TableName pins the table name across drivers.
func (DailyUsage) TableName() string { return "daily_usages" }

// ByType returns the per-meal-type counters.
func (u *DailyUsage) ByType() map[MealType]int {
	return map[MealType]int{
		MealBreakfast: u.BreakfastUsed,
		MealLunch:     u.LunchUsed,
		MealSnack:     u.SnackUsed,
	}
}

// UsageColumn maps a meal type to its counter column.
func UsageColumn(m MealType) string {
	switch m {
	case MealBreakfast:
		return "breakfast_used"
	case MealLunch:
		return "lunch_used"
	case MealSnack:
		return "snack_used"
	}
	return ""
}
