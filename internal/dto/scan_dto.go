package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ScanRequest struct {
	CardID string `json:"card_id" validate:"required,min=4,max=64"`
	// StationID is only honoured for admin tokens; cashiers use their own station
	StationID string `json:"station_id" validate:"omitempty,max=40"`
}

type LookupRequest struct {
	StudentID string `json:"student_id" validate:"required,min=1,max=20"`
	StationID string `json:"station_id" validate:"omitempty,max=40"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// Verdict is the display-ready eligibility result. It never carries
// ciphertext.
type Verdict struct {
	ResolutionID     string   `json:"resolution_id"`
	StudentID        string   `json:"student_id"`
	Name             string   `json:"name"`
	GradeLevel       int      `json:"grade_level"`
	MealPlanType     string   `json:"meal_plan_type"`
	AllowedMealTypes []string `json:"allowed_meal_types"`
	// Remaining is null for unlimited plans
	Remaining      *int           `json:"remaining"`
	Unlimited      bool           `json:"unlimited"`
	MealsUsedToday int            `json:"meals_used_today"`
	MealsByType    map[string]int `json:"meals_by_type"`
	Eligible       bool           `json:"eligible"`
	Reason         string         `json:"reason,omitempty"`
	ReasonText     string         `json:"reason_text,omitempty"`
	SuggestedMeal  string         `json:"suggested_meal_type,omitempty"`
	ResolvedAt     time.Time      `json:"resolved_at"`
}

type ScanResponse struct {
	Accepted bool     `json:"accepted"`
	Verdict  *Verdict `json:"verdict,omitempty"`
}

type RecentScanResponse struct {
	ResolutionID  string    `json:"resolution_id"`
	StudentID     string    `json:"student_id,omitempty"`
	Found         bool      `json:"found"`
	At            time.Time `json:"at"`
	TransactionID string    `json:"transaction_id,omitempty"`
}
