package dto

import "time"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type DecisionRequest struct {
	ResolutionID string `json:"resolution_id" validate:"required,uuid"`
	Decision     string `json:"decision"      validate:"required,oneof=Approved Denied"`
	// MealType may be omitted; it is then detected from the service windows
	MealType  string `json:"meal_type"  validate:"omitempty,oneof=Breakfast Lunch Snack"`
	StationID string `json:"station_id" validate:"omitempty,max=40"`
	Reason    string `json:"reason"     validate:"omitempty,max=200"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type TransactionResponse struct {
	TransactionID string    `json:"transaction_id"`
	StudentID     string    `json:"student_id"`
	StationID     string    `json:"station_id"`
	CashierID     string    `json:"cashier_id"`
	MealType      string    `json:"meal_type,omitempty"`
	Decision      string    `json:"decision"`
	Reason        string    `json:"reason,omitempty"`
	ReasonText    string    `json:"reason_text,omitempty"`
	Note          string    `json:"note,omitempty"`
	BusinessDate  string    `json:"business_date"`
	Timestamp     time.Time `json:"timestamp"`
}

type DecisionResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	// Duplicate is true when the resolution had already been decided and
	// nothing new was recorded
	Duplicate bool `json:"duplicate"`
	Remaining *int `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

type TransactionListResponse struct {
	Data []TransactionResponse `json:"data"`
}
