package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CreateStudentRequest struct {
	StudentID    string `json:"student_id"     validate:"required,min=1,max=20,alphanum"`
	CardID       string `json:"card_id"        validate:"required,min=4,max=64"`
	Name         string `json:"name"           validate:"required,min=1,max=120"`
	GradeLevel   int    `json:"grade_level"    validate:"min=0,max=14"`
	MealPlanType string `json:"meal_plan_type" validate:"required,oneof=Basic Plus Premium Unlimited FridayBasic FridayPlus FridayPremium"`
	// DailyMealLimit defaults to the plan's limit; -1 means unlimited
	DailyMealLimit *int `json:"daily_meal_limit" validate:"omitempty,min=-1,max=10"`
}

type UpdateStudentRequest struct {
	CardID         *string `json:"card_id"          validate:"omitempty,min=4,max=64"`
	Name           *string `json:"name"             validate:"omitempty,min=1,max=120"`
	GradeLevel     *int    `json:"grade_level"      validate:"omitempty,min=0,max=14"`
	MealPlanType   *string `json:"meal_plan_type"   validate:"omitempty,oneof=Basic Plus Premium Unlimited FridayBasic FridayPlus FridayPremium"`
	DailyMealLimit *int    `json:"daily_meal_limit" validate:"omitempty,min=-1,max=10"`
	Status         *string `json:"status"           validate:"omitempty,oneof=Active Inactive"`
}

type RotateKeyRequest struct {
	NewKey string `json:"new_key" validate:"required,min=40"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type StudentResponse struct {
	StudentID      string `json:"student_id"`
	CardID         string `json:"card_id,omitempty"`
	Name           string `json:"name"`
	GradeLevel     int    `json:"grade_level"`
	MealPlanType   string `json:"meal_plan_type"`
	DailyMealLimit *int   `json:"daily_meal_limit"`
	Unlimited      bool   `json:"unlimited"`
	Status         string `json:"status"`
}

type StudentListResponse struct {
	Data  []StudentResponse `json:"data"`
	Total int               `json:"total"`
}

type RotateKeyResponse struct {
	Rotated int `json:"rotated"`
}
