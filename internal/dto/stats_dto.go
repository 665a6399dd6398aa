package dto

type TodayStatsResponse struct {
	Date      string `json:"date"`
	Total     int64  `json:"total"`
	Approved  int64  `json:"approved"`
	Denied    int64  `json:"denied"`
	Breakfast int64  `json:"breakfast"`
	Lunch     int64  `json:"lunch"`
	Snack     int64  `json:"snack"`
	// StudentsServed counts distinct students with at least one meal
	StudentsServed int64 `json:"students_served"`
}

type ResetResponse struct {
	Date                string `json:"date"`
	TransactionsDeleted int64  `json:"transactions_deleted"`
	UsageRowsReset      int64  `json:"usage_rows_reset"`
}

type HealthResponse struct {
	Status   string `json:"status"` // ok | degraded
	Database bool   `json:"database"`
	Redis    *bool  `json:"redis,omitempty"`
	Sheets   string `json:"sheets,omitempty"` // breaker state
	Version  string `json:"version"`
}
