package dto

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1"`
	Password string `json:"password" validate:"required,min=4"`
}

type CreateCashierRequest struct {
	Username    string `json:"username"     validate:"required,min=1,max=150"`
	DisplayName string `json:"display_name" validate:"required,min=2,max=100"`
	Password    string `json:"password"     validate:"required,min=8"`
	Role        string `json:"role"         validate:"required,oneof=cashier admin"`
	StationID   string `json:"station_id"   validate:"omitempty,max=40"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CashierResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	StationID   string `json:"station_id,omitempty"`
}

type LoginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"` // seconds
	Cashier     CashierResponse `json:"cashier"`
}
