package model

import (
	"time"

	"github.com/google/uuid"
)

// Cashier is an operator account. Rol: "cashier" | "admin"
type Cashier struct {
	ID           uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	Username     string    `gorm:"uniqueIndex;not null"`
	DisplayName  string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"type:varchar(20);not null"`
	// StationID pins a cashier to one station; empty = any station
	StationID string `gorm:"type:varchar(40)"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	RoleCashier = "cashier"
	RoleAdmin   = "admin"
)
