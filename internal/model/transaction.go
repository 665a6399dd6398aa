package model

import "time"

// Transaction is an immutable record of one cashier decision.
// Rows are never updated; they are removed only by the retention prune or
// the administrative reset of today.
type Transaction struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false"`
	// ResolutionID ties the decision to the scan that produced it. Unique so a
	// retried submission can never produce a second row.
	ResolutionID *string       `gorm:"type:varchar(36);uniqueIndex"`
	StudentID    string        `gorm:"type:varchar(20);not null;index"`
	StationID    string        `gorm:"type:varchar(40);not null"`
	CashierID    string        `gorm:"type:varchar(50);not null"`
	MealType     *MealType     `gorm:"type:varchar(20)"`
	MealPlanType MealPlanType  `gorm:"type:varchar(20)"`
	Decision     Decision      `gorm:"type:varchar(20);not null;index"`
	Reason       *DenialReason `gorm:"type:varchar(40)"`
	// Note is the cashier's free text on a manual denial
	Note         *string   `gorm:"type:varchar(200)"`
	BusinessDate string    `gorm:"type:char(10);not null;index"`
	CreatedAt    time.Time `gorm:"not null;index"`
}

// TableName pins the table name across drivers.
func (Transaction) TableName() string { return "meal_transactions" }
