package model

import "time"

// Student is the master record. CardCiphertext and NameCiphertext are only
// ever written through the vault; CardFingerprint is a keyed blind index used
// to find candidate rows without decrypting the whole table.
type Student struct {
	StudentID       string        `gorm:"primaryKey;type:varchar(20)"`
	CardCiphertext  string        `gorm:"type:text;not null"`
	CardFingerprint string        `gorm:"type:varchar(64);not null;index"`
	NameCiphertext  string        `gorm:"type:text;not null"`
	GradeLevel      int           `gorm:"not null;default:0"`
	MealPlanType    MealPlanType  `gorm:"type:varchar(20);not null"`
	DailyMealLimit  MealLimit     `gorm:"not null"`
	Status          StudentStatus `gorm:"type:varchar(20);not null;default:'Active'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsActive reports whether the student may be served.
func (s *Student) IsActive() bool { return s.Status == StatusActive }
