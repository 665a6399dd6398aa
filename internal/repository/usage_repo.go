package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CT14090/meal-plan-verification/internal/model"
)

type UsageRepository interface {
	// EnsureTx creates the zero row for (student, date) if it is missing.
	EnsureTx(tx *gorm.DB, studentID, businessDate string, now time.Time) error
	FindTx(tx *gorm.DB, studentID, businessDate string) (*model.DailyUsage, error)
	// IncrementTx adds one meal of type m, but only while the count is still
	// under limit. It reports false when the limit was already reached.
	IncrementTx(tx *gorm.DB, studentID, businessDate string, m model.MealType, limit model.MealLimit, at time.Time) (bool, error)
	ResetDateTx(tx *gorm.DB, businessDate string, at time.Time) (int64, error)
	CountServed(ctx context.Context, businessDate string) (int64, error)
}

type usageRepo struct{ db *gorm.DB }

func NewUsageRepository(db *gorm.DB) UsageRepository { return &usageRepo{db: db} }

func (r *usageRepo) EnsureTx(tx *gorm.DB, studentID, businessDate string, now time.Time) error {
	row := &model.DailyUsage{
		StudentID:    studentID,
		BusinessDate: businessDate,
		LastResetAt:  now,
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "business_date"}},
		DoNothing: true,
	}).Create(row).Error
}

func (r *usageRepo) FindTx(tx *gorm.DB, studentID, businessDate string) (*model.DailyUsage, error) {
	var u model.DailyUsage
	err := tx.Where("student_id = ? AND business_date = ?", studentID, businessDate).First(&u).Error
	return &u, err
}

func (r *usageRepo) IncrementTx(tx *gorm.DB, studentID, businessDate string, m model.MealType, limit model.MealLimit, at time.Time) (bool, error) {
	col := model.UsageColumn(m)
	if col == "" {
		return false, fmt.Errorf("usage: unknown meal type %q", m)
	}
	q := tx.Model(&model.DailyUsage{}).
		Where("student_id = ? AND business_date = ?", studentID, businessDate)
	if !limit.IsUnlimited() {
		// the limit check lives in the same statement as the increment
		q = q.Where("meals_used < ?", int(limit))
	}
	res := q.Updates(map[string]interface{}{
		"meals_used":   gorm.Expr("meals_used + 1"),
		col:            gorm.Expr(col + " + 1"),
		"last_meal_at": at,
		"updated_at":   at,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *usageRepo) ResetDateTx(tx *gorm.DB, businessDate string, at time.Time) (int64, error) {
	res := tx.Model(&model.DailyUsage{}).Where("business_date = ?", businessDate).Updates(map[string]interface{}{
		"meals_used":     0,
		"breakfast_used": 0,
		"lunch_used":     0,
		"snack_used":     0,
		"last_meal_at":   nil,
		"last_reset_at":  at,
		"updated_at":     at,
	})
	return res.RowsAffected, res.Error
}

// CountServed returns how many students had at least one meal on the date.
func (r *usageRepo) CountServed(ctx context.Context, businessDate string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.DailyUsage{}).
		Where("business_date = ? AND meals_used > 0", businessDate).
		Count(&n).Error
	return n, err
}
