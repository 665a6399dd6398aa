package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/model"
)

// DayStats aggregates one business date.
type DayStats struct {
	Total     int64
	Approved  int64
	Denied    int64
	Breakfast int64
	Lunch     int64
	Snack     int64
}

type TransactionFilter struct {
	StudentID    string
	BusinessDate string
	Decision     model.Decision
	Limit        int
}

type TransactionRepository interface {
	CreateTx(tx *gorm.DB, t *model.Transaction) error
	FindByResolutionID(ctx context.Context, resolutionID string) (*model.Transaction, error)
	StatsForDate(ctx context.Context, businessDate string) (DayStats, error)
	List(ctx context.Context, f TransactionFilter) ([]model.Transaction, error)
	// DeleteBefore hard-deletes every transaction dated before businessDate.
	DeleteBefore(ctx context.Context, businessDate string) (int64, error)
	DeleteForDateTx(tx *gorm.DB, businessDate string) (int64, error)
}

type transactionRepo struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) TransactionRepository { return &transactionRepo{db: db} }

func (r *transactionRepo) CreateTx(tx *gorm.DB, t *model.Transaction) error {
	return tx.Create(t).Error
}

func (r *transactionRepo) FindByResolutionID(ctx context.Context, resolutionID string) (*model.Transaction, error) {
	var t model.Transaction
	err := r.db.WithContext(ctx).Where("resolution_id = ?", resolutionID).First(&t).Error
	return &t, err
}

func (r *transactionRepo) StatsForDate(ctx context.Context, businessDate string) (DayStats, error) {
	var rows []struct {
		Decision model.Decision
		MealType *model.MealType
		N        int64
	}
	err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Select("decision, meal_type, COUNT(*) AS n").
		Where("business_date = ?", businessDate).
		Group("decision, meal_type").
		Scan(&rows).Error
	if err != nil {
		return DayStats{}, err
	}

	var st DayStats
	for _, row := range rows {
		st.Total += row.N
		if row.Decision != model.DecisionApproved {
			st.Denied += row.N
			continue
		}
		st.Approved += row.N
		if row.MealType == nil {
			continue
		}
		switch *row.MealType {
		case model.MealBreakfast:
			st.Breakfast += row.N
		case model.MealLunch:
			st.Lunch += row.N
		case model.MealSnack:
			st.Snack += row.N
		}
	}
	return st, nil
}

func (r *transactionRepo) List(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&model.Transaction{})
	if f.StudentID != "" {
		q = q.Where("student_id = ?", f.StudentID)
	}
	if f.BusinessDate != "" {
		q = q.Where("business_date = ?", f.BusinessDate)
	}
	if f.Decision != "" {
		q = q.Where("decision = ?", f.Decision)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var out []model.Transaction
	err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (r *transactionRepo) DeleteBefore(ctx context.Context, businessDate string) (int64, error) {
	res := r.db.WithContext(ctx).Where("business_date < ?", businessDate).Delete(&model.Transaction{})
	return res.RowsAffected, res.Error
}

func (r *transactionRepo) DeleteForDateTx(tx *gorm.DB, businessDate string) (int64, error) {
	res := tx.Where("business_date = ?", businessDate).Delete(&model.Transaction{})
	return res.RowsAffected, res.Error
}
