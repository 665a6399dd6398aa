package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/CT14090/meal-plan-verification/internal/model"
)

type SummaryRepository interface {
	// CreateIfAbsent inserts s unless a summary for its date exists.
	// It reports whether a row was written.
	CreateIfAbsent(ctx context.Context, s *model.DailySummary) (bool, error)
	FindByDate(ctx context.Context, businessDate string) (*model.DailySummary, error)
	MarkDelivered(ctx context.Context, businessDate string) error
	Count(ctx context.Context, businessDate string) (int64, error)
}

type summaryRepo struct{ db *gorm.DB }

func NewSummaryRepository(db *gorm.DB) SummaryRepository { return &summaryRepo{db: db} }

func (r *summaryRepo) CreateIfAbsent(ctx context.Context, s *model.DailySummary) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "business_date"}},
		DoNothing: true,
	}).Create(s)
	return res.RowsAffected == 1, res.Error
}

func (r *summaryRepo) FindByDate(ctx context.Context, businessDate string) (*model.DailySummary, error) {
	var s model.DailySummary
	err := r.db.WithContext(ctx).Where("business_date = ?", businessDate).First(&s).Error
	return &s, err
}

func (r *summaryRepo) MarkDelivered(ctx context.Context, businessDate string) error {
	return r.db.WithContext(ctx).Model(&model.DailySummary{}).
		Where("business_date = ?", businessDate).
		Update("delivered", true).Error
}

func (r *summaryRepo) Count(ctx context.Context, businessDate string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.DailySummary{}).Where("business_date = ?", businessDate).Count(&n).Error
	return n, err
}

type JobRunRepository interface {
	Done(ctx context.Context, job, periodKey string) (bool, error)
	// Record marks (job, period) complete. It reports false if it already was.
	Record(ctx context.Context, job, periodKey, detail string, at time.Time) (bool, error)
}

type jobRunRepo struct{ db *gorm.DB }

func NewJobRunRepository(db *gorm.DB) JobRunRepository { return &jobRunRepo{db: db} }

func (r *jobRunRepo) Done(ctx context.Context, job, periodKey string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.JobRun{}).
		Where("job = ? AND period_key = ?", job, periodKey).
		Count(&n).Error
	return n > 0, err
}

func (r *jobRunRepo) Record(ctx context.Context, job, periodKey, detail string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job"}, {Name: "period_key"}},
		DoNothing: true,
	}).Create(&model.JobRun{Job: job, PeriodKey: periodKey, Detail: detail, CompletedAt: at})
	return res.RowsAffected == 1, res.Error
}
