package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/model"
)

type CashierRepository interface {
	Create(ctx context.Context, c *model.Cashier) error
	FindByUsername(ctx context.Context, username string) (*model.Cashier, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Cashier, error)
	List(ctx context.Context) ([]model.Cashier, error)
	Update(ctx context.Context, c *model.Cashier) error
}

type cashierRepo struct{ db *gorm.DB }

func NewCashierRepository(db *gorm.DB) CashierRepository { return &cashierRepo{db: db} }

func (r *cashierRepo) Create(ctx context.Context, c *model.Cashier) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *cashierRepo) FindByUsername(ctx context.Context, username string) (*model.Cashier, error) {
	var c model.Cashier
	err := r.db.WithContext(ctx).
		Where("LOWER(username) = LOWER(?) AND active = ?", username, true).
		First(&c).Error
	return &c, err
}

func (r *cashierRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Cashier, error) {
	var c model.Cashier
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	return &c, err
}

func (r *cashierRepo) List(ctx context.Context) ([]model.Cashier, error) {
	var out []model.Cashier
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("username ASC").Find(&out).Error
	return out, err
}

func (r *cashierRepo) Update(ctx context.Context, c *model.Cashier) error {
	return r.db.WithContext(ctx).Save(c).Error
}
