package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/model"
)

type StudentRepository interface {
	Create(ctx context.Context, s *model.Student) error
	FindByID(ctx context.Context, studentID string) (*model.Student, error)
	FindByIDTx(tx *gorm.DB, studentID string) (*model.Student, error)
	// FindByFingerprint returns every student whose card fingerprint matches.
	// Callers still decrypt and compare; a fingerprint is only a candidate.
	FindByFingerprint(ctx context.Context, fingerprint string) ([]model.Student, error)
	List(ctx context.Context, status model.StudentStatus) ([]model.Student, error)
	Update(ctx context.Context, s *model.Student) error
	SetStatus(ctx context.Context, studentID string, status model.StudentStatus) (int64, error)
	ListAllTx(tx *gorm.DB) ([]model.Student, error)
	UpdateCiphertextsTx(tx *gorm.DB, studentID, cardCT, fingerprint, nameCT string) error
	CountActive(ctx context.Context) (int64, error)
	DB() *gorm.DB
}

type studentRepo struct{ db *gorm.DB }

func NewStudentRepository(db *gorm.DB) StudentRepository { return &studentRepo{db: db} }

func (r *studentRepo) DB() *gorm.DB { return r.db }

func (r *studentRepo) Create(ctx context.Context, s *model.Student) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *studentRepo) FindByID(ctx context.Context, studentID string) (*model.Student, error) {
	return r.FindByIDTx(r.db.WithContext(ctx), studentID)
}

func (r *studentRepo) FindByIDTx(tx *gorm.DB, studentID string) (*model.Student, error) {
	var s model.Student
	err := tx.Where("student_id = ?", studentID).First(&s).Error
	return &s, err
}

func (r *studentRepo) FindByFingerprint(ctx context.Context, fingerprint string) ([]model.Student, error) {
	var out []model.Student
	err := r.db.WithContext(ctx).
		Where("card_fingerprint = ?", fingerprint).
		Order("status ASC, student_id ASC").
		Find(&out).Error
	return out, err
}

// List returns students ordered by id. An empty status returns all.
func (r *studentRepo) List(ctx context.Context, status model.StudentStatus) ([]model.Student, error) {
	var out []model.Student
	q := r.db.WithContext(ctx).Order("student_id ASC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Find(&out).Error
	return out, err
}

func (r *studentRepo) Update(ctx context.Context, s *model.Student) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *studentRepo) SetStatus(ctx context.Context, studentID string, status model.StudentStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Student{}).
		Where("student_id = ?", studentID).
		Update("status", status)
	return res.RowsAffected, res.Error
}

func (r *studentRepo) ListAllTx(tx *gorm.DB) ([]model.Student, error) {
	var out []model.Student
	err := tx.Order("student_id ASC").Find(&out).Error
	return out, err
}

func (r *studentRepo) UpdateCiphertextsTx(tx *gorm.DB, studentID, cardCT, fingerprint, nameCT string) error {
	return tx.Model(&model.Student{}).Where("student_id = ?", studentID).Updates(map[string]interface{}{
		"card_ciphertext":  cardCT,
		"card_fingerprint": fingerprint,
		"name_ciphertext":  nameCT,
	}).Error
}

func (r *studentRepo) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Student{}).Where("status = ?", model.StatusActive).Count(&n).Error
	return n, err
}
