package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/infra"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/vault"
)

// minCardLen is the shortest card id accepted after normalization.
const minCardLen = 4

// AdminService is the synchronous administrative surface.
type AdminService interface {
	AddStudent(ctx context.Context, req dto.CreateStudentRequest) (*dto.StudentResponse, error)
	UpdateStudent(ctx context.Context, studentID string, req dto.UpdateStudentRequest) (*dto.StudentResponse, error)
	DeactivateStudent(ctx context.Context, studentID string) error
	ListStudents(ctx context.Context, includeInactive bool) (*dto.StudentListResponse, error)
	// ExportStudents returns every student decrypted, card id included.
	ExportStudents(ctx context.Context) ([]dto.StudentResponse, error)
	ExportStudentsXLSX(ctx context.Context, w io.Writer) error
	TriggerResetNow(ctx context.Context) (*dto.ResetResponse, error)
	GetTodayStats(ctx context.Context) (*dto.TodayStatsResponse, error)
	ListTransactions(ctx context.Context, f repository.TransactionFilter) (*dto.TransactionListResponse, error)
	RotateKey(ctx context.Context, newKey string) (*dto.RotateKeyResponse, error)
}

type adminService struct {
	db       *gorm.DB
	students repository.StudentRepository
	usage    repository.UsageRepository
	txs      repository.TransactionRepository
	keys     *vault.Keyring
	cal      *Calendar
}

func NewAdminService(
	db *gorm.DB,
	students repository.StudentRepository,
	usage repository.UsageRepository,
	txs repository.TransactionRepository,
	keys *vault.Keyring,
	cal *Calendar,
) AdminService {
	return &adminService{db: db, students: students, usage: usage, txs: txs, keys: keys, cal: cal}
}

// ── Students ──────────────────────────────────────────────────────────────────

func (s *adminService) AddStudent(ctx context.Context, req dto.CreateStudentRequest) (*dto.StudentResponse, error) {
	plan := model.MealPlanType(req.MealPlanType)
	if !plan.Valid() {
		return nil, fmt.Errorf("%w: meal_plan_type %q", ErrInvalidInput, req.MealPlanType)
	}
	limit := plan.DefaultLimit()
	if req.DailyMealLimit != nil {
		limit = model.MealLimit(*req.DailyMealLimit)
	}
	if limit < model.Unlimited {
		return nil, fmt.Errorf("%w: daily_meal_limit", ErrInvalidInput)
	}

	card, err := normalizeCard(req.CardID)
	if err != nil {
		return nil, err
	}
	st := &model.Student{
		StudentID:      req.StudentID,
		GradeLevel:     req.GradeLevel,
		MealPlanType:   plan,
		DailyMealLimit: limit,
		Status:         model.StatusActive,
	}
	if err := s.seal(st, card, req.Name); err != nil {
		return nil, err
	}

	if err := s.students.Create(ctx, st); err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateStudent
		}
		return nil, storeErr("admin: create student", err)
	}
	log.Info().Str("student_id", st.StudentID).Str("plan", string(plan)).Msg("admin: student added")
	return toStudentResponse(st, req.Name, ""), nil
}

func (s *adminService) UpdateStudent(ctx context.Context, studentID string, req dto.UpdateStudentRequest) (*dto.StudentResponse, error) {
	st, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, storeErr("admin: find student", err)
	}
	v := s.keys.Current()

	name, err := v.Decrypt(st.NameCiphertext)
	if err != nil {
		return nil, err
	}
	card, err := v.Decrypt(st.CardCiphertext)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		name = *req.Name
	}
	if req.CardID != nil {
		if card, err = normalizeCard(*req.CardID); err != nil {
			return nil, err
		}
	}
	if req.MealPlanType != nil {
		plan := model.MealPlanType(*req.MealPlanType)
		if !plan.Valid() {
			return nil, fmt.Errorf("%w: meal_plan_type %q", ErrInvalidInput, *req.MealPlanType)
		}
		// a plan change without an explicit limit takes the plan's default
		if req.DailyMealLimit == nil && plan != st.MealPlanType {
			st.DailyMealLimit = plan.DefaultLimit()
		}
		st.MealPlanType = plan
	}
	if req.DailyMealLimit != nil {
		if *req.DailyMealLimit < int(model.Unlimited) {
			return nil, fmt.Errorf("%w: daily_meal_limit", ErrInvalidInput)
		}
		st.DailyMealLimit = model.MealLimit(*req.DailyMealLimit)
	}
	if req.GradeLevel != nil {
		st.GradeLevel = *req.GradeLevel
	}
	if req.Status != nil {
		st.Status = model.StudentStatus(*req.Status)
	}
	if err := s.seal(st, card, name); err != nil {
		return nil, err
	}

	if err := s.students.Update(ctx, st); err != nil {
		if isDuplicate(err) {
			return nil, ErrDuplicateStudent
		}
		return nil, storeErr("admin: update student", err)
	}
	log.Info().Str("student_id", st.StudentID).Msg("admin: student updated")
	return toStudentResponse(st, name, ""), nil
}

// DeactivateStudent flips status to Inactive. Students are never hard
// deleted; their transactions keep referring to them.
func (s *adminService) DeactivateStudent(ctx context.Context, studentID string) error {
	n, err := s.students.SetStatus(ctx, studentID, model.StatusInactive)
	if err != nil {
		return storeErr("admin: deactivate", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	log.Info().Str("student_id", studentID).Msg("admin: student deactivated")
	return nil
}

func (s *adminService) ListStudents(ctx context.Context, includeInactive bool) (*dto.StudentListResponse, error) {
	status := model.StatusActive
	if includeInactive {
		status = ""
	}
	rows, err := s.students.List(ctx, status)
	if err != nil {
		return nil, storeErr("admin: list students", err)
	}
	out, err := s.open(rows, false)
	if err != nil {
		return nil, err
	}
	return &dto.StudentListResponse{Data: out, Total: len(out)}, nil
}

func (s *adminService) ExportStudents(ctx context.Context) ([]dto.StudentResponse, error) {
	rows, err := s.students.List(ctx, "")
	if err != nil {
		return nil, storeErr("admin: export students", err)
	}
	return s.open(rows, true)
}

func (s *adminService) ExportStudentsXLSX(ctx context.Context, w io.Writer) error {
	students, err := s.ExportStudents(ctx)
	if err != nil {
		return err
	}
	headers := []string{"Student ID", "Card ID", "Name", "Grade", "Meal Plan", "Daily Limit", "Status"}
	rows := make([][]interface{}, len(students))
	for i, st := range students {
		var limit interface{} = "Unlimited"
		if st.DailyMealLimit != nil {
			limit = *st.DailyMealLimit
		}
		rows[i] = []interface{}{st.StudentID, st.CardID, st.Name, st.GradeLevel, st.MealPlanType, limit, st.Status}
	}
	return infra.WriteXLSX(w, "Students", headers, rows)
}

// normalizeCard rejects ids that are too short once separators are dropped.
func normalizeCard(raw string) (string, error) {
	card := vault.NormalizeCardID(raw)
	if utf8.RuneCountInString(card) < minCardLen {
		return "", fmt.Errorf("%w: card_id", ErrInvalidInput)
	}
	return card, nil
}

// seal encrypts name and card onto st and refreshes the fingerprint.
func (s *adminService) seal(st *model.Student, card, name string) error {
	v := s.keys.Current()
	cardCT, err := v.Encrypt(card)
	if err != nil {
		return err
	}
	nameCT, err := v.Encrypt(name)
	if err != nil {
		return err
	}
	st.CardCiphertext = cardCT
	st.NameCiphertext = nameCT
	st.CardFingerprint = v.Fingerprint(card)
	return nil
}

func (s *adminService) open(rows []model.Student, withCard bool) ([]dto.StudentResponse, error) {
	v := s.keys.Current()
	out := make([]dto.StudentResponse, 0, len(rows))
	for i := range rows {
		st := &rows[i]
		name, err := v.Decrypt(st.NameCiphertext)
		if err != nil {
			return nil, fmt.Errorf("student %s: %w", st.StudentID, err)
		}
		card := ""
		if withCard {
			if card, err = v.Decrypt(st.CardCiphertext); err != nil {
				return nil, fmt.Errorf("student %s: %w", st.StudentID, err)
			}
		}
		out = append(out, *toStudentResponse(st, name, card))
	}
	return out, nil
}

func toStudentResponse(st *model.Student, name, card string) *dto.StudentResponse {
	return &dto.StudentResponse{
		StudentID:      st.StudentID,
		CardID:         card,
		Name:           name,
		GradeLevel:     st.GradeLevel,
		MealPlanType:   string(st.MealPlanType),
		DailyMealLimit: limitPtr(st.DailyMealLimit),
		Unlimited:      st.DailyMealLimit.IsUnlimited(),
		Status:         string(st.Status),
	}
}

func limitPtr(l model.MealLimit) *int {
	if l.IsUnlimited() {
		return nil
	}
	n := int(l)
	return &n
}

// ── Day operations ────────────────────────────────────────────────────────────

// TriggerResetNow deletes today's transactions and zeroes today's usage in
// one store transaction. Destructive, and scoped to today only.
func (s *adminService) TriggerResetNow(ctx context.Context) (*dto.ResetResponse, error) {
	now := s.cal.Now()
	date := s.cal.Date(now)
	resp := &dto.ResetResponse{Date: date}
	err := runTx(ctx, s.db, func(tx *gorm.DB) error {
		n, err := s.txs.DeleteForDateTx(tx, date)
		if err != nil {
			return err
		}
		resp.TransactionsDeleted = n
		m, err := s.usage.ResetDateTx(tx, date, now.UTC())
		if err != nil {
			return err
		}
		resp.UsageRowsReset = m
		return nil
	})
	if err != nil {
		return nil, storeErr("admin: reset", err)
	}
	log.Warn().
		Str("date", date).
		Int64("transactions_deleted", resp.TransactionsDeleted).
		Int64("usage_rows_reset", resp.UsageRowsReset).
		Msg("admin: today's data reset")
	return resp, nil
}

func (s *adminService) GetTodayStats(ctx context.Context) (*dto.TodayStatsResponse, error) {
	date := s.cal.Today()
	st, err := s.txs.StatsForDate(ctx, date)
	if err != nil {
		return nil, storeErr("admin: stats", err)
	}
	served, err := s.usage.CountServed(ctx, date)
	if err != nil {
		return nil, storeErr("admin: stats", err)
	}
	return &dto.TodayStatsResponse{
		Date:           date,
		Total:          st.Total,
		Approved:       st.Approved,
		Denied:         st.Denied,
		Breakfast:      st.Breakfast,
		Lunch:          st.Lunch,
		Snack:          st.Snack,
		StudentsServed: served,
	}, nil
}

func (s *adminService) ListTransactions(ctx context.Context, f repository.TransactionFilter) (*dto.TransactionListResponse, error) {
	rows, err := s.txs.List(ctx, f)
	if err != nil {
		return nil, storeErr("admin: list transactions", err)
	}
	out := make([]dto.TransactionResponse, len(rows))
	for i := range rows {
		out[i] = toTransactionResponse(&rows[i])
	}
	return &dto.TransactionListResponse{Data: out}, nil
}

// ── Key rotation ──────────────────────────────────────────────────────────────

// RotateKey re-encrypts every student under newKey in one store
// transaction and then makes it the active key. Other stations keep the
// old key until restarted with the new ENCRYPTION_KEY.
func (s *adminService) RotateKey(ctx context.Context, newKey string) (*dto.RotateKeyResponse, error) {
	next, err := vault.New(newKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	n, err := RotateStudents(ctx, s.db, s.students, s.keys.Current(), next)
	if err != nil {
		return nil, err
	}
	s.keys.Swap(next)
	log.Warn().Int("students", n).Msg("admin: encryption key rotated")
	return &dto.RotateKeyResponse{Rotated: n}, nil
}

// RotateStudents re-seals every student row from one vault to another.
// Any unreadable row aborts the whole rotation.
func RotateStudents(ctx context.Context, db *gorm.DB, students repository.StudentRepository, from, to *vault.Vault) (int, error) {
	count := 0
	start := time.Now()
	err := runTx(ctx, db, func(tx *gorm.DB) error {
		rows, err := students.ListAllTx(tx)
		if err != nil {
			return err
		}
		for i := range rows {
			st := &rows[i]
			card, err := from.Decrypt(st.CardCiphertext)
			if err != nil {
				return fmt.Errorf("student %s card: %w", st.StudentID, err)
			}
			cardCT, err := to.Encrypt(card)
			if err != nil {
				return err
			}
			nameCT, err := vault.Reencrypt(from, to, st.NameCiphertext)
			if err != nil {
				return fmt.Errorf("student %s name: %w", st.StudentID, err)
			}
			if err := students.UpdateCiphertextsTx(tx, st.StudentID, cardCT, to.Fingerprint(card), nameCT); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, vault.ErrCiphertext) {
			return 0, err
		}
		return 0, storeErr("rotate key", err)
	}
	log.Info().Int("students", count).Dur("took", time.Since(start)).Msg("rotate key: students re-encrypted")
	return count, nil
}
