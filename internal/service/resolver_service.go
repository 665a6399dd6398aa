package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/bridge"
	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/repository"
	"github.com/CT14090/meal-plan-verification/internal/scan"
	"github.com/CT14090/meal-plan-verification/internal/vault"
)

// ResolverService turns a card or student id into an eligibility verdict.
// Every resolution publishes the station's lookup slot and stamps its
// recent-scan marker; a card that matches nobody only stamps the marker.
type ResolverService interface {
	ResolveCard(ctx context.Context, station, cardID string, at time.Time) (*dto.Verdict, error)
	ResolveStudentID(ctx context.Context, station, studentID string, at time.Time) (*dto.Verdict, error)
	RecentScan(station string, since time.Time) (*dto.RecentScanResponse, bool)
}

type resolverService struct {
	db       *gorm.DB
	students repository.StudentRepository
	usage    repository.UsageRepository
	keys     *vault.Keyring
	bridge   *bridge.Bridge
	markers  *scan.Markers
	cal      *Calendar
}

func NewResolverService(
	db *gorm.DB,
	students repository.StudentRepository,
	usage repository.UsageRepository,
	keys *vault.Keyring,
	b *bridge.Bridge,
	markers *scan.Markers,
	cal *Calendar,
) ResolverService {
	return &resolverService{
		db:       db,
		students: students,
		usage:    usage,
		keys:     keys,
		bridge:   b,
		markers:  markers,
		cal:      cal,
	}
}

func (s *resolverService) ResolveCard(ctx context.Context, station, cardID string, at time.Time) (*dto.Verdict, error) {
	student, err := s.findByCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.stampNotFound(station, at)
			log.Info().Str("station_id", station).Str("card", vault.Mask(cardID)).Msg("resolver: card not recognized")
		}
		return nil, err
	}
	return s.resolve(ctx, station, student, at)
}

func (s *resolverService) ResolveStudentID(ctx context.Context, station, studentID string, at time.Time) (*dto.Verdict, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if isNotFound(err) {
			s.stampNotFound(station, at)
			return nil, ErrNotFound
		}
		return nil, storeErr("resolver: find student", err)
	}
	return s.resolve(ctx, station, student, at)
}

func (s *resolverService) RecentScan(station string, since time.Time) (*dto.RecentScanResponse, bool) {
	m, ok := s.markers.Latest(station, since)
	if !ok {
		return nil, false
	}
	resp := &dto.RecentScanResponse{
		ResolutionID: m.ResolutionID,
		StudentID:    m.StudentID,
		Found:        m.Found,
		At:           m.At,
	}
	if m.TransactionID != 0 {
		resp.TransactionID = formatID(m.TransactionID)
	}
	return resp, true
}

// findByCard narrows by fingerprint, then decrypts each candidate and
// compares the plaintext. An active match wins over an inactive one.
func (s *resolverService) findByCard(ctx context.Context, cardID string) (*model.Student, error) {
	v := s.keys.Current()
	want := vault.NormalizeCardID(cardID)
	if want == "" {
		return nil, ErrNotFound
	}
	candidates, err := s.students.FindByFingerprint(ctx, v.Fingerprint(want))
	if err != nil {
		return nil, storeErr("resolver: find by card", err)
	}

	var inactive *model.Student
	for i := range candidates {
		c := &candidates[i]
		plain, err := v.Decrypt(c.CardCiphertext)
		if err != nil {
			log.Error().Err(err).Str("student_id", c.StudentID).Msg("resolver: card ciphertext unreadable")
			continue
		}
		if vault.NormalizeCardID(plain) != want {
			continue
		}
		if c.IsActive() {
			return c, nil
		}
		if inactive == nil {
			inactive = c
		}
	}
	if inactive != nil {
		return inactive, nil
	}
	return nil, ErrNotFound
}

func (s *resolverService) resolve(ctx context.Context, station string, st *model.Student, at time.Time) (*dto.Verdict, error) {
	name, err := s.keys.Current().Decrypt(st.NameCiphertext)
	if err != nil {
		log.Error().Err(err).Str("student_id", st.StudentID).Msg("resolver: name ciphertext unreadable")
		name = ""
	}

	date := s.cal.Date(at)
	var usage *model.DailyUsage
	err = runTx(ctx, s.db, func(tx *gorm.DB) error {
		if err := s.usage.EnsureTx(tx, st.StudentID, date, at); err != nil {
			return err
		}
		u, err := s.usage.FindTx(tx, st.StudentID, date)
		if err != nil {
			return err
		}
		usage = u
		return nil
	})
	if err != nil {
		return nil, storeErr("resolver: load usage", err)
	}

	v := buildVerdict(st, usage, name, at.In(s.cal.Loc).Weekday())
	v.ResolutionID = uuid.NewString()
	v.ResolvedAt = at
	if m, ok := s.cal.MealAt(at); ok {
		v.SuggestedMeal = string(m)
	}

	s.bridge.Publish(station, bridge.Identity{
		StudentID:    v.StudentID,
		Name:         v.Name,
		MealPlanType: v.MealPlanType,
		Eligible:     v.Eligible,
		Remaining:    v.Remaining,
	})
	s.markers.Stamp(scan.Marker{
		ResolutionID: v.ResolutionID,
		StationID:    station,
		StudentID:    st.StudentID,
		Found:        true,
		At:           at,
	})

	log.Info().
		Str("station_id", station).
		Str("student_id", st.StudentID).
		Bool("eligible", v.Eligible).
		Int("used", usage.MealsUsed).
		Msg("resolver: resolved")
	return v, nil
}

func (s *resolverService) stampNotFound(station string, at time.Time) {
	s.markers.Stamp(scan.Marker{
		ResolutionID: uuid.NewString(),
		StationID:    station,
		Found:        false,
		At:           at,
	})
}

// buildVerdict computes eligibility: active and (unlimited or under limit).
func buildVerdict(st *model.Student, u *model.DailyUsage, name string, day time.Weekday) *dto.Verdict {
	allowed := st.MealPlanType.AllowedMealTypes()
	names := make([]string, len(allowed))
	for i, m := range allowed {
		names[i] = string(m)
	}
	byType := make(map[string]int, 3)
	for m, n := range u.ByType() {
		byType[string(m)] = n
	}

	v := &dto.Verdict{
		StudentID:        st.StudentID,
		Name:             name,
		GradeLevel:       st.GradeLevel,
		MealPlanType:     string(st.MealPlanType),
		AllowedMealTypes: names,
		Unlimited:        st.DailyMealLimit.IsUnlimited(),
		MealsUsedToday:   u.MealsUsed,
		MealsByType:      byType,
	}
	v.Remaining = remainingPtr(st.DailyMealLimit, u.MealsUsed)

	switch {
	case !st.IsActive():
		v.Reason = string(model.ReasonInactiveStatus)
	case !st.MealPlanType.ServesOn(day):
		v.Reason = string(model.ReasonNoFridayPlan)
	case !st.DailyMealLimit.Allows(u.MealsUsed):
		v.Reason = string(model.ReasonLimitReached)
	default:
		v.Eligible = true
	}
	if v.Reason != "" {
		v.ReasonText = model.DenialReason(v.Reason).Text()
	}
	return v
}

func remainingPtr(limit model.MealLimit, used int) *int {
	if limit.IsUnlimited() {
		return nil
	}
	r := limit.Remaining(used)
	return &r
}
