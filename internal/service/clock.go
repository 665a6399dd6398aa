package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/config"
	"github.com/CT14090/meal-plan-verification/internal/model"
)

const dateLayout = "2006-01-02"

// Calendar turns instants into facility-local business dates and meal
// service windows. The facility zone applies regardless of the host zone.
type Calendar struct {
	Loc     *time.Location
	Windows []config.MealWindow
	Now     func() time.Time
}

func NewCalendar(loc *time.Location, windows []config.MealWindow) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{Loc: loc, Windows: windows, Now: time.Now}
}

// Date returns the business date of t.
func (c *Calendar) Date(t time.Time) string { return t.In(c.Loc).Format(dateLayout) }

// Today returns the current business date.
func (c *Calendar) Today() string { return c.Date(c.Now()) }

// MealAt returns the meal served at t, if any.
func (c *Calendar) MealAt(t time.Time) (model.MealType, bool) {
	h := t.In(c.Loc).Hour()
	for _, w := range c.Windows {
		if h >= w.From && h < w.To {
			m := model.MealType(w.MealType)
			if m.Valid() {
				return m, true
			}
		}
	}
	return "", false
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}
