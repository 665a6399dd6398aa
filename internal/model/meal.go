package model

import "time"

// MealType is one of the served meal kinds.
type MealType string

const (
	MealBreakfast MealType = "Breakfast"
	MealLunch     MealType = "Lunch"
	MealSnack     MealType = "Snack"
)

// MealTypes lists every meal type in service order.
var MealTypes = []MealType{MealBreakfast, MealLunch, MealSnack}

// Valid reports whether m is a known meal type.
func (m MealType) Valid() bool {
	switch m {
	case MealBreakfast, MealLunch, MealSnack:
		return true
	}
	return false
}

// MealPlanType enumerates the plans a student can hold.
type MealPlanType string

const (
	PlanBasic     MealPlanType = "Basic"
	PlanPlus      MealPlanType = "Plus"
	PlanPremium   MealPlanType = "Premium"
	PlanUnlimited MealPlanType = "Unlimited"

	// Friday plans are honoured Monday to Friday; the regular plans above
	// do not cover Fridays.
	PlanFridayBasic   MealPlanType = "FridayBasic"
	PlanFridayPlus    MealPlanType = "FridayPlus"
	PlanFridayPremium MealPlanType = "FridayPremium"
)

// Valid reports whether p is a known plan.
func (p MealPlanType) Valid() bool {
	_, ok := planAllowedTypes[p]
	return ok
}

var planAllowedTypes = map[MealPlanType][]MealType{
	PlanBasic:         {MealLunch},
	PlanPlus:          {MealLunch, MealSnack},
	PlanPremium:       {MealBreakfast, MealLunch, MealSnack},
	PlanUnlimited:     {MealBreakfast, MealLunch, MealSnack},
	PlanFridayBasic:   {MealLunch},
	PlanFridayPlus:    {MealLunch, MealSnack},
	PlanFridayPremium: {MealBreakfast, MealLunch, MealSnack},
}

var planDefaultLimits = map[MealPlanType]MealLimit{
	PlanBasic:         1,
	PlanPlus:          2,
	PlanPremium:       3,
	PlanUnlimited:     Unlimited,
	PlanFridayBasic:   1,
	PlanFridayPlus:    2,
	PlanFridayPremium: 3,
}

// IsFridayPlan reports whether p is one of the Friday plans.
func (p MealPlanType) IsFridayPlan() bool {
	switch p {
	case PlanFridayBasic, PlanFridayPlus, PlanFridayPremium:
		return true
	}
	return false
}

// ServesOn reports whether the plan is honoured on weekday d, taken in
// facility time.
func (p MealPlanType) ServesOn(d time.Weekday) bool {
	return d != time.Friday || p.IsFridayPlan()
}

// AllowedMealTypes returns the meal types the plan covers.
func (p MealPlanType) AllowedMealTypes() []MealType {
	return append([]MealType(nil), planAllowedTypes[p]...)
}

// Allows reports whether the plan covers meal type m.
func (p MealPlanType) Allows(m MealType) bool {
	for _, t := range planAllowedTypes[p] {
		if t == m {
			return true
		}
	}
	return false
}

// DefaultLimit is the daily limit applied when a student is created without one.
func (p MealPlanType) DefaultLimit() MealLimit {
	if l, ok := planDefaultLimits[p]; ok {
		return l
	}
	return 1
}

// MealLimit is a daily meal quota. Unlimited is a sentinel, not a large number.
type MealLimit int

// Unlimited marks a student with no daily quota.
const Unlimited MealLimit = -1

// IsUnlimited reports whether l is the unlimited sentinel.
func (l MealLimit) IsUnlimited() bool { return l == Unlimited }

// Remaining returns the meals left after used, or -1 when unlimited.
func (l MealLimit) Remaining(used int) int {
	if l.IsUnlimited() {
		return -1
	}
	if r := int(l) - used; r > 0 {
		return r
	}
	return 0
}

// Allows reports whether one more meal fits under the limit.
func (l MealLimit) Allows(used int) bool {
	return l.IsUnlimited() || used < int(l)
}

// StudentStatus: "Active" | "Inactive"
type StudentStatus string

const (
	StatusActive   StudentStatus = "Active"
	StatusInactive StudentStatus = "Inactive"
)

// Decision is the cashier's verdict recorded on a transaction.
type Decision string

const (
	DecisionApproved Decision = "Approved"
	DecisionDenied   Decision = "Denied"
)

// DenialReason is the machine-readable category carried by every denial.
type DenialReason string

const (
	ReasonLimitReached       DenialReason = "LimitReached"
	ReasonInactiveStatus     DenialReason = "InactiveStatus"
	ReasonNotFound           DenialReason = "NotFound"
	ReasonMealTypeNotAllowed DenialReason = "MealTypeNotAllowed"
	ReasonNoMealService      DenialReason = "NoMealService"
	ReasonManualOverride     DenialReason = "ManualOverride"
	ReasonNoFridayPlan       DenialReason = "NoFridayPlan"
)

var reasonText = map[DenialReason]string{
	ReasonLimitReached:       "Daily meal limit reached",
	ReasonInactiveStatus:     "Student account inactive",
	ReasonNotFound:           "Card not recognized",
	ReasonMealTypeNotAllowed: "This meal type is not included in the plan",
	ReasonNoMealService:      "No meals served at this time",
	ReasonManualOverride:     "Manually denied by cashier",
	ReasonNoFridayPlan:       "Regular meal plans not valid on Fridays",
}

// Text returns the human-readable message shown to the cashier.
func (r DenialReason) Text() string {
	if t, ok := reasonText[r]; ok {
		return t
	}
	return string(r)
}
