package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/model"
)

var (
	ErrNotFound           = errors.New("student not found")
	ErrInactiveStatus     = errors.New("student account inactive")
	ErrLimitReached       = errors.New("daily meal limit reached")
	ErrMealTypeNotAllowed = errors.New("meal type not included in plan")
	ErrNoMealService      = errors.New("no meals served at this time")
	ErrManualDenial       = errors.New("denied by cashier")
	ErrNoFridayPlan       = errors.New("regular meal plans not valid on fridays")
	// ErrStoreUnavailable is transient; the calling station retries.
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrUnknownResolution  = errors.New("unknown or expired resolution")
	ErrDuplicateStudent   = errors.New("student id or card already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidInput       = errors.New("invalid input")
)

var reasonErrors = map[model.DenialReason]error{
	model.ReasonLimitReached:       ErrLimitReached,
	model.ReasonInactiveStatus:     ErrInactiveStatus,
	model.ReasonNotFound:           ErrNotFound,
	model.ReasonMealTypeNotAllowed: ErrMealTypeNotAllowed,
	model.ReasonNoMealService:      ErrNoMealService,
	model.ReasonManualOverride:     ErrManualDenial,
	model.ReasonNoFridayPlan:       ErrNoFridayPlan,
}

// DenialError reports an approval the ledger turned into a recorded denial.
// It unwraps to the sentinel for its reason.
type DenialError struct {
	Reason   model.DenialReason
	Response *dto.DecisionResponse
}

func (e *DenialError) Error() string {
	return fmt.Sprintf("approval denied: %s", e.Reason.Text())
}

func (e *DenialError) Unwrap() error {
	if err, ok := reasonErrors[e.Reason]; ok {
		return err
	}
	return nil
}

// storeErr maps driver failures to ErrStoreUnavailable, keeping the cause.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}

func isNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }

func isDuplicate(err error) bool { return errors.Is(err, gorm.ErrDuplicatedKey) }
