package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/CT14090/meal-plan-verification/internal/apierror"
	"github.com/CT14090/meal-plan-verification/internal/middleware"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/service"
	"github.com/CT14090/meal-plan-verification/internal/vault"
)

var validate = validator.New()

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("invalid JSON: "+err.Error()))
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// writeError maps service errors onto HTTP statuses. Unknown errors become
// a logged 500 through middleware.ErrorHandler.
func writeError(c *gin.Context, err error) {
	var denial *service.DenialError
	switch {
	case errors.As(err, &denial):
		var recorded interface{}
		if denial.Response != nil {
			recorded = denial.Response.Transaction
		}
		c.JSON(http.StatusConflict, apierror.NewDenial(string(denial.Reason), denial.Reason.Text(), recorded))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, apierror.NewDenial(string(model.ReasonNotFound), model.ReasonNotFound.Text(), nil))
	case errors.Is(err, service.ErrUnknownResolution):
		c.JSON(http.StatusNotFound, apierror.New(service.ErrUnknownResolution.Error()))
	case errors.Is(err, service.ErrDuplicateStudent):
		c.JSON(http.StatusConflict, apierror.New(service.ErrDuplicateStudent.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, apierror.New(service.ErrInvalidCredentials.Error()))
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
	case errors.Is(err, service.ErrStoreUnavailable):
		_ = c.Error(err)
		c.JSON(http.StatusServiceUnavailable, apierror.New("store unavailable, retry"))
	case errors.Is(err, vault.ErrCiphertext):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, apierror.New("stored record could not be decrypted"))
	default:
		_ = c.Error(err)
	}
}

// stationFor picks the station a request acts on. A token pinned to a
// station always wins for cashiers; admins and unpinned tokens may name one.
func stationFor(c *gin.Context, requested, fallback string) (string, bool) {
	claims := middleware.GetClaims(c)
	station := requested
	if claims != nil && claims.StationID != "" && (claims.Role != model.RoleAdmin || requested == "") {
		station = claims.StationID
	}
	if station == "" {
		station = fallback
	}
	if station == "" {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"StationID": "required"}))
		return "", false
	}
	return station, true
}
