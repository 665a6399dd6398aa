package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/middleware"
	"github.com/CT14090/meal-plan-verification/internal/model"
	"github.com/CT14090/meal-plan-verification/internal/service"
)

type DecisionsHandler struct {
	ledger         service.LedgerService
	defaultStation string
	now            func() time.Time
}

func NewDecisionsHandler(ledger service.LedgerService, defaultStation string) *DecisionsHandler {
	return &DecisionsHandler{ledger: ledger, defaultStation: defaultStation, now: time.Now}
}

// Decide godoc
// @Summary      Record a cashier decision
// @Description  Approves or denies the resolution. An approval the ledger refuses is recorded as a denial and answered with 409 and its reason. Re-submitting a decided resolution returns the first outcome with duplicate=true.
// @Tags         decisions
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.DecisionRequest true "Decision"
// @Success      201  {object} dto.DecisionResponse
// @Success      200  {object} dto.DecisionResponse "duplicate"
// @Failure      404  {object} apierror.APIError
// @Failure      409  {object} apierror.DenialError
// @Failure      503  {object} apierror.APIError
// @Router       /v1/decisions [post]
func (h *DecisionsHandler) Decide(c *gin.Context) {
	var req dto.DecisionRequest
	if !bindAndValidate(c, &req) {
		return
	}
	station, ok := stationFor(c, req.StationID, h.defaultStation)
	if !ok {
		return
	}
	cashier := ""
	if claims := middleware.GetClaims(c); claims != nil {
		cashier = claims.CashierID
	}

	resp, err := h.ledger.Decide(c.Request.Context(), service.DecisionInput{
		ResolutionID: req.ResolutionID,
		StationID:    station,
		CashierID:    cashier,
		Decision:     model.Decision(req.Decision),
		MealType:     model.MealType(req.MealType),
		Note:         req.Reason,
		At:           h.now(),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}
