package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/CT14090/meal-plan-verification/internal/apierror"
	"github.com/CT14090/meal-plan-verification/internal/dto"
	"github.com/CT14090/meal-plan-verification/internal/scan"
	"github.com/CT14090/meal-plan-verification/internal/service"
	"github.com/CT14090/meal-plan-verification/internal/vault"
)

type ScanHandler struct {
	resolver       service.ResolverService
	debounce       *scan.Stations
	defaultStation string
	now            func() time.Time
}

func NewScanHandler(resolver service.ResolverService, debounce *scan.Stations, defaultStation string) *ScanHandler {
	return &ScanHandler{resolver: resolver, debounce: debounce, defaultStation: defaultStation, now: time.Now}
}

// Scan godoc
// @Summary      Resolve a card scan
// @Description  Passes the card through the station debouncer, then resolves eligibility and publishes the station's lookup slot. A suppressed repeat returns accepted=false.
// @Tags         scan
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.ScanRequest true "Card"
// @Success      200  {object} dto.ScanResponse
// @Failure      404  {object} apierror.DenialError
// @Failure      503  {object} apierror.APIError
// @Router       /v1/scan [post]
func (h *ScanHandler) Scan(c *gin.Context) {
	var req dto.ScanRequest
	if !bindAndValidate(c, &req) {
		return
	}
	station, ok := stationFor(c, req.StationID, h.defaultStation)
	if !ok {
		return
	}

	at := h.now()
	card := vault.NormalizeCardID(req.CardID)
	if !h.debounce.For(station).Accept(card, at) {
		c.JSON(http.StatusOK, dto.ScanResponse{Accepted: false})
		return
	}

	v, err := h.resolver.ResolveCard(c.Request.Context(), station, card, at)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ScanResponse{Accepted: true, Verdict: v})
}

// Lookup godoc
// @Summary      Resolve a student id
// @Description  Manual lookup when the card is missing. Not debounced.
// @Tags         scan
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.LookupRequest true "Student"
// @Success      200  {object} dto.Verdict
// @Failure      404  {object} apierror.DenialError
// @Router       /v1/lookup [post]
func (h *ScanHandler) Lookup(c *gin.Context) {
	var req dto.LookupRequest
	if !bindAndValidate(c, &req) {
		return
	}
	station, ok := stationFor(c, req.StationID, h.defaultStation)
	if !ok {
		return
	}
	v, err := h.resolver.ResolveStudentID(c.Request.Context(), station, req.StudentID, h.now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// Recent godoc
// @Summary      Latest resolution on a station
// @Description  Polled by the station UI. since is a unix timestamp in milliseconds; 204 when nothing newer exists.
// @Tags         scan
// @Produce      json
// @Security     BearerAuth
// @Param        station path  string true  "Station id"
// @Param        since   query int    false "Unix ms"
// @Success      200 {object} dto.RecentScanResponse
// @Success      204
// @Router       /v1/stations/{station}/recent [get]
func (h *ScanHandler) Recent(c *gin.Context) {
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			c.JSON(http.StatusBadRequest, apierror.New("since must be unix milliseconds"))
			return
		}
		since = time.UnixMilli(ms)
	}
	m, ok := h.resolver.RecentScan(c.Param("station"), since)
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, m)
}
